package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metawatch/internal/errors"
)

type recordedCall struct {
	method  string
	payload map[string]interface{}
}

// newTestBot spins up a fake Bot API server and a bot pointed at it. The
// handler decides the response per method; every request is recorded.
func newTestBot(t *testing.T, handler func(method string, payload map[string]interface{}) (int, string)) (*Bot, *[]recordedCall) {
	t.Helper()
	var calls []recordedCall

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		// Path is /bot<token>/<method>.
		method := r.URL.Path[len("/bottest-token/"):]
		calls = append(calls, recordedCall{method: method, payload: payload})

		status, body := handler(method, payload)
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	bot := NewBot(BotConfig{
		BotToken: "test-token",
		ChatID:   "-100123",
		BaseURL:  srv.URL,
	}, zerolog.Nop())
	return bot, &calls
}

func okResult(body string) (int, string) {
	return http.StatusOK, `{"ok":true,"result":` + body + `}`
}

func TestBotSend(t *testing.T) {
	bot, calls := newTestBot(t, func(method string, payload map[string]interface{}) (int, string) {
		return okResult(`{"message_id":42}`)
	})

	id, err := bot.Send(context.Background(), "hello", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.Equal(t, "sendMessage", call.method)
	assert.Equal(t, "-100123", call.payload["chat_id"])
	assert.Equal(t, "hello", call.payload["text"])
	assert.Equal(t, "Markdown", call.payload["parse_mode"])
	assert.NotContains(t, call.payload, "reply_to_message_id")
}

func TestBotSendReply(t *testing.T) {
	bot, calls := newTestBot(t, func(method string, payload map[string]interface{}) (int, string) {
		return okResult(`{"message_id":43}`)
	})

	_, err := bot.Send(context.Background(), "follow-up", 42)
	require.NoError(t, err)
	assert.EqualValues(t, 42, (*calls)[0].payload["reply_to_message_id"])
}

func TestBotEdit(t *testing.T) {
	bot, calls := newTestBot(t, func(method string, payload map[string]interface{}) (int, string) {
		return okResult(`true`)
	})

	require.NoError(t, bot.Edit(context.Background(), 42, "updated"))
	call := (*calls)[0]
	assert.Equal(t, "editMessageText", call.method)
	assert.EqualValues(t, 42, call.payload["message_id"])
	assert.Equal(t, "updated", call.payload["text"])
}

func TestBotEditMessageGone(t *testing.T) {
	bot, _ := newTestBot(t, func(method string, payload map[string]interface{}) (int, string) {
		return http.StatusBadRequest, `{"ok":false,"error_code":400,"description":"Bad Request: message to edit not found"}`
	})

	err := bot.Edit(context.Background(), 42, "updated")
	assert.ErrorIs(t, err, errors.ErrMessageNotFound)
}

func TestBotPin(t *testing.T) {
	bot, calls := newTestBot(t, func(method string, payload map[string]interface{}) (int, string) {
		return okResult(`true`)
	})

	require.NoError(t, bot.Pin(context.Background(), 42))
	call := (*calls)[0]
	assert.Equal(t, "pinChatMessage", call.method)
	assert.Equal(t, true, call.payload["disable_notification"])
}

func TestBotRateLimited(t *testing.T) {
	bot, _ := newTestBot(t, func(method string, payload map[string]interface{}) (int, string) {
		return http.StatusTooManyRequests, `{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 5"}`
	})

	_, err := bot.Send(context.Background(), "hello", 0)
	assert.ErrorIs(t, err, errors.ErrRateLimited)
	assert.True(t, errors.IsRetriable(err))
}

func TestBotProtocolErrorNotRetriable(t *testing.T) {
	bot, _ := newTestBot(t, func(method string, payload map[string]interface{}) (int, string) {
		return http.StatusForbidden, `{"ok":false,"error_code":403,"description":"Forbidden: bot was kicked"}`
	})

	_, err := bot.Send(context.Background(), "hello", 0)
	require.Error(t, err)
	assert.False(t, errors.IsRetriable(err))

	var te *errors.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "sendMessage", te.Op)
}

func TestBotNetworkErrorRetriable(t *testing.T) {
	bot := NewBot(BotConfig{
		BotToken: "test-token",
		ChatID:   "-100123",
		BaseURL:  "http://127.0.0.1:1", // nothing listens here
	}, zerolog.Nop())

	_, err := bot.Send(context.Background(), "hello", 0)
	require.Error(t, err)
	assert.True(t, errors.IsRetriable(err))
}
