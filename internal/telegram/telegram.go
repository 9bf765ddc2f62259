// Package telegram provides the messaging transport for notifications.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"metawatch/internal/errors"
)

// Messenger defines the interface for the messaging transport. Message ids
// are the transport's own identifiers, used for reply threading and edits.
type Messenger interface {
	// Send sends a message. A non-zero replyTo threads the message as a
	// reply to an earlier one.
	Send(ctx context.Context, text string, replyTo int64) (int64, error)

	// Edit replaces the text of an existing message. Returns
	// errors.ErrMessageNotFound if the target message no longer exists.
	Edit(ctx context.Context, messageID int64, text string) error

	// Pin pins a message in the channel.
	Pin(ctx context.Context, messageID int64) error
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	BotToken string
	ChatID   string
	BaseURL  string // defaults to the public Bot API
}

// Bot implements Messenger using the Telegram Bot API with Markdown parse
// mode.
type Bot struct {
	cfg    BotConfig
	client *http.Client
	log    zerolog.Logger
}

// NewBot creates a new Telegram bot transport.
func NewBot(cfg BotConfig, logger zerolog.Logger) *Bot {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.telegram.org"
	}
	return &Bot{
		cfg: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: logger,
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

// Send sends a message, optionally as a reply.
func (b *Bot) Send(ctx context.Context, text string, replyTo int64) (int64, error) {
	payload := map[string]interface{}{
		"chat_id":    b.cfg.ChatID,
		"text":       text,
		"parse_mode": "Markdown",
	}
	if replyTo != 0 {
		payload["reply_to_message_id"] = replyTo
	}

	result, err := b.call(ctx, "sendMessage", payload)
	if err != nil {
		return 0, err
	}

	var sent struct {
		MessageID int64 `json:"message_id"`
	}
	if err := json.Unmarshal(result, &sent); err != nil {
		return 0, errors.NewTransportError("sendMessage", false, err)
	}
	return sent.MessageID, nil
}

// Edit replaces the text of an existing message.
func (b *Bot) Edit(ctx context.Context, messageID int64, text string) error {
	_, err := b.call(ctx, "editMessageText", map[string]interface{}{
		"chat_id":    b.cfg.ChatID,
		"message_id": messageID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	return err
}

// Pin pins a message in the channel without a client-side notification.
func (b *Bot) Pin(ctx context.Context, messageID int64) error {
	_, err := b.call(ctx, "pinChatMessage", map[string]interface{}{
		"chat_id":              b.cfg.ChatID,
		"message_id":           messageID,
		"disable_notification": true,
	})
	return err
}

func (b *Bot) call(ctx context.Context, method string, payload map[string]interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.NewTransportError(method, false, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", b.cfg.BaseURL, b.cfg.BotToken, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewTransportError(method, false, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		// Network failures are retriable by the caller after a short delay.
		return nil, errors.NewTransportError(method, true, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewTransportError(method, true, err)
	}

	var api apiResponse
	if err := json.Unmarshal(data, &api); err != nil {
		// A response that is not even Bot API shaped means the session is
		// broken; force a reconnect.
		return nil, errors.NewTransportError(method, false, err)
	}

	if !api.OK {
		desc := strings.ToLower(api.Description)
		switch {
		case strings.Contains(desc, "message to edit not found"),
			strings.Contains(desc, "message not found"):
			return nil, errors.ErrMessageNotFound
		case api.ErrorCode == http.StatusTooManyRequests:
			return nil, errors.ErrRateLimited
		default:
			return nil, errors.NewTransportError(method, false,
				fmt.Errorf("telegram API error %d: %s", api.ErrorCode, api.Description))
		}
	}

	return api.Result, nil
}
