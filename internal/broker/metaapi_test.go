package broker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metawatch/internal/errors"
	"metawatch/internal/models"
)

// newTestTerminal serves canned JSON per endpoint path and returns a connected
// terminal pointed at the fake server.
func newTestTerminal(t *testing.T, routes map[string]string) *MetaAPITerminal {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-token", r.Header.Get("auth-token"))
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	term := NewMetaAPITerminal(MetaAPIConfig{
		Token:        "test-token",
		AccountID:    "acct-1",
		BaseURL:      srv.URL,
		SymbolSuffix: ".s",
	}, zerolog.Nop())
	require.NoError(t, term.Connect(context.Background()))
	return term
}

const accountPath = "/users/current/accounts/acct-1"

func TestSnapshotMapsTerminalState(t *testing.T) {
	term := newTestTerminal(t, map[string]string{
		accountPath + "/accountInformation": `{"platform":"mt5","broker":"Test Broker"}`,
		accountPath + "/positions": `[
			{"id":"P1","type":"POSITION_TYPE_BUY","symbol":"EURUSD.s","openPrice":1.2345,"takeProfit":1.2445,"stopLoss":1.2245,"orderId":"O1"},
			{"id":"P2","type":"POSITION_TYPE_SELL","symbol":"XAUUSD.s","openPrice":2400.5}
		]`,
		accountPath + "/orders": `[
			{"id":"O2","type":"ORDER_TYPE_BUY_LIMIT","symbol":"GBPUSD.s","openPrice":1.19,"takeProfit":1.21,"stopLoss":1.18},
			{"id":"O3","type":"ORDER_TYPE_SELL_STOP","symbol":"EURUSD.s","openPrice":1.15},
			{"id":"O4","type":"ORDER_TYPE_BUY","symbol":"EURUSD.s","openPrice":1.2}
		]`,
	})

	snap, err := term.Snapshot(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.Positions, 2)
	p1 := snap.Positions["P1"]
	assert.Equal(t, models.DirectionLong, p1.Direction)
	assert.Equal(t, "EURUSD", p1.Symbol, "broker suffix should be stripped")
	assert.Equal(t, 1.2345, p1.OpenPrice)
	assert.Equal(t, "O1", p1.OrderID)
	assert.Equal(t, models.DirectionShort, snap.Positions["P2"].Direction)

	// The in-flight market order O4 is not a pending order.
	require.Len(t, snap.Orders, 2)
	assert.Equal(t, models.OrderBuyLimit, snap.Orders["O2"].Kind)
	assert.Equal(t, 1.19, snap.Orders["O2"].Price)
	assert.Equal(t, models.OrderSellStop, snap.Orders["O3"].Kind)
}

func TestSnapshotRequiresConnect(t *testing.T) {
	term := NewMetaAPITerminal(MetaAPIConfig{Token: "t", AccountID: "a"}, zerolog.Nop())

	_, err := term.Snapshot(context.Background())
	assert.ErrorIs(t, err, errors.ErrNotSynchronized)
}

func TestClosingDealPicksEarliestExit(t *testing.T) {
	term := newTestTerminal(t, map[string]string{
		accountPath + "/accountInformation": `{"platform":"mt5"}`,
		accountPath + "/history-deals/position/P1": `[
			{"id":"D3","entryType":"DEAL_ENTRY_OUT","positionId":"P1","symbol":"EURUSD.s","price":1.2444,"time":"2026-03-10T15:00:05Z"},
			{"id":"D1","entryType":"DEAL_ENTRY_IN","positionId":"P1","symbol":"EURUSD.s","price":1.2345,"time":"2026-03-10T09:00:00Z"},
			{"id":"D2","entryType":"DEAL_ENTRY_OUT","positionId":"P1","symbol":"EURUSD.s","price":1.2443,"time":"2026-03-10T15:00:00Z"}
		]`,
	})

	deal, err := term.ClosingDeal(context.Background(), "P1")
	require.NoError(t, err)
	assert.Equal(t, "D2", deal.ID, "earliest exit deal wins")
	assert.Equal(t, 1.2443, deal.Price)
	assert.Equal(t, "EURUSD", deal.Symbol)
}

func TestClosingDealNoExit(t *testing.T) {
	term := newTestTerminal(t, map[string]string{
		accountPath + "/accountInformation": `{"platform":"mt5"}`,
		accountPath + "/history-deals/position/P1": `[
			{"id":"D1","entryType":"DEAL_ENTRY_IN","positionId":"P1","price":1.2345,"time":"2026-03-10T09:00:00Z"}
		]`,
	})

	_, err := term.ClosingDeal(context.Background(), "P1")
	assert.ErrorIs(t, err, errors.ErrNoClosingDeal)
}

func TestConnectRejectsBadCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	term := NewMetaAPITerminal(MetaAPIConfig{
		Token:     "bad-token",
		AccountID: "acct-1",
		BaseURL:   srv.URL,
	}, zerolog.Nop())

	err := term.Connect(context.Background())
	assert.ErrorIs(t, err, errors.ErrNotAuthenticated)
}

func TestScriptedTerminalReplay(t *testing.T) {
	first := models.NewSnapshot()
	first.Positions["P1"] = models.Position{ID: "P1"}
	second := models.NewSnapshot()

	term := NewScriptedTerminal(first, second)
	ctx := context.Background()

	_, err := term.Snapshot(ctx)
	assert.ErrorIs(t, err, errors.ErrNotSynchronized, "snapshot before connect")

	require.NoError(t, term.Connect(ctx))

	snap, err := term.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Positions, 1)

	snap, err = term.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Positions)

	// The last snapshot repeats once the script is exhausted.
	snap, err = term.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Positions)
}
