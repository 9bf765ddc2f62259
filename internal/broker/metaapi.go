package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"metawatch/internal/errors"
	"metawatch/internal/models"
	"metawatch/pkg/utils"
)

// DefaultBaseURL is the MetaApi client API endpoint.
const DefaultBaseURL = "https://mt-client-api-v1.london.agiliumtrade.ai"

// MetaAPIConfig holds MetaApi terminal configuration.
type MetaAPIConfig struct {
	Token        string
	AccountID    string
	BaseURL      string
	SymbolSuffix string // broker suffix stripped from symbols, e.g. ".s"
}

// MetaAPITerminal reads terminal state through the MetaApi client REST API.
type MetaAPITerminal struct {
	cfg    MetaAPIConfig
	client *http.Client
	log    zerolog.Logger
	synced bool
}

// NewMetaAPITerminal creates a new MetaApi-backed terminal.
func NewMetaAPITerminal(cfg MetaAPIConfig, logger zerolog.Logger) *MetaAPITerminal {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &MetaAPITerminal{
		cfg: cfg,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: logger,
	}
}

// metaPosition mirrors the MetaApi position payload.
type metaPosition struct {
	ID         string  `json:"id"`
	Type       string  `json:"type"`
	Symbol     string  `json:"symbol"`
	OpenPrice  float64 `json:"openPrice"`
	TakeProfit float64 `json:"takeProfit"`
	StopLoss   float64 `json:"stopLoss"`
	OrderID    string  `json:"orderId"`
}

// metaOrder mirrors the MetaApi pending order payload.
type metaOrder struct {
	ID         string  `json:"id"`
	Type       string  `json:"type"`
	Symbol     string  `json:"symbol"`
	OpenPrice  float64 `json:"openPrice"`
	TakeProfit float64 `json:"takeProfit"`
	StopLoss   float64 `json:"stopLoss"`
}

// metaDeal mirrors the MetaApi history deal payload.
type metaDeal struct {
	ID         string    `json:"id"`
	EntryType  string    `json:"entryType"`
	PositionID string    `json:"positionId"`
	Symbol     string    `json:"symbol"`
	Price      float64   `json:"price"`
	Time       time.Time `json:"time"`
}

// Connect verifies credentials and terminal synchronization by reading the
// account information endpoint.
func (t *MetaAPITerminal) Connect(ctx context.Context) error {
	var info struct {
		Platform string `json:"platform"`
		Broker   string `json:"broker"`
	}
	if err := t.get(ctx, "/accountInformation", &info); err != nil {
		return errors.Wrap(err, "connecting to terminal")
	}
	t.synced = true
	t.log.Info().
		Str("platform", info.Platform).
		Str("broker", info.Broker).
		Msg("Connected and synchronized with terminal")
	return nil
}

// Close terminates the terminal session.
func (t *MetaAPITerminal) Close() error {
	t.synced = false
	t.client.CloseIdleConnections()
	return nil
}

// Snapshot returns the current positions and pending orders.
func (t *MetaAPITerminal) Snapshot(ctx context.Context) (models.Snapshot, error) {
	snap := models.NewSnapshot()
	if !t.synced {
		return snap, errors.ErrNotSynchronized
	}

	var positions []metaPosition
	if err := t.get(ctx, "/positions", &positions); err != nil {
		return snap, errors.Wrap(err, "fetching positions")
	}

	var orders []metaOrder
	if err := t.get(ctx, "/orders", &orders); err != nil {
		return snap, errors.Wrap(err, "fetching orders")
	}

	for _, p := range positions {
		if p.ID == "" {
			continue
		}
		snap.Positions[p.ID] = models.Position{
			ID:         p.ID,
			Symbol:     t.normalizeSymbol(p.Symbol),
			Direction:  positionDirection(p.Type),
			OpenPrice:  p.OpenPrice,
			TakeProfit: p.TakeProfit,
			StopLoss:   p.StopLoss,
			OrderID:    p.OrderID,
		}
	}

	for _, o := range orders {
		if o.ID == "" {
			continue
		}
		kind, ok := orderKind(o.Type)
		if !ok {
			// Market orders in flight show up here briefly; they are not
			// pending orders and never enter the tracked set.
			continue
		}
		snap.Orders[o.ID] = models.PendingOrder{
			ID:         o.ID,
			Symbol:     t.normalizeSymbol(o.Symbol),
			Kind:       kind,
			Price:      o.OpenPrice,
			TakeProfit: o.TakeProfit,
			StopLoss:   o.StopLoss,
		}
	}

	return snap, nil
}

// ClosingDeal returns the first exit deal for the position.
func (t *MetaAPITerminal) ClosingDeal(ctx context.Context, positionID string) (models.Deal, error) {
	if !t.synced {
		return models.Deal{}, errors.ErrNotSynchronized
	}

	var deals []metaDeal
	if err := t.get(ctx, "/history-deals/position/"+positionID, &deals); err != nil {
		return models.Deal{}, errors.Wrapf(err, "fetching deals for position %s", positionID)
	}

	// History may return deals out of order; take the earliest exit deal.
	sort.Slice(deals, func(i, j int) bool { return deals[i].Time.Before(deals[j].Time) })
	for _, d := range deals {
		if d.EntryType == "DEAL_ENTRY_OUT" {
			return models.Deal{
				ID:         d.ID,
				PositionID: d.PositionID,
				Symbol:     t.normalizeSymbol(d.Symbol),
				Price:      d.Price,
				Time:       d.Time,
			}, nil
		}
	}
	return models.Deal{}, errors.ErrNoClosingDeal
}

func (t *MetaAPITerminal) get(ctx context.Context, path string, target interface{}) error {
	url := fmt.Sprintf("%s/users/current/accounts/%s%s", t.cfg.BaseURL, t.cfg.AccountID, path)

	body, err := utils.RetryWithResult(ctx, utils.FixedRetryConfig(3, 500*time.Millisecond), func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("auth-token", t.cfg.Token)
		req.Header.Set("Accept", "application/json")

		resp, err := t.client.Do(req)
		if err != nil {
			return nil, errors.Wrap(err, "request failed")
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, errors.Wrap(err, "reading response")
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return data, nil
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, errors.ErrNotAuthenticated
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, errors.ErrRateLimited
		default:
			return nil, errors.NewBrokerError(
				fmt.Sprintf("HTTP_%d", resp.StatusCode),
				strings.TrimSpace(string(data)),
				nil,
			)
		}
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, target); err != nil {
		return errors.Wrap(err, "decoding response")
	}
	return nil
}

func (t *MetaAPITerminal) normalizeSymbol(symbol string) string {
	if t.cfg.SymbolSuffix != "" {
		return strings.TrimSuffix(symbol, t.cfg.SymbolSuffix)
	}
	return symbol
}

func positionDirection(metaType string) models.Direction {
	if strings.Contains(strings.ToLower(metaType), "buy") {
		return models.DirectionLong
	}
	return models.DirectionShort
}

func orderKind(metaType string) (models.OrderKind, bool) {
	switch {
	case strings.Contains(metaType, "BUY_LIMIT"):
		return models.OrderBuyLimit, true
	case strings.Contains(metaType, "BUY_STOP"):
		return models.OrderBuyStop, true
	case strings.Contains(metaType, "SELL_LIMIT"):
		return models.OrderSellLimit, true
	case strings.Contains(metaType, "SELL_STOP"):
		return models.OrderSellStop, true
	default:
		return "", false
	}
}
