package monitor

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"metawatch/internal/errors"
	"metawatch/internal/models"
	"metawatch/internal/telegram"
)

// SummaryPublisher maintains the single pinned overview message. It edits the
// message in place, recreates it when the transport reports it gone, and
// throttles refreshes to a minimum interval unless a refresh is forced or no
// pinned message exists yet.
type SummaryPublisher struct {
	msgr        telegram.Messenger
	log         zerolog.Logger
	minInterval time.Duration
	now         func() time.Time

	pinnedID    int64
	lastRefresh time.Time
}

// NewSummaryPublisher creates a publisher with no pinned message.
func NewSummaryPublisher(msgr telegram.Messenger, minInterval time.Duration, now func() time.Time, logger zerolog.Logger) *SummaryPublisher {
	if now == nil {
		now = time.Now
	}
	return &SummaryPublisher{
		msgr:        msgr,
		log:         logger,
		minInterval: minInterval,
		now:         now,
	}
}

// PinnedID returns the id of the current pinned message, 0 if absent.
func (p *SummaryPublisher) PinnedID() int64 {
	return p.pinnedID
}

// Invalidate forgets the pinned message so the next refresh creates a fresh
// one. Called on day rollover.
func (p *SummaryPublisher) Invalidate() {
	p.pinnedID = 0
}

// Refresh upserts the pinned overview. Throttled refreshes are skipped
// unless force is set (close events always force an immediate refresh) or no
// pinned message exists.
func (p *SummaryPublisher) Refresh(ctx context.Context, snap models.Snapshot, ledger *Ledger, force bool) error {
	now := p.now()
	if p.pinnedID != 0 && !force && now.Sub(p.lastRefresh) < p.minInterval {
		return nil
	}

	text := renderSummary(now, snap, ledger)

	if p.pinnedID != 0 {
		err := p.msgr.Edit(ctx, p.pinnedID, text)
		if err == nil {
			p.lastRefresh = now
			return nil
		}
		if !errors.Is(err, errors.ErrMessageNotFound) {
			return err
		}
		p.log.Warn().Int64("message_id", p.pinnedID).Msg("Pinned summary gone, creating a new one")
		p.pinnedID = 0
	}

	id, err := p.msgr.Send(ctx, text, 0)
	if err != nil {
		return err
	}
	if err := p.msgr.Pin(ctx, id); err != nil {
		return err
	}
	p.pinnedID = id
	p.lastRefresh = now
	p.log.Info().Int64("message_id", id).Msg("New summary message pinned")
	return nil
}

// renderSummary renders the trading-overview message. Timestamps are UTC.
func renderSummary(now time.Time, snap models.Snapshot, ledger *Ledger) string {
	nowUTC := now.UTC()

	var sb strings.Builder
	sb.WriteString("📊 **TRADING OVERVIEW** 📊\n")
	fmt.Fprintf(&sb, "📅 __%s__ | ⏱️ Last update: __%s UTC__\n\n",
		nowUTC.Format("02 Jan 2006"), nowUTC.Format("15:04:05"))

	positions := sortedPositions(snap)
	fmt.Fprintf(&sb, "📌 **ACTIVE POSITIONS (%d)**\n", len(positions))
	if len(positions) == 0 {
		sb.WriteString("-\n")
	}
	for _, pos := range positions {
		fmt.Fprintf(&sb, "__%s %s | ID: %s__\n", pos.Symbol, pos.Direction, pos.ID)
	}
	sb.WriteString("\n")

	orders := sortedOrders(snap)
	fmt.Fprintf(&sb, "⏳ **PENDING ORDERS (%d)**\n", len(orders))
	if len(orders) == 0 {
		sb.WriteString("-\n")
	}
	for _, order := range orders {
		fmt.Fprintf(&sb, "__%s %s | ID: %s__\n", order.Symbol, order.Kind.Label(), order.ID)
	}
	sb.WriteString("\n")

	closed := ledger.Closed()
	fmt.Fprintf(&sb, "🏁 **TODAY'S CLOSED POSITIONS (%d)**\n", len(closed))
	if len(closed) == 0 {
		sb.WriteString("-\n")
	}
	for _, rec := range closed {
		fmt.Fprintf(&sb, "__%s | Points: %s | ID: %s__\n", rec.Symbol, fmtPrice(rec.Points), rec.ID)
	}
	sb.WriteString("\n")

	if cancelled := ledger.Cancelled(); len(cancelled) > 0 {
		fmt.Fprintf(&sb, "🚫 **TODAY'S CANCELLED ORDERS (%d)**\n", len(cancelled))
		for _, rec := range cancelled {
			fmt.Fprintf(&sb, "__%s %s | ID: %s__\n", rec.Symbol, rec.Kind.Label(), rec.ID)
		}
		sb.WriteString("\n")
	}

	points := ledger.Points()
	emoji := "⚪️"
	if points > 0 {
		emoji = "🟢"
	} else if points < 0 {
		emoji = "🔴"
	}
	// Totals accumulate float noise across instruments; 5 places is finer
	// than any quoting convention in use.
	total := math.Round(points*1e5) / 1e5
	fmt.Fprintf(&sb, "%s **TOTAL POINTS TODAY: %s**\n", emoji, fmtPrice(total))

	return sb.String()
}
