package monitor

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"metawatch/internal/errors"
	"metawatch/internal/models"
)

func TestSummaryCreatesAndPins(t *testing.T) {
	msgr := newFakeMessenger()
	clock := newFakeClock()
	p := NewSummaryPublisher(msgr, 2*time.Second, clock.Now, zerolog.Nop())
	ledger := NewLedger(clock.Now())

	snap := snapWith(
		[]models.Position{{ID: "P1", Symbol: "EURUSD", Direction: models.DirectionLong}},
		[]models.PendingOrder{{ID: "O1", Symbol: "XAUUSD", Kind: models.OrderBuyLimit}},
	)

	if err := p.Refresh(context.Background(), snap, ledger, false); err != nil {
		t.Fatal(err)
	}
	if p.PinnedID() == 0 {
		t.Fatal("no pinned message after first refresh")
	}
	if len(msgr.pinned) != 1 || msgr.pinned[0] != p.PinnedID() {
		t.Errorf("pinned = %v, want [%d]", msgr.pinned, p.PinnedID())
	}

	text := msgr.lastSent().text
	for _, want := range []string{
		"TRADING OVERVIEW",
		"ACTIVE POSITIONS (1)",
		"EURUSD BUY | ID: P1",
		"PENDING ORDERS (1)",
		"XAUUSD BUY LIMIT | ID: O1",
		"TODAY'S CLOSED POSITIONS (0)",
		"TOTAL POINTS TODAY: 0",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("summary missing %q:\n%s", want, text)
		}
	}
}

func TestSummaryThrottlesEdits(t *testing.T) {
	msgr := newFakeMessenger()
	clock := newFakeClock()
	p := NewSummaryPublisher(msgr, 2*time.Second, clock.Now, zerolog.Nop())
	ledger := NewLedger(clock.Now())
	snap := models.NewSnapshot()
	ctx := context.Background()

	if err := p.Refresh(ctx, snap, ledger, false); err != nil {
		t.Fatal(err)
	}

	// Within the minimum interval: skipped.
	clock.Advance(time.Second)
	if err := p.Refresh(ctx, snap, ledger, false); err != nil {
		t.Fatal(err)
	}
	if len(msgr.edits) != 0 {
		t.Error("refresh inside the throttle window was not skipped")
	}

	// Forced refresh goes through regardless.
	if err := p.Refresh(ctx, snap, ledger, true); err != nil {
		t.Fatal(err)
	}
	if len(msgr.edits) != 1 {
		t.Errorf("forced refresh edits = %d, want 1", len(msgr.edits))
	}

	// Past the interval: goes through.
	clock.Advance(3 * time.Second)
	if err := p.Refresh(ctx, snap, ledger, false); err != nil {
		t.Fatal(err)
	}
	if len(msgr.edits) != 2 {
		t.Errorf("post-throttle edits = %d, want 2", len(msgr.edits))
	}
}

func TestSummaryRecreatesWhenMessageGone(t *testing.T) {
	msgr := newFakeMessenger()
	clock := newFakeClock()
	p := NewSummaryPublisher(msgr, 0, clock.Now, zerolog.Nop())
	ledger := NewLedger(clock.Now())
	snap := models.NewSnapshot()
	ctx := context.Background()

	if err := p.Refresh(ctx, snap, ledger, false); err != nil {
		t.Fatal(err)
	}
	firstID := p.PinnedID()

	// The channel's pinned message was deleted out from under us.
	msgr.editErr = errors.NewTransportError("editMessageText", false, errors.ErrMessageNotFound)
	clock.Advance(time.Second)
	if err := p.Refresh(ctx, snap, ledger, false); err != nil {
		t.Fatal(err)
	}
	if p.PinnedID() == firstID {
		t.Error("publisher kept the id of a deleted message")
	}
	if len(msgr.pinned) != 2 {
		t.Errorf("pins = %d, want 2", len(msgr.pinned))
	}
}

func TestSummaryPropagatesOtherEditErrors(t *testing.T) {
	msgr := newFakeMessenger()
	clock := newFakeClock()
	p := NewSummaryPublisher(msgr, 0, clock.Now, zerolog.Nop())
	ledger := NewLedger(clock.Now())
	snap := models.NewSnapshot()
	ctx := context.Background()

	if err := p.Refresh(ctx, snap, ledger, false); err != nil {
		t.Fatal(err)
	}

	msgr.editErr = errors.ErrRateLimited
	clock.Advance(time.Second)
	if err := p.Refresh(ctx, snap, ledger, false); !errors.Is(err, errors.ErrRateLimited) {
		t.Errorf("Refresh() = %v, want rate-limit error propagated", err)
	}
}

func TestSummaryInvalidate(t *testing.T) {
	msgr := newFakeMessenger()
	clock := newFakeClock()
	p := NewSummaryPublisher(msgr, 0, clock.Now, zerolog.Nop())
	ledger := NewLedger(clock.Now())
	ctx := context.Background()

	if err := p.Refresh(ctx, models.NewSnapshot(), ledger, false); err != nil {
		t.Fatal(err)
	}
	p.Invalidate()
	if p.PinnedID() != 0 {
		t.Error("Invalidate did not clear the pinned id")
	}

	if err := p.Refresh(ctx, models.NewSnapshot(), ledger, false); err != nil {
		t.Fatal(err)
	}
	if p.PinnedID() == 0 || len(msgr.pinned) != 2 {
		t.Error("refresh after Invalidate did not create a new pinned message")
	}
}

func TestSummaryRendersLedgerSections(t *testing.T) {
	clock := newFakeClock()
	ledger := NewLedger(clock.Now())
	ledger.RecordClose(models.ClosedPosition{ID: "P1", Symbol: "EURUSD", Points: 0.0098, Reason: models.CloseTakeProfit})
	ledger.RecordClose(models.ClosedPosition{ID: "P2", Symbol: "GBPUSD", Points: -0.005, Reason: models.CloseStopLoss})
	ledger.RecordCancellation(models.CancelledOrder{ID: "O1", Symbol: "XAUUSD", Kind: models.OrderSellStop})

	text := renderSummary(clock.Now(), models.NewSnapshot(), ledger)

	for _, want := range []string{
		"TODAY'S CLOSED POSITIONS (2)",
		"EURUSD | Points: 0.0098 | ID: P1",
		"TODAY'S CANCELLED ORDERS (1)",
		"XAUUSD SELL STOP | ID: O1",
		"🟢 **TOTAL POINTS TODAY: 0.0048**",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("summary missing %q:\n%s", want, text)
		}
	}
}
