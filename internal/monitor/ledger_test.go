package monitor

import (
	"math"
	"testing"
	"time"

	"metawatch/internal/models"
)

func TestLedgerAccumulates(t *testing.T) {
	l := NewLedger(time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC))

	l.RecordClose(models.ClosedPosition{ID: "P1", Symbol: "EURUSD", Points: 0.0098, Reason: models.CloseTakeProfit})
	l.RecordClose(models.ClosedPosition{ID: "P2", Symbol: "GBPUSD", Points: -0.0050, Reason: models.CloseStopLoss})
	l.RecordCancellation(models.CancelledOrder{ID: "O1", Symbol: "XAUUSD", Kind: models.OrderBuyLimit})

	if got := len(l.Closed()); got != 2 {
		t.Errorf("len(Closed()) = %d, want 2", got)
	}
	if got := len(l.Cancelled()); got != 1 {
		t.Errorf("len(Cancelled()) = %d, want 1", got)
	}
	if got := l.Points(); math.Abs(got-0.0048) > 1e-9 {
		t.Errorf("Points() = %v, want 0.0048", got)
	}
}

func TestLedgerRolloverOncePerDay(t *testing.T) {
	start := time.Date(2026, 3, 10, 23, 50, 0, 0, time.UTC)
	l := NewLedger(start)
	l.RecordClose(models.ClosedPosition{ID: "P1", Points: 1.5})

	// Same day, later hour: no rollover.
	if l.Rollover(start.Add(5 * time.Minute)) {
		t.Error("Rollover fired within the same day")
	}
	if len(l.Closed()) != 1 {
		t.Error("records lost without a rollover")
	}

	// Past midnight: exactly one rollover, records cleared.
	afterMidnight := start.Add(15 * time.Minute)
	if !l.Rollover(afterMidnight) {
		t.Fatal("Rollover did not fire after midnight")
	}
	if len(l.Closed()) != 0 || len(l.Cancelled()) != 0 || l.Points() != 0 {
		t.Error("ledger not cleared by rollover")
	}
	if got := l.Day(); !got.Equal(time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Day() = %v, want 2026-03-11", got)
	}

	// Second check on the new day: no second rollover.
	if l.Rollover(afterMidnight.Add(time.Hour)) {
		t.Error("Rollover fired twice for the same day")
	}
}

func TestLedgerRolloverAcrossMultipleDays(t *testing.T) {
	l := NewLedger(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))

	// A long gap (weekend, terminal outage) still rolls over exactly once.
	if !l.Rollover(time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)) {
		t.Fatal("Rollover did not fire across a multi-day gap")
	}
	if got := l.Day(); !got.Equal(time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Day() = %v, want 2026-03-14", got)
	}
}
