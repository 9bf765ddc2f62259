package monitor

import (
	"time"

	"metawatch/internal/models"
)

// Ledger accumulates the day's closed positions, cancelled orders and net
// point total. Exactly one ledger day is active at a time; the first tick on
// a new calendar day replaces the contents wholesale.
type Ledger struct {
	day       time.Time
	closed    []models.ClosedPosition
	cancelled []models.CancelledOrder
	points    float64
}

// NewLedger creates a ledger for the calendar day containing now.
func NewLedger(now time.Time) *Ledger {
	return &Ledger{day: dateOf(now)}
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Rollover resets the ledger if the wall-clock date has advanced past the
// ledger's day. Returns true when a reset happened.
func (l *Ledger) Rollover(now time.Time) bool {
	today := dateOf(now)
	if today.Equal(l.day) {
		return false
	}
	l.day = today
	l.closed = nil
	l.cancelled = nil
	l.points = 0
	return true
}

// Day returns the ledger's calendar day key.
func (l *Ledger) Day() time.Time {
	return l.day
}

// RecordClose appends a closed-position record and adds its points to the
// running total.
func (l *Ledger) RecordClose(rec models.ClosedPosition) {
	l.closed = append(l.closed, rec)
	l.points += rec.Points
}

// RecordCancellation appends a cancelled-order record.
func (l *Ledger) RecordCancellation(rec models.CancelledOrder) {
	l.cancelled = append(l.cancelled, rec)
}

// Closed returns today's closed-position records in close order.
func (l *Ledger) Closed() []models.ClosedPosition {
	return l.closed
}

// Cancelled returns today's cancelled-order records in cancellation order.
func (l *Ledger) Cancelled() []models.CancelledOrder {
	return l.cancelled
}

// Points returns the running net point total.
func (l *Ledger) Points() float64 {
	return l.points
}
