package monitor

import (
	"sort"
	"time"

	"metawatch/internal/models"
)

// OrderFate is the terminal classification of a disappeared pending order.
type OrderFate int

const (
	// FateTriggered means the order filled and became a position.
	FateTriggered OrderFate = iota
	// FateCancelled means the order was withdrawn before triggering.
	FateCancelled
)

// Confirmation tracks one disappeared pending order awaiting resolution.
type Confirmation struct {
	Order models.PendingOrder
	Since time.Time
}

// Resolver delays judgment on disappeared pending orders. An order vanishing
// from the terminal feed is ambiguous for a short window: it may have just
// filled (the position not yet visible in this poll) or been withdrawn. Each
// order moves observed -> missing(since) -> triggered | cancelled, and is
// never resolved twice.
type Resolver struct {
	delay    time.Duration
	now      func() time.Time
	waiting  map[string]Confirmation
	resolved map[string]struct{}
}

// NewResolver creates a resolver with the given confirmation delay.
func NewResolver(delay time.Duration, now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{
		delay:    delay,
		now:      now,
		waiting:  make(map[string]Confirmation),
		resolved: make(map[string]struct{}),
	}
}

// Track queues a disappeared order for delayed resolution, recording the
// current time as its first-missing timestamp. Returns false if the order is
// already queued or already resolved.
func (r *Resolver) Track(order models.PendingOrder) bool {
	if _, ok := r.resolved[order.ID]; ok {
		return false
	}
	if _, ok := r.waiting[order.ID]; ok {
		return false
	}
	r.waiting[order.ID] = Confirmation{Order: order, Since: r.now()}
	return true
}

// IsResolved reports whether the order id already reached a terminal state.
func (r *Resolver) IsResolved(id string) bool {
	_, ok := r.resolved[id]
	return ok
}

// IsWaiting reports whether the order id is queued awaiting confirmation.
func (r *Resolver) IsWaiting(id string) bool {
	_, ok := r.waiting[id]
	return ok
}

// MarkResolved records a terminal state for an order resolved outside the
// delayed queue (the same-tick trigger fast path).
func (r *Resolver) MarkResolved(id string) {
	delete(r.waiting, id)
	r.resolved[id] = struct{}{}
}

// Due returns the queued confirmations whose delay has elapsed, ordered by
// order id.
func (r *Resolver) Due() []Confirmation {
	now := r.now()
	var due []Confirmation
	for _, c := range r.waiting {
		if now.Sub(c.Since) >= r.delay {
			due = append(due, c)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].Order.ID < due[j].Order.ID })
	return due
}

// Resolve removes the order from the queue and records its terminal state:
// triggered if its id now appears among current positions, cancelled
// otherwise.
func (r *Resolver) Resolve(id string, inPositions bool) OrderFate {
	delete(r.waiting, id)
	r.resolved[id] = struct{}{}
	if inPositions {
		return FateTriggered
	}
	return FateCancelled
}

// ResolvedCount returns the size of the terminal-state record set.
func (r *Resolver) ResolvedCount() int {
	return len(r.resolved)
}

// Compact drops terminal-state records whose ids are no longer referenced,
// bounding the resolver's memory over long sessions.
func (r *Resolver) Compact(referenced func(id string) bool) {
	for id := range r.resolved {
		if !referenced(id) {
			delete(r.resolved, id)
		}
	}
}
