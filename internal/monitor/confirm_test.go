package monitor

import (
	"testing"
	"time"

	"metawatch/internal/models"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func TestResolverDelaysJudgment(t *testing.T) {
	clock := newFakeClock()
	r := NewResolver(3*time.Second, clock.Now)
	order := models.PendingOrder{ID: "O1", Symbol: "EURUSD", Kind: models.OrderBuyLimit}

	if !r.Track(order) {
		t.Fatal("Track() = false for a fresh order")
	}
	if !r.IsWaiting("O1") {
		t.Error("order not waiting after Track")
	}
	if len(r.Due()) != 0 {
		t.Error("order due before delay elapsed")
	}

	clock.Advance(2 * time.Second)
	if len(r.Due()) != 0 {
		t.Error("order due 1s early")
	}

	clock.Advance(time.Second)
	due := r.Due()
	if len(due) != 1 || due[0].Order.ID != "O1" {
		t.Fatalf("Due() = %v, want exactly O1", due)
	}
}

func TestResolverFates(t *testing.T) {
	clock := newFakeClock()
	r := NewResolver(3*time.Second, clock.Now)

	r.Track(models.PendingOrder{ID: "T1"})
	r.Track(models.PendingOrder{ID: "C1"})
	clock.Advance(3 * time.Second)

	if fate := r.Resolve("T1", true); fate != FateTriggered {
		t.Errorf("Resolve(T1, in positions) = %v, want FateTriggered", fate)
	}
	if fate := r.Resolve("C1", false); fate != FateCancelled {
		t.Errorf("Resolve(C1, absent) = %v, want FateCancelled", fate)
	}

	for _, id := range []string{"T1", "C1"} {
		if !r.IsResolved(id) {
			t.Errorf("%s not resolved after Resolve", id)
		}
		if r.IsWaiting(id) {
			t.Errorf("%s still waiting after Resolve", id)
		}
	}
}

func TestResolverIdempotence(t *testing.T) {
	clock := newFakeClock()
	r := NewResolver(time.Second, clock.Now)
	order := models.PendingOrder{ID: "O1"}

	r.Track(order)
	if r.Track(order) {
		t.Error("Track() accepted an already-queued order")
	}

	clock.Advance(time.Second)
	r.Resolve("O1", false)

	if r.Track(order) {
		t.Error("Track() accepted an already-resolved order")
	}
	if len(r.Due()) != 0 {
		t.Error("resolved order still due")
	}
}

func TestResolverZeroDelay(t *testing.T) {
	clock := newFakeClock()
	r := NewResolver(0, clock.Now)

	r.Track(models.PendingOrder{ID: "O1"})
	if len(r.Due()) != 1 {
		t.Error("zero-delay resolver should make orders due immediately")
	}
}

func TestResolverMarkResolvedFastPath(t *testing.T) {
	clock := newFakeClock()
	r := NewResolver(3*time.Second, clock.Now)

	r.MarkResolved("O1")
	if !r.IsResolved("O1") {
		t.Error("fast-path order not resolved")
	}
	if r.Track(models.PendingOrder{ID: "O1"}) {
		t.Error("Track() accepted a fast-path resolved order")
	}
}

func TestResolverDueIsSorted(t *testing.T) {
	clock := newFakeClock()
	r := NewResolver(0, clock.Now)

	for _, id := range []string{"C", "A", "B"} {
		r.Track(models.PendingOrder{ID: id})
	}

	due := r.Due()
	if len(due) != 3 || due[0].Order.ID != "A" || due[1].Order.ID != "B" || due[2].Order.ID != "C" {
		t.Errorf("Due() order ids not sorted: %v", due)
	}
}

func TestResolverCompact(t *testing.T) {
	clock := newFakeClock()
	r := NewResolver(0, clock.Now)

	for _, id := range []string{"A", "B", "C"} {
		r.MarkResolved(id)
	}
	if r.ResolvedCount() != 3 {
		t.Fatalf("ResolvedCount() = %d, want 3", r.ResolvedCount())
	}

	r.Compact(func(id string) bool { return id == "B" })
	if r.ResolvedCount() != 1 {
		t.Errorf("ResolvedCount() after compact = %d, want 1", r.ResolvedCount())
	}
	if !r.IsResolved("B") {
		t.Error("referenced id B dropped by compaction")
	}
	if r.IsResolved("A") || r.IsResolved("C") {
		t.Error("unreferenced ids survived compaction")
	}
}
