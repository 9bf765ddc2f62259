package monitor

import (
	"sort"

	"metawatch/internal/models"
)

// Delta describes the entity-level differences between two snapshots.
type Delta struct {
	ClosedPositions   []string // present before, absent now
	NewPositions      []string // absent before, present now
	DisappearedOrders []string // present before, absent now
	NewOrders         []string // absent before, present now
}

// Diff computes the entity-level delta between two snapshots. It is a pure
// function of its inputs; id slices are sorted so processing order is
// deterministic across ticks.
//
// An id that shows up both as a new position and as a current pending order
// is still reported in NewPositions; the caller resolves it through the
// trigger path rather than as an independent entry.
func Diff(prev, cur models.Snapshot) Delta {
	var d Delta

	for id := range prev.Positions {
		if _, ok := cur.Positions[id]; !ok {
			d.ClosedPositions = append(d.ClosedPositions, id)
		}
	}
	for id := range cur.Positions {
		if _, ok := prev.Positions[id]; !ok {
			d.NewPositions = append(d.NewPositions, id)
		}
	}
	for id := range prev.Orders {
		if _, ok := cur.Orders[id]; !ok {
			d.DisappearedOrders = append(d.DisappearedOrders, id)
		}
	}
	for id := range cur.Orders {
		if _, ok := prev.Orders[id]; !ok {
			d.NewOrders = append(d.NewOrders, id)
		}
	}

	sort.Strings(d.ClosedPositions)
	sort.Strings(d.NewPositions)
	sort.Strings(d.DisappearedOrders)
	sort.Strings(d.NewOrders)

	return d
}
