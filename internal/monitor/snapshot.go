package monitor

import (
	"sort"

	"metawatch/internal/models"
)

// mergeSnapshot builds the tracked snapshot for this tick from the previous
// tracked snapshot and the raw terminal state.
//
// Position fields are frozen at first observation: if an id was already
// tracked, its open price, TP, SL, direction and symbol keep the values from
// the tick it first appeared, even when the terminal reports revised values
// for the same id. The originating order id is the one exception, filled in
// later if it was missing at first sight.
func mergeSnapshot(prev, raw models.Snapshot) models.Snapshot {
	merged := models.NewSnapshot()

	for id, pos := range raw.Positions {
		if old, ok := prev.Positions[id]; ok {
			if old.OrderID == "" {
				old.OrderID = pos.OrderID
			}
			merged.Positions[id] = old
		} else {
			merged.Positions[id] = pos
		}
	}

	for id, order := range raw.Orders {
		merged.Orders[id] = order
	}

	return merged
}

// sortedPositions returns the snapshot's positions ordered by id.
func sortedPositions(snap models.Snapshot) []models.Position {
	out := make([]models.Position, 0, len(snap.Positions))
	for _, p := range snap.Positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// sortedOrders returns the snapshot's pending orders ordered by id.
func sortedOrders(snap models.Snapshot) []models.PendingOrder {
	out := make([]models.PendingOrder, 0, len(snap.Orders))
	for _, o := range snap.Orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
