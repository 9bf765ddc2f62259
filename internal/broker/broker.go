// Package broker provides broker terminal integration interfaces and
// implementations.
package broker

import (
	"context"

	"metawatch/internal/models"
)

// Terminal defines the interface for reading broker terminal state. The
// terminal is treated as a reliable collaborator once Connect succeeds; the
// reconciliation loop rebuilds its tracked state from a fresh snapshot after
// every reconnect.
type Terminal interface {
	// Connect establishes the terminal session and waits until the terminal
	// state is synchronized.
	Connect(ctx context.Context) error
	Close() error

	// Snapshot returns the current open positions and pending orders.
	Snapshot(ctx context.Context) (models.Snapshot, error)

	// ClosingDeal returns the first exit deal recorded for the position.
	// Returns errors.ErrNoClosingDeal if history has no exit deal yet.
	ClosingDeal(ctx context.Context, positionID string) (models.Deal, error)
}
