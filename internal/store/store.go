// Package store provides data persistence implementations.
package store

import (
	"context"
	"time"

	"metawatch/internal/models"
)

// Journal archives ledger outcomes so the day's history survives restarts of
// the otherwise stateless reconciliation engine. Writes from the loop are
// best-effort; a journal failure is logged, never fatal.
type Journal interface {
	RecordClose(ctx context.Context, day time.Time, rec models.ClosedPosition) error
	RecordCancellation(ctx context.Context, day time.Time, rec models.CancelledOrder) error
	Closes(ctx context.Context, day time.Time) ([]models.ClosedPosition, error)
	Cancellations(ctx context.Context, day time.Time) ([]models.CancelledOrder, error)
	Close() error
}
