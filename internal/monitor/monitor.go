// Package monitor implements the reconciliation and notification engine: it
// polls the broker terminal, diffs consecutive snapshots, classifies the
// resulting events and hands them to the messaging transport.
package monitor

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"metawatch/internal/broker"
	"metawatch/internal/errors"
	"metawatch/internal/logging"
	"metawatch/internal/models"
	"metawatch/internal/store"
	"metawatch/internal/telegram"
	"metawatch/pkg/utils"
)

const (
	// dealRetryDelay is the short bounded wait before the second (and last)
	// attempt to find a closing deal in history.
	dealRetryDelay = 100 * time.Millisecond

	// compactThreshold bounds the resolver's terminal-state record set.
	compactThreshold = 1000
)

// Config holds reconciliation loop settings.
type Config struct {
	PollInterval       time.Duration
	ConfirmationDelay  time.Duration
	SummaryMinInterval time.Duration
	ReconnectDelay     time.Duration
}

// Monitor runs the reconciliation loop. One tick executes at a time; all
// tracked state is owned by the loop, so no locking is needed. A reconnect
// discards the tracked state and rebuilds it from a fresh snapshot.
type Monitor struct {
	cfg      Config
	log      zerolog.Logger
	terminal broker.Terminal
	msgr     telegram.Messenger
	journal  store.Journal // may be nil
	clock    func() time.Time

	tracked    models.Snapshot
	resolver   *Resolver
	dispatcher *Dispatcher
	ledger     *Ledger
	summary    *SummaryPublisher
}

// New creates a monitor. journal may be nil to disable archiving.
func New(cfg Config, terminal broker.Terminal, msgr telegram.Messenger, journal store.Journal, logger zerolog.Logger) *Monitor {
	m := &Monitor{
		cfg:      cfg,
		log:      logger,
		terminal: terminal,
		msgr:     msgr,
		journal:  journal,
		clock:    time.Now,
	}
	m.resetState()
	return m
}

// resetState clears all tracked state, as after a reconnect: the next tick's
// snapshot becomes the new baseline.
func (m *Monitor) resetState() {
	m.tracked = models.NewSnapshot()
	m.resolver = NewResolver(m.cfg.ConfirmationDelay, m.clock)
	m.dispatcher = NewDispatcher(m.msgr, m.log)
	m.ledger = NewLedger(m.clock())
	m.summary = NewSummaryPublisher(m.msgr, m.cfg.SummaryMinInterval, m.clock, m.log)
}

// Run executes the monitor until the context is cancelled. Unclassified and
// protocol errors tear the connection down and reconnect from scratch after
// a backoff delay; transient errors retry in place.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		if err := m.runConnection(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.log.Error().Err(err).Msg("Connection lost, restarting from scratch")
		}

		if err := sleepCtx(ctx, m.cfg.ReconnectDelay); err != nil {
			return err
		}
		m.log.Info().Msg("Reconnecting to terminal")
	}
}

func (m *Monitor) runConnection(ctx context.Context) error {
	if err := m.terminal.Connect(ctx); err != nil {
		return errors.Wrap(err, "connecting terminal")
	}
	defer m.terminal.Close()

	m.resetState()

	for {
		if err := m.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.IsRetriable(err) {
				m.log.Warn().Err(err).Msg("Transient error, retrying")
				if err := sleepCtx(ctx, m.cfg.ReconnectDelay); err != nil {
					return err
				}
				continue
			}
			return err
		}

		if err := sleepCtx(ctx, m.cfg.PollInterval); err != nil {
			return err
		}
	}
}

// Tick performs one reconciliation pass: pull snapshot, diff, resolve
// confirmations, classify closes, update the ledger, dispatch notifications,
// refresh the summary, persist state for the next tick.
//
// Ordering matters: closed positions are processed before disappeared-order
// confirmation, which runs before new positions, which run before new
// pending orders. A just-triggered order is therefore marked linked before
// the new-position pass, so it is never announced twice.
func (m *Monitor) Tick(ctx context.Context) error {
	now := m.clock()
	if m.ledger.Rollover(now) {
		m.summary.Invalidate()
		m.log.Info().
			Str("day", m.ledger.Day().Format("2006-01-02")).
			Msg("New day started, daily statistics reset")
	}

	raw, err := m.terminal.Snapshot(ctx)
	if err != nil {
		return errors.Wrap(err, "fetching snapshot")
	}
	cur := mergeSnapshot(m.tracked, raw)
	delta := Diff(m.tracked, cur)

	updateNeeded := false

	for _, id := range delta.ClosedPositions {
		if err := m.handleClose(ctx, m.tracked.Positions[id]); err != nil {
			return err
		}
		// Drop the position from the tracked set immediately, so a retried
		// tick does not reprocess a close that was already announced.
		delete(m.tracked.Positions, id)
		// Closes are the highest-value signal; refresh past the throttle.
		if err := m.summary.Refresh(ctx, cur, m.ledger, true); err != nil {
			return err
		}
	}

	for _, id := range delta.DisappearedOrders {
		if m.resolver.IsResolved(id) || m.resolver.IsWaiting(id) {
			continue
		}
		updateNeeded = true

		if pos, ok := cur.Positions[id]; ok {
			// Fast path: the order filled within the same tick.
			if err := m.dispatcher.AnnounceTriggered(ctx, pos); err != nil {
				return err
			}
			m.resolver.MarkResolved(id)
			continue
		}

		m.resolver.Track(m.tracked.Orders[id])
		olog := logging.WithOrderID(m.log, id)
		olog.Debug().
			Dur("delay", m.cfg.ConfirmationDelay).
			Msg("Order disappeared, awaiting confirmation")
	}

	// The notification is sent before the resolver and ledger commit a
	// terminal state. A transient send failure therefore leaves the order
	// waiting, and the retried tick announces it again instead of silently
	// dropping a resolved order.
	for _, c := range m.resolver.Due() {
		id := c.Order.ID
		log := logging.WithSymbol(logging.WithOrderID(m.log, id), c.Order.Symbol)
		_, inPositions := cur.Positions[id]
		updateNeeded = true

		if inPositions {
			if err := m.dispatcher.AnnounceTriggered(ctx, cur.Positions[id]); err != nil {
				return err
			}
			m.resolver.Resolve(id, true)
			log.Info().Msg("Order triggered")
			continue
		}

		if err := m.dispatcher.AnnounceCancelled(ctx, c.Order); err != nil {
			return err
		}
		m.resolver.Resolve(id, false)
		rec := models.CancelledOrder{
			ID:          id,
			Symbol:      c.Order.Symbol,
			Kind:        c.Order.Kind,
			Price:       c.Order.Price,
			CancelledAt: now,
		}
		m.ledger.RecordCancellation(rec)
		m.archiveCancellation(ctx, rec)
		log.Info().Msg("Order cancelled")
	}

	for _, id := range delta.NewPositions {
		if m.dispatcher.IsLinked(id) || m.dispatcher.HasPositionMessage(id) {
			continue
		}
		pos := cur.Positions[id]

		// A position id matching a pending order is the trigger path, not an
		// independent new position.
		_, pendingToo := cur.Orders[id]
		if pendingToo || m.dispatcher.HasOrderMessage(id) {
			if err := m.dispatcher.AnnounceTriggered(ctx, pos); err != nil {
				return err
			}
			m.resolver.MarkResolved(id)
			updateNeeded = true
			continue
		}

		if err := m.dispatcher.AnnouncePosition(ctx, pos); err != nil {
			return err
		}
		updateNeeded = true
	}

	for _, id := range delta.NewOrders {
		if m.resolver.IsResolved(id) || m.dispatcher.HasOrderMessage(id) || m.dispatcher.HasPositionMessage(id) {
			continue
		}
		if err := m.dispatcher.AnnouncePendingOrder(ctx, cur.Orders[id]); err != nil {
			return err
		}
		updateNeeded = true
	}

	if m.summary.PinnedID() == 0 || updateNeeded {
		if err := m.summary.Refresh(ctx, cur, m.ledger, false); err != nil {
			return err
		}
	}

	m.tracked = cur
	if m.resolver.ResolvedCount() > compactThreshold {
		m.resolver.Compact(m.dispatcher.References)
	}
	return nil
}

// handleClose classifies one closed position and emits exactly one
// notification for it, degraded when price data is unavailable.
func (m *Monitor) handleClose(ctx context.Context, pos models.Position) error {
	deal, err := m.terminal.ClosingDeal(ctx, pos.ID)
	if errors.Is(err, errors.ErrNoClosingDeal) {
		// History can lag the position feed by a moment.
		if serr := sleepCtx(ctx, dealRetryDelay); serr != nil {
			return serr
		}
		deal, err = m.terminal.ClosingDeal(ctx, pos.ID)
	}
	if err != nil {
		if errors.Is(err, errors.ErrNoClosingDeal) {
			plog := logging.WithPositionID(logging.WithSymbol(m.log, pos.Symbol), pos.ID)
			plog.Warn().
				Msg("Position closed but no closing deal in history")
			return m.dispatcher.AnnounceCloseDegraded(ctx, pos, "No closing deal found.")
		}
		return errors.Wrapf(err, "fetching closing deal for %s", pos.ID)
	}

	if deal.Price == 0 || pos.OpenPrice == 0 {
		return m.dispatcher.AnnounceCloseDegraded(ctx, pos, "Missing price data.")
	}

	reason, delta := ClassifyClose(pos, deal.Price)
	points := RoundDelta(delta, pos.OpenPrice)

	// Announce first. Recording before a failed send would leave a ledger
	// entry for an event that is re-diffed and re-recorded on the retried
	// tick, double-counting the points.
	if err := m.dispatcher.AnnounceClose(ctx, pos, deal.Price, points, reason); err != nil {
		return err
	}

	rec := models.ClosedPosition{
		ID:       pos.ID,
		Symbol:   pos.Symbol,
		Points:   points,
		Reason:   reason,
		ClosedAt: m.clock(),
	}
	m.ledger.RecordClose(rec)
	m.archiveClose(ctx, rec)
	return nil
}

// Journal writes are best-effort: retried with backoff for transient database
// errors (a busy sqlite file), logged and abandoned when the retries run out.
func (m *Monitor) archiveClose(ctx context.Context, rec models.ClosedPosition) {
	if m.journal == nil {
		return
	}
	err := utils.Retry(ctx, utils.DefaultRetryConfig(), func() error {
		return m.journal.RecordClose(ctx, m.ledger.Day(), rec)
	})
	if err != nil {
		plog := logging.WithPositionID(m.log, rec.ID)
		plog.Warn().Err(err).Msg("Failed to archive close")
	}
}

func (m *Monitor) archiveCancellation(ctx context.Context, rec models.CancelledOrder) {
	if m.journal == nil {
		return
	}
	err := utils.Retry(ctx, utils.DefaultRetryConfig(), func() error {
		return m.journal.RecordCancellation(ctx, m.ledger.Day(), rec)
	})
	if err != nil {
		olog := logging.WithOrderID(m.log, rec.ID)
		olog.Warn().Err(err).Msg("Failed to archive cancellation")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
