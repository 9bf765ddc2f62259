package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"metawatch/internal/models"
)

// SQLiteJournal implements Journal using SQLite.
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal creates a new SQLite-backed journal.
func NewSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	j := &SQLiteJournal{db: db}
	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return j, nil
}

func (j *SQLiteJournal) initSchema() error {
	schema := `
	-- Closed positions, one row per classified close
	CREATE TABLE IF NOT EXISTS closed_positions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		day TEXT NOT NULL,
		position_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		points REAL NOT NULL,
		reason TEXT NOT NULL,
		closed_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_closed_positions_day ON closed_positions(day);

	-- Cancelled pending orders
	CREATE TABLE IF NOT EXISTS cancelled_orders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		day TEXT NOT NULL,
		order_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		kind TEXT NOT NULL,
		price REAL NOT NULL,
		cancelled_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_cancelled_orders_day ON cancelled_orders(day);
	`
	_, err := j.db.Exec(schema)
	return err
}

func dayKey(day time.Time) string {
	return day.Format("2006-01-02")
}

// RecordClose archives one closed-position record.
func (j *SQLiteJournal) RecordClose(ctx context.Context, day time.Time, rec models.ClosedPosition) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO closed_positions (day, position_id, symbol, points, reason, closed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		dayKey(day), rec.ID, rec.Symbol, rec.Points, string(rec.Reason), rec.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("recording close: %w", err)
	}
	return nil
}

// RecordCancellation archives one cancelled-order record.
func (j *SQLiteJournal) RecordCancellation(ctx context.Context, day time.Time, rec models.CancelledOrder) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO cancelled_orders (day, order_id, symbol, kind, price, cancelled_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		dayKey(day), rec.ID, rec.Symbol, string(rec.Kind), rec.Price, rec.CancelledAt,
	)
	if err != nil {
		return fmt.Errorf("recording cancellation: %w", err)
	}
	return nil
}

// Closes returns the day's archived closed positions in close order.
func (j *SQLiteJournal) Closes(ctx context.Context, day time.Time) ([]models.ClosedPosition, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT position_id, symbol, points, reason, closed_at
		 FROM closed_positions WHERE day = ? ORDER BY id`,
		dayKey(day),
	)
	if err != nil {
		return nil, fmt.Errorf("querying closes: %w", err)
	}
	defer rows.Close()

	var out []models.ClosedPosition
	for rows.Next() {
		var rec models.ClosedPosition
		var reason string
		if err := rows.Scan(&rec.ID, &rec.Symbol, &rec.Points, &reason, &rec.ClosedAt); err != nil {
			return nil, fmt.Errorf("scanning close: %w", err)
		}
		rec.Reason = models.CloseReason(reason)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Cancellations returns the day's archived cancelled orders.
func (j *SQLiteJournal) Cancellations(ctx context.Context, day time.Time) ([]models.CancelledOrder, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT order_id, symbol, kind, price, cancelled_at
		 FROM cancelled_orders WHERE day = ? ORDER BY id`,
		dayKey(day),
	)
	if err != nil {
		return nil, fmt.Errorf("querying cancellations: %w", err)
	}
	defer rows.Close()

	var out []models.CancelledOrder
	for rows.Next() {
		var rec models.CancelledOrder
		var kind string
		if err := rows.Scan(&rec.ID, &rec.Symbol, &kind, &rec.Price, &rec.CancelledAt); err != nil {
			return nil, fmt.Errorf("scanning cancellation: %w", err)
		}
		rec.Kind = models.OrderKind(kind)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
