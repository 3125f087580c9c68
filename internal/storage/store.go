// Package storage persists orders, wallet balances, and their audit logs in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"trade_engine/internal/core"
	apperrors "trade_engine/pkg/errors"

	"github.com/shopspring/decimal"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	id                TEXT PRIMARY KEY,
	exchange_order_id TEXT NOT NULL DEFAULT '',
	symbol            TEXT NOT NULL,
	type              TEXT NOT NULL,
	side              TEXT NOT NULL,
	amount            TEXT NOT NULL,
	price             TEXT NOT NULL DEFAULT '0',
	stop_price        TEXT NOT NULL DEFAULT '0',
	status            TEXT NOT NULL,
	filled            TEXT NOT NULL DEFAULT '0',
	remaining         TEXT NOT NULL DEFAULT '0',
	cost              TEXT NOT NULL DEFAULT '0',
	fee               TEXT NOT NULL DEFAULT '0',
	reason            TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMP NOT NULL,
	closed_at         TIMESTAMP
);

CREATE TABLE IF NOT EXISTS order_events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	order_id    TEXT NOT NULL,
	from_status TEXT NOT NULL,
	to_status   TEXT NOT NULL,
	note        TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS wallets (
	exchange_id  TEXT NOT NULL,
	currency     TEXT NOT NULL,
	available    TEXT NOT NULL,
	in_orders    TEXT NOT NULL,
	total        TEXT NOT NULL,
	last_updated TIMESTAMP NOT NULL,
	PRIMARY KEY (exchange_id, currency)
);

CREATE TABLE IF NOT EXISTS wallet_transactions (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	exchange_id    TEXT NOT NULL,
	currency       TEXT NOT NULL,
	type           TEXT NOT NULL,
	amount         TEXT NOT NULL,
	balance_before TEXT NOT NULL,
	balance_after  TEXT NOT NULL,
	created_at     TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
	symbol          TEXT PRIMARY KEY,
	buy_price       TEXT NOT NULL,
	amount          TEXT NOT NULL,
	buy_time        TIMESTAMP NOT NULL,
	highest_price   TEXT NOT NULL,
	peak_drop_start TIMESTAMP,
	order_id        TEXT NOT NULL
);
`

// Store is the SQLite-backed persistence layer. One Store instance serves the
// order store, wallet store, and position store interfaces.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Enable WAL mode for crash recovery
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertOrder persists a new order record.
func (s *Store) InsertOrder(ctx context.Context, o *core.Order) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (id, exchange_order_id, symbol, type, side, amount, price, stop_price,
			status, filled, remaining, cost, fee, reason, created_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.ExchangeOrderID, o.Symbol, string(o.Type), string(o.Side),
		o.Amount.String(), o.Price.String(), o.StopPrice.String(),
		string(o.Status), o.Filled.String(), o.Remaining.String(),
		o.Cost.String(), o.Fee.String(), o.Reason, o.CreatedAt, nullTime(o.ClosedAt))
	if err != nil {
		return fmt.Errorf("%w: insert order %s: %v", apperrors.ErrPersistence, o.ID, err)
	}
	return nil
}

// UpdateOrder rewrites the mutable fields of an order record.
func (s *Store) UpdateOrder(ctx context.Context, o *core.Order) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET exchange_order_id = ?, status = ?, filled = ?, remaining = ?,
			cost = ?, fee = ?, reason = ?, closed_at = ?
		WHERE id = ?`,
		o.ExchangeOrderID, string(o.Status), o.Filled.String(), o.Remaining.String(),
		o.Cost.String(), o.Fee.String(), o.Reason, nullTime(o.ClosedAt), o.ID)
	if err != nil {
		return fmt.Errorf("%w: update order %s: %v", apperrors.ErrPersistence, o.ID, err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("%w: order %s", apperrors.ErrOrderNotFound, o.ID)
	}
	return nil
}

// GetOrder loads an order by local ID.
func (s *Store) GetOrder(ctx context.Context, id string) (*core.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, exchange_order_id, symbol, type, side, amount, price, stop_price,
			status, filled, remaining, cost, fee, reason, created_at, closed_at
		FROM orders WHERE id = ?`, id)

	var o core.Order
	var typ, side, status string
	var amount, price, stopPrice, filled, remaining, cost, fee string
	var closedAt sql.NullTime
	err := row.Scan(&o.ID, &o.ExchangeOrderID, &o.Symbol, &typ, &side, &amount, &price, &stopPrice,
		&status, &filled, &remaining, &cost, &fee, &o.Reason, &o.CreatedAt, &closedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: order %s", apperrors.ErrOrderNotFound, id)
		}
		return nil, fmt.Errorf("%w: get order %s: %v", apperrors.ErrPersistence, id, err)
	}

	o.Type = core.OrderType(typ)
	o.Side = core.Side(side)
	o.Status = core.OrderStatus(status)
	if o.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("%w: corrupt amount on order %s: %v", apperrors.ErrPersistence, id, err)
	}
	o.Price = mustDecimal(price)
	o.StopPrice = mustDecimal(stopPrice)
	o.Filled = mustDecimal(filled)
	o.Remaining = mustDecimal(remaining)
	o.Cost = mustDecimal(cost)
	o.Fee = mustDecimal(fee)
	if closedAt.Valid {
		t := closedAt.Time
		o.ClosedAt = &t
	}
	return &o, nil
}

// AppendOrderEvent writes one row of the append-only order-event log.
func (s *Store) AppendOrderEvent(ctx context.Context, e *core.OrderEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO order_events (order_id, from_status, to_status, note, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.OrderID, string(e.FromStatus), string(e.ToStatus), e.Note, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: append order event for %s: %v", apperrors.ErrPersistence, e.OrderID, err)
	}
	return nil
}

// ListOrderEvents returns the event log for one order, oldest first.
func (s *Store) ListOrderEvents(ctx context.Context, orderID string) ([]*core.OrderEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT order_id, from_status, to_status, note, created_at
		FROM order_events WHERE order_id = ? ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: list order events: %v", apperrors.ErrPersistence, err)
	}
	defer rows.Close()

	var events []*core.OrderEvent
	for rows.Next() {
		var e core.OrderEvent
		var from, to string
		if err := rows.Scan(&e.OrderID, &from, &to, &e.Note, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan order event: %v", apperrors.ErrPersistence, err)
		}
		e.FromStatus = core.OrderStatus(from)
		e.ToStatus = core.OrderStatus(to)
		events = append(events, &e)
	}
	return events, rows.Err()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
