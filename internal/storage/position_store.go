package storage

import (
	"context"
	"database/sql"
	"fmt"
	"trade_engine/internal/core"
	apperrors "trade_engine/pkg/errors"
)

// SavePosition upserts the monitor snapshot for one symbol.
func (s *Store) SavePosition(ctx context.Context, p *core.Position) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO positions (symbol, buy_price, amount, buy_time, highest_price, peak_drop_start, order_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol) DO UPDATE SET
			buy_price = excluded.buy_price,
			amount = excluded.amount,
			buy_time = excluded.buy_time,
			highest_price = excluded.highest_price,
			peak_drop_start = excluded.peak_drop_start,
			order_id = excluded.order_id`,
		p.Symbol, p.BuyPrice.String(), p.Amount.String(), p.BuyTime,
		p.HighestPrice.String(), nullTime(p.PeakDropStart), p.OrderID)
	if err != nil {
		return fmt.Errorf("%w: save position %s: %v", apperrors.ErrPersistence, p.Symbol, err)
	}
	return nil
}

// DeletePosition removes the snapshot for a settled position.
func (s *Store) DeletePosition(ctx context.Context, symbol string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM positions WHERE symbol = ?`, symbol)
	if err != nil {
		return fmt.Errorf("%w: delete position %s: %v", apperrors.ErrPersistence, symbol, err)
	}
	return nil
}

// ListPositions loads all open positions, used for crash recovery at startup.
func (s *Store) ListPositions(ctx context.Context) ([]*core.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, buy_price, amount, buy_time, highest_price, peak_drop_start, order_id
		FROM positions ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("%w: list positions: %v", apperrors.ErrPersistence, err)
	}
	defer rows.Close()

	var positions []*core.Position
	for rows.Next() {
		var p core.Position
		var buyPrice, amount, highest string
		var peakDropStart sql.NullTime
		if err := rows.Scan(&p.Symbol, &buyPrice, &amount, &p.BuyTime, &highest, &peakDropStart, &p.OrderID); err != nil {
			return nil, fmt.Errorf("%w: scan position: %v", apperrors.ErrPersistence, err)
		}
		p.BuyPrice = mustDecimal(buyPrice)
		p.Amount = mustDecimal(amount)
		p.HighestPrice = mustDecimal(highest)
		if peakDropStart.Valid {
			t := peakDropStart.Time
			p.PeakDropStart = &t
		}
		positions = append(positions, &p)
	}
	return positions, rows.Err()
}
