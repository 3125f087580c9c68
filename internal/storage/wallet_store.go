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
)

// GetWallet loads one balance row. Returns nil when the row does not exist.
func (s *Store) GetWallet(ctx context.Context, exchangeID, currency string) (*core.WalletBalance, error) {
	return getWallet(ctx, s.db, exchangeID, currency)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func getWallet(ctx context.Context, q queryer, exchangeID, currency string) (*core.WalletBalance, error) {
	row := q.QueryRowContext(ctx, `
		SELECT exchange_id, currency, available, in_orders, total, last_updated
		FROM wallets WHERE exchange_id = ? AND currency = ?`, exchangeID, currency)

	var w core.WalletBalance
	var available, inOrders, total string
	err := row.Scan(&w.ExchangeID, &w.Currency, &available, &inOrders, &total, &w.LastUpdated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: get wallet %s/%s: %v", apperrors.ErrPersistence, exchangeID, currency, err)
	}
	w.Available = mustDecimal(available)
	w.InOrders = mustDecimal(inOrders)
	w.Total = mustDecimal(total)
	return &w, nil
}

// ListWallets returns all balance rows for one exchange.
func (s *Store) ListWallets(ctx context.Context, exchangeID string) ([]*core.WalletBalance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT exchange_id, currency, available, in_orders, total, last_updated
		FROM wallets WHERE exchange_id = ? ORDER BY currency`, exchangeID)
	if err != nil {
		return nil, fmt.Errorf("%w: list wallets: %v", apperrors.ErrPersistence, err)
	}
	defer rows.Close()

	var wallets []*core.WalletBalance
	for rows.Next() {
		var w core.WalletBalance
		var available, inOrders, total string
		if err := rows.Scan(&w.ExchangeID, &w.Currency, &available, &inOrders, &total, &w.LastUpdated); err != nil {
			return nil, fmt.Errorf("%w: scan wallet: %v", apperrors.ErrPersistence, err)
		}
		w.Available = mustDecimal(available)
		w.InOrders = mustDecimal(inOrders)
		w.Total = mustDecimal(total)
		wallets = append(wallets, &w)
	}
	return wallets, rows.Err()
}

// UpsertWallet writes a balance row and, when txn is non-nil, appends the
// matching audit transaction inside the same database transaction.
func (s *Store) UpsertWallet(ctx context.Context, w *core.WalletBalance, txn *core.WalletTransaction) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("%w: begin wallet tx: %v", apperrors.ErrPersistence, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := upsertWallet(ctx, tx, w); err != nil {
		return err
	}
	if txn != nil {
		if err := insertTransaction(ctx, tx, txn); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func upsertWallet(ctx context.Context, q queryer, w *core.WalletBalance) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO wallets (exchange_id, currency, available, in_orders, total, last_updated)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (exchange_id, currency) DO UPDATE SET
			available = excluded.available,
			in_orders = excluded.in_orders,
			total = excluded.total,
			last_updated = excluded.last_updated`,
		w.ExchangeID, w.Currency, w.Available.String(), w.InOrders.String(), w.Total.String(), w.LastUpdated)
	if err != nil {
		return fmt.Errorf("%w: upsert wallet %s/%s: %v", apperrors.ErrPersistence, w.ExchangeID, w.Currency, err)
	}
	return nil
}

func insertTransaction(ctx context.Context, q queryer, txn *core.WalletTransaction) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO wallet_transactions (exchange_id, currency, type, amount, balance_before, balance_after, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		txn.ExchangeID, txn.Currency, string(txn.Type), txn.Amount.String(),
		txn.BalanceBefore.String(), txn.BalanceAfter.String(), txn.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: insert wallet transaction %s/%s: %v", apperrors.ErrPersistence, txn.ExchangeID, txn.Currency, err)
	}
	return nil
}

// ListTransactions returns the audit log for one currency, oldest first.
func (s *Store) ListTransactions(ctx context.Context, exchangeID, currency string) ([]*core.WalletTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT exchange_id, currency, type, amount, balance_before, balance_after, created_at
		FROM wallet_transactions WHERE exchange_id = ? AND currency = ? ORDER BY id`, exchangeID, currency)
	if err != nil {
		return nil, fmt.Errorf("%w: list wallet transactions: %v", apperrors.ErrPersistence, err)
	}
	defer rows.Close()

	var txns []*core.WalletTransaction
	for rows.Next() {
		var t core.WalletTransaction
		var typ, amount, before, after string
		if err := rows.Scan(&t.ExchangeID, &t.Currency, &typ, &amount, &before, &after, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan wallet transaction: %v", apperrors.ErrPersistence, err)
		}
		t.Type = core.TransactionType(typ)
		t.Amount = mustDecimal(amount)
		t.BalanceBefore = mustDecimal(before)
		t.BalanceAfter = mustDecimal(after)
		txns = append(txns, &t)
	}
	return txns, rows.Err()
}

// ApplyFillTx applies both currency legs of a filled order inside a single
// serializable transaction: either both wallet rows and both audit rows
// commit, or none do.
func (s *Store) ApplyFillTx(ctx context.Context, exchangeID string, fill *core.FillDelta, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("%w: begin fill tx: %v", apperrors.ErrPersistence, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := applyDelta(ctx, tx, exchangeID, fill.QuoteCurrency, fill.QuoteDelta, now); err != nil {
		return err
	}
	if err := applyDelta(ctx, tx, exchangeID, fill.BaseCurrency, fill.BaseDelta, now); err != nil {
		// The quote leg is staged in this transaction; rolling back keeps the
		// ledger untouched, but the failure itself must stay auditable.
		return &apperrors.StateInconsistencyError{
			OrderID: fill.OrderID,
			Detail:  fmt.Sprintf("base leg %s failed after quote leg %s was staged (rolled back)", fill.BaseCurrency, fill.QuoteCurrency),
			Err:     err,
		}
	}
	if err := tx.Commit(); err != nil {
		return &apperrors.StateInconsistencyError{
			OrderID: fill.OrderID,
			Detail:  "commit of dual-currency update failed",
			Err:     err,
		}
	}
	return nil
}

func applyDelta(ctx context.Context, q queryer, exchangeID, currency string, delta decimal.Decimal, now time.Time) error {
	if delta.IsZero() {
		return nil
	}

	existing, err := getWallet(ctx, q, exchangeID, currency)
	if err != nil {
		return err
	}

	before := decimal.Zero
	inOrders := decimal.Zero
	if existing != nil {
		before = existing.Available
		inOrders = existing.InOrders
	}
	after := before.Add(delta)

	w := &core.WalletBalance{
		ExchangeID:  exchangeID,
		Currency:    currency,
		Available:   after,
		InOrders:    inOrders,
		Total:       after.Add(inOrders),
		LastUpdated: now,
	}
	if err := upsertWallet(ctx, q, w); err != nil {
		return err
	}

	txnType := core.TransactionDeposit
	if delta.IsNegative() {
		txnType = core.TransactionWithdrawal
	}
	return insertTransaction(ctx, q, &core.WalletTransaction{
		ExchangeID:    exchangeID,
		Currency:      currency,
		Type:          txnType,
		Amount:        delta,
		BalanceBefore: before,
		BalanceAfter:  after,
		CreatedAt:     now,
	})
}
