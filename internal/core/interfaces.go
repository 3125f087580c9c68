package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeClient defines the capability consumed from an exchange. Wire
// protocols behind it are opaque to the engine.
type ExchangeClient interface {
	GetName() string
	CreateOrder(ctx context.Context, req *OrderRequest) (*ExchangeOrder, error)
	CancelOrder(ctx context.Context, exchangeOrderID, symbol string) (*ExchangeOrder, error)
	FetchBalance(ctx context.Context, currency string) (map[string]BalanceInfo, error)
}

// PriceFeed supplies the per-tick market snapshot inputs.
type PriceFeed interface {
	GetCurrentPrices(ctx context.Context) (map[string]decimal.Decimal, error)
	GetCoinMetadata(ctx context.Context) (map[string]CoinMeta, error)
}

// SignalGenerator turns a market snapshot and the current open-position set
// into buy/sell signals. Implementations are pure functions of their inputs
// and degrade to an empty signal list on internal failure.
type SignalGenerator interface {
	Name() string
	GetSignals(ctx context.Context, snap *Snapshot, positions map[string]*Position) ([]Signal, *EvaluationReport)
}

// Ledger owns per-currency balances and their audit trail.
type Ledger interface {
	GetBalance(ctx context.Context, currency string, forceUpdate bool) (*WalletBalance, error)
	GetAllBalances(ctx context.Context, forceUpdate bool) (map[string]*WalletBalance, error)
	UpdateBalance(ctx context.Context, currency string, available, inOrders, total decimal.Decimal) (*WalletBalance, error)
	ApplyFill(ctx context.Context, fill *FillDelta) error
}

// FillDelta is the dual-currency mutation implied by one filled order.
// Buy: quote decreases by Cost, base increases by Filled. Sell: inverse.
type FillDelta struct {
	OrderID       string
	BaseCurrency  string
	QuoteCurrency string
	BaseDelta     decimal.Decimal
	QuoteDelta    decimal.Decimal
}

// OrderStore persists orders and their append-only event log.
type OrderStore interface {
	InsertOrder(ctx context.Context, o *Order) error
	UpdateOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, id string) (*Order, error)
	AppendOrderEvent(ctx context.Context, e *OrderEvent) error
}

// WalletStore persists wallet balances and their transaction audit log.
// ApplyFillTx runs both legs of a fill inside a single transaction.
type WalletStore interface {
	GetWallet(ctx context.Context, exchangeID, currency string) (*WalletBalance, error)
	ListWallets(ctx context.Context, exchangeID string) ([]*WalletBalance, error)
	UpsertWallet(ctx context.Context, w *WalletBalance, txn *WalletTransaction) error
	ApplyFillTx(ctx context.Context, exchangeID string, fill *FillDelta, now time.Time) error
}

// PositionStore persists open positions for crash recovery.
type PositionStore interface {
	SavePosition(ctx context.Context, p *Position) error
	DeletePosition(ctx context.Context, symbol string) error
	ListPositions(ctx context.Context) ([]*Position, error)
}

// ILogger defines the interface for logging
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}
