// Package apperrors defines the engine's error taxonomy.
package apperrors

import (
	"errors"
	"fmt"
)

// Standardized exchange errors
var (
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrOrderRejected        = errors.New("order rejected")
	ErrRateLimitExceeded    = errors.New("rate limit exceeded")
	ErrNetwork              = errors.New("network error")
	ErrInvalidSymbol        = errors.New("invalid symbol")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrExchangeMaintenance  = errors.New("exchange maintenance")
	ErrOrderNotFound        = errors.New("order not found")
	ErrDuplicateOrder       = errors.New("duplicate order")
	ErrPersistence          = errors.New("persistence failure")
	ErrNoPrice              = errors.New("no price available")
)

// ValidationError reports malformed order parameters. It fails fast, before
// any external call is made.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// ParseError reports a symbol that cannot be decomposed into base/quote
// currencies.
type ParseError struct {
	Symbol string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot split symbol %q into base/quote currencies", e.Symbol)
}

// ExchangeError wraps a network or API failure from the exchange. The original
// request parameters stay intact with the caller for explicit reconciliation;
// write operations are never blindly retried.
type ExchangeError struct {
	Op  string
	Err error
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("exchange %s failed: %v", e.Op, e.Err)
}

func (e *ExchangeError) Unwrap() error { return e.Err }

// StateInconsistencyError reports ledger totals that failed to reconcile after
// a dual-currency update. It is logged as critical and requires manual or
// reconciliation-job intervention; it is never silently corrected.
type StateInconsistencyError struct {
	OrderID string
	Detail  string
	Err     error
}

func (e *StateInconsistencyError) Error() string {
	return fmt.Sprintf("ledger state inconsistency for order %s: %s: %v", e.OrderID, e.Detail, e.Err)
}

func (e *StateInconsistencyError) Unwrap() error { return e.Err }

// IsTransient reports whether an error is worth retrying on the read path.
func IsTransient(err error) bool {
	return errors.Is(err, ErrNetwork) ||
		errors.Is(err, ErrRateLimitExceeded) ||
		errors.Is(err, ErrExchangeMaintenance)
}
