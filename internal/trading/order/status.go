package order

import (
	"strings"
	"trade_engine/internal/core"
)

// statusTable maps exchange-native status strings to the canonical vocabulary.
// Unmapped statuses fall through to rejected.
var statusTable = map[string]core.OrderStatus{
	"new":              core.OrderStatusOpen,
	"pending_new":      core.OrderStatusOpen,
	"partially_filled": core.OrderStatusOpen,
	"open":             core.OrderStatusOpen,
	"accepted":         core.OrderStatusOpen,
	"filled":           core.OrderStatusClosed,
	"done":             core.OrderStatusClosed,
	"closed":           core.OrderStatusClosed,
	"cancelled":        core.OrderStatusCanceled,
	"canceled":         core.OrderStatusCanceled,
	"stopped":          core.OrderStatusCanceled,
	"expired":          core.OrderStatusExpired,
	"rejected":         core.OrderStatusRejected,
}

// MapStatus translates an exchange's native order status into the canonical
// enum. The mapping is a pure function of its input.
func MapStatus(native string) core.OrderStatus {
	if status, ok := statusTable[strings.ToLower(strings.TrimSpace(native))]; ok {
		return status
	}
	return core.OrderStatusRejected
}
