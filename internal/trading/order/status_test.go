package order

import (
	"testing"

	"trade_engine/internal/core"
)

func TestMapStatus(t *testing.T) {
	cases := []struct {
		native string
		want   core.OrderStatus
	}{
		{"new", core.OrderStatusOpen},
		{"pending_new", core.OrderStatusOpen},
		{"partially_filled", core.OrderStatusOpen},
		{"open", core.OrderStatusOpen},
		{"accepted", core.OrderStatusOpen},
		{"filled", core.OrderStatusClosed},
		{"done", core.OrderStatusClosed},
		{"closed", core.OrderStatusClosed},
		{"cancelled", core.OrderStatusCanceled},
		{"canceled", core.OrderStatusCanceled},
		{"stopped", core.OrderStatusCanceled},
		{"expired", core.OrderStatusExpired},
		{"", core.OrderStatusRejected},
		{"some_new_exchange_status", core.OrderStatusRejected},
		{"FILLED", core.OrderStatusClosed},
		{"  new  ", core.OrderStatusOpen},
	}
	for _, c := range cases {
		if got := MapStatus(c.native); got != c.want {
			t.Errorf("MapStatus(%q) = %s, want %s", c.native, got, c.want)
		}
	}
}

func TestMapStatus_Deterministic(t *testing.T) {
	// Same input maps to the same output regardless of call order.
	first := MapStatus("partially_filled")
	for i := 0; i < 100; i++ {
		MapStatus("filled")
		MapStatus("garbage")
		if got := MapStatus("partially_filled"); got != first {
			t.Fatalf("MapStatus changed between calls: %s vs %s", got, first)
		}
	}
}
