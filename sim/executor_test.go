package sim

import (
	"testing"
	"time"

	"mbo-backtester/event"
)

func add(id uint64, ts int64, price int64, qty uint32) event.StrategyOrder {
	return event.StrategyOrder{Ts: ts, OrderID: id, InstrumentID: 1, Action: event.OrderAdd, Side: event.SideBid, Price: price, Quantity: qty}
}

func TestExecutorFillsAfterLatency(t *testing.T) {
	x := NewLatencyExecutor(5*time.Microsecond, 2, nil)
	fills := x.OnOrder(add(1, 1000, 100, 3))
	if len(fills) != 1 {
		t.Fatalf("expected one fill, got %d", len(fills))
	}
	f := fills[0]
	if f.Ts != 6000 || f.Price != 100 || f.Quantity != 3 || f.Commission != 6 {
		t.Fatalf("unexpected fill %+v", f)
	}
	if !x.Settle(f) {
		t.Fatalf("fill should settle")
	}
	if x.Settle(f) {
		t.Fatalf("fill must settle only once")
	}
}

func TestExecutorModifyReplacesFill(t *testing.T) {
	x := NewLatencyExecutor(10, 0, nil)
	old := x.OnOrder(add(1, 0, 100, 1))[0]
	mod := add(1, 5, 101, 2)
	mod.Action = event.OrderModify
	fills := x.OnOrder(mod)
	if len(fills) != 1 || fills[0].Ts != 15 || fills[0].Price != 101 {
		t.Fatalf("unexpected modify fills %+v", fills)
	}
	if x.Settle(old) {
		t.Fatalf("replaced fill must not settle")
	}
	if !x.Settle(fills[0]) {
		t.Fatalf("new fill should settle")
	}
	// 成交后的改单忽略
	if got := x.OnOrder(mod); got != nil {
		t.Fatalf("modify after fill should be ignored, got %+v", got)
	}
}

func TestExecutorCancel(t *testing.T) {
	x := NewLatencyExecutor(10, 0, nil)
	f := x.OnOrder(add(1, 0, 100, 1))[0]
	cancel := add(1, 3, 100, 1)
	cancel.Action = event.OrderCancel
	if got := x.OnOrder(cancel); got != nil {
		t.Fatalf("cancel emits no fills")
	}
	if x.Settle(f) {
		t.Fatalf("cancelled order must not fill")
	}
	if x.Pending() != 0 {
		t.Fatalf("expected no pending fills")
	}
}
