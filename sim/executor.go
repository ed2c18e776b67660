// Package sim 提供模拟撮合：订单在固定延迟后按限价全部成交。
package sim

import (
	"time"

	"go.uber.org/zap"

	"mbo-backtester/event"
)

type pendingFill struct {
	fill event.Fill
}

// LatencyExecutor 是最简单的成交模型：Add 在 ts+Latency 以订单价全部成交；
// 成交时刻之前到达的 Modify 会替换待成交回报，Cancel 会撤掉它。
type LatencyExecutor struct {
	Latency    time.Duration
	Commission int64 // 每手佣金（定点）

	pending map[uint64]pendingFill
	log     *zap.Logger
}

func NewLatencyExecutor(latency time.Duration, commissionPerUnit int64, log *zap.Logger) *LatencyExecutor {
	if log == nil {
		log = zap.NewNop()
	}
	return &LatencyExecutor{
		Latency:    latency,
		Commission: commissionPerUnit,
		pending:    make(map[uint64]pendingFill),
		log:        log,
	}
}

// OnOrder 处理订单并返回需要入队的成交。
func (x *LatencyExecutor) OnOrder(o event.StrategyOrder) []event.Fill {
	switch o.Action {
	case event.OrderAdd, event.OrderModify:
		if o.Action == event.OrderModify {
			if _, ok := x.pending[o.OrderID]; !ok {
				x.log.Debug("modify after fill, ignored", zap.Uint64("order_id", o.OrderID))
				return nil
			}
		}
		if o.Quantity == 0 {
			delete(x.pending, o.OrderID)
			return nil
		}
		f := event.Fill{
			Ts:           o.Ts + x.Latency.Nanoseconds(),
			OrderID:      o.OrderID,
			StrategyID:   o.StrategyID,
			InstrumentID: o.InstrumentID,
			Side:         o.Side,
			Price:        o.Price,
			Quantity:     o.Quantity,
			Commission:   x.Commission * int64(o.Quantity),
		}
		x.pending[o.OrderID] = pendingFill{fill: f}
		return []event.Fill{f}
	case event.OrderCancel:
		if _, ok := x.pending[o.OrderID]; !ok {
			x.log.Debug("cancel after fill, ignored", zap.Uint64("order_id", o.OrderID))
			return nil
		}
		delete(x.pending, o.OrderID)
	}
	return nil
}

// Settle 在成交事件出队时确认：只有仍然有效的待成交回报返回 true。
func (x *LatencyExecutor) Settle(f event.Fill) bool {
	p, ok := x.pending[f.OrderID]
	if !ok || p.fill != f {
		return false
	}
	delete(x.pending, f.OrderID)
	return true
}

// Pending 返回尚未确认的成交数。
func (x *LatencyExecutor) Pending() int { return len(x.pending) }
