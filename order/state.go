package order

import "mbo-backtester/event"

// Status represents order lifecycle.
type Status string

const (
	StatusNew      Status = "NEW"
	StatusPartial  Status = "PARTIAL"
	StatusFilled   Status = "FILLED"
	StatusCanceled Status = "CANCELED"
)

// Order 是已通过风控、尚未结束的策略订单。
type Order struct {
	ID           uint64
	StrategyID   string
	InstrumentID uint32
	Side         event.Side
	Price        int64
	Quantity     uint32
	Filled       uint32
	Status       Status
	CreatedTs    int64
	UpdatedTs    int64
}

// Remaining 返回未成交数量。
func (o Order) Remaining() uint32 {
	if o.Filled >= o.Quantity {
		return 0
	}
	return o.Quantity - o.Filled
}
