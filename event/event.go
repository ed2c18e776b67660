// Package event 定义回测内核中流转的事件：行情增量、策略信号、订单、成交与控制事件。
//
// Event 是封闭的和类型，只有本包内的五种变体实现它；消费方用 type switch 穷举。
package event

import (
	"fmt"

	"mbo-backtester/fixed"
)

// Kind 同时决定同一时间戳下的处理顺序：行情 < 信号 < 订单 < 成交 < 控制。
type Kind uint8

const (
	KindMarket Kind = iota
	KindSignal
	KindOrder
	KindFill
	KindControl
)

func (k Kind) String() string {
	switch k {
	case KindMarket:
		return "market"
	case KindSignal:
		return "signal"
	case KindOrder:
		return "order"
	case KindFill:
		return "fill"
	case KindControl:
		return "control"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Event is implemented by MarketDelta, StrategySignal, StrategyOrder, Fill and Control only.
type Event interface {
	Timestamp() int64
	Kind() Kind
	// tieKey 在 (ts, kind) 相同时提供确定性的次级排序。
	tieKey() (uint64, uint64, uint64)
}

// Side of a book entry or an order.
type Side uint8

const (
	SideNone Side = iota
	SideBid
	SideAsk
)

func (s Side) String() string {
	switch s {
	case SideBid:
		return "B"
	case SideAsk:
		return "A"
	}
	return "N"
}

// Opposite 返回对手方向。
func (s Side) Opposite() Side {
	switch s {
	case SideBid:
		return SideAsk
	case SideAsk:
		return SideBid
	}
	return SideNone
}

// ParseSide 解析 MBO 的 side 字符 B/A/N。
func ParseSide(c byte) (Side, error) {
	switch c {
	case 'B':
		return SideBid, nil
	case 'A':
		return SideAsk, nil
	case 'N':
		return SideNone, nil
	}
	return SideNone, fmt.Errorf("unknown side %q", c)
}

// Action of an MBO record.
type Action uint8

const (
	ActionNone Action = iota
	ActionAdd
	ActionCancel
	ActionModify
	ActionClear
	ActionTrade
	ActionFill
)

var actionChars = [...]byte{ActionNone: 'N', ActionAdd: 'A', ActionCancel: 'C', ActionModify: 'M', ActionClear: 'R', ActionTrade: 'T', ActionFill: 'F'}

func (a Action) String() string {
	if int(a) < len(actionChars) {
		return string(actionChars[a])
	}
	return fmt.Sprintf("action(%d)", uint8(a))
}

// ParseAction 解析 MBO 的 action 字符 A/C/M/R/T/F/N。
func ParseAction(c byte) (Action, error) {
	for a, ch := range actionChars {
		if ch == c {
			return Action(a), nil
		}
	}
	return ActionNone, fmt.Errorf("unknown action %q", c)
}

// MarketDelta 是一条 MBO 记录。Clear 等无价格记录的 Price 为 fixed.NoPrice。
type MarketDelta struct {
	TsRecv       int64
	TsEvent      int64
	PublisherID  uint16
	InstrumentID uint32
	Action       Action
	Side         Side
	Price        fixed.OptPrice
	Size         uint32
	ChannelID    uint8
	OrderID      uint64
	Flags        uint8
	TsInDelta    int32
	Sequence     uint32
	Symbol       string
	// SourceID 由回测器在入队前分配，用于跨数据源的稳定排序。
	SourceID uint16
}

func (d MarketDelta) Timestamp() int64 { return d.TsEvent }
func (MarketDelta) Kind() Kind          { return KindMarket }
func (d MarketDelta) tieKey() (uint64, uint64, uint64) {
	return uint64(d.SourceID), uint64(d.Sequence), d.OrderID
}

// SignalKind 是策略意图。
type SignalKind uint8

const (
	SignalBuy SignalKind = iota
	SignalSell
	SignalModify
	SignalCancel
)

func (k SignalKind) String() string {
	switch k {
	case SignalBuy:
		return "buy"
	case SignalSell:
		return "sell"
	case SignalModify:
		return "modify"
	case SignalCancel:
		return "cancel"
	}
	return fmt.Sprintf("signal(%d)", uint8(k))
}

// StrategySignal 是策略发出的交易意图，必须经过组合风控才能变成订单。
type StrategySignal struct {
	Ts           int64
	StrategyID   string
	SignalID     uint64
	InstrumentID uint32
	Signal       SignalKind
	Price        int64
	Quantity     uint32
	// OrderID 仅对 Modify/Cancel 有意义，指向要修改的在途订单。
	OrderID uint64
}

func (s StrategySignal) Timestamp() int64 { return s.Ts }
func (StrategySignal) Kind() Kind          { return KindSignal }
func (s StrategySignal) tieKey() (uint64, uint64, uint64) {
	return s.SignalID, 0, 0
}

// Side 返回 Buy/Sell 信号对应的方向；Modify/Cancel 返回 SideNone。
func (s StrategySignal) Side() Side {
	switch s.Signal {
	case SignalBuy:
		return SideBid
	case SignalSell:
		return SideAsk
	}
	return SideNone
}

// OrderKind 是订单动作。
type OrderKind uint8

const (
	OrderAdd OrderKind = iota
	OrderModify
	OrderCancel
)

func (k OrderKind) String() string {
	switch k {
	case OrderAdd:
		return "add"
	case OrderModify:
		return "modify"
	case OrderCancel:
		return "cancel"
	}
	return fmt.Sprintf("order(%d)", uint8(k))
}

// StrategyOrder 是通过风控的订单。
type StrategyOrder struct {
	Ts           int64
	OrderID      uint64
	StrategyID   string
	InstrumentID uint32
	Action       OrderKind
	Side         Side
	Price        int64
	Quantity     uint32
}

func (o StrategyOrder) Timestamp() int64 { return o.Ts }
func (StrategyOrder) Kind() Kind          { return KindOrder }
func (o StrategyOrder) tieKey() (uint64, uint64, uint64) {
	return o.OrderID, uint64(o.Action), 0
}

// Fill 是模拟成交回报。Commission 为本次成交的总佣金（定点）。
type Fill struct {
	Ts           int64
	OrderID      uint64
	StrategyID   string
	InstrumentID uint32
	Side         Side
	Price        int64
	Quantity     uint32
	Commission   int64
}

func (f Fill) Timestamp() int64 { return f.Ts }
func (Fill) Kind() Kind          { return KindFill }
func (f Fill) tieKey() (uint64, uint64, uint64) {
	return f.OrderID, 0, 0
}

// SignedQty 买为正、卖为负。
func (f Fill) SignedQty() int64 {
	if f.Side == SideAsk {
		return -int64(f.Quantity)
	}
	return int64(f.Quantity)
}

// ControlKind 是控制事件类型。
type ControlKind uint8

const (
	ControlStart ControlKind = iota
	ControlEndOfDay
	ControlSnapshot
	ControlEndOfBacktest
)

func (k ControlKind) String() string {
	switch k {
	case ControlStart:
		return "start"
	case ControlEndOfDay:
		return "end_of_day"
	case ControlSnapshot:
		return "snapshot"
	case ControlEndOfBacktest:
		return "end_of_backtest"
	}
	return fmt.Sprintf("control(%d)", uint8(k))
}

// Control 是回测器自身调度的事件。
type Control struct {
	Ts   int64
	Type ControlKind
}

func (c Control) Timestamp() int64 { return c.Ts }
func (Control) Kind() Kind          { return KindControl }
func (c Control) tieKey() (uint64, uint64, uint64) {
	return uint64(c.Type), 0, 0
}

// HasPrice 判断行情记录是否携带价格。
func (d MarketDelta) HasPrice() bool {
	return d.Price.Valid()
}
