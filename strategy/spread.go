package strategy

import (
	"errors"
	"fmt"

	"mbo-backtester/event"
	"mbo-backtester/market"
)

// quote 是一侧的在途报价。
type quote struct {
	id        uint64
	price     int64
	remaining uint32
}

// JoinBbo 在买一/卖一各挂一笔 Qty 的被动单，盘口移动时改价跟随；
// 净仓达到 MaxPosition 时撤掉加仓方向的报价。
type JoinBbo struct {
	id           string
	instrumentID uint32
	qty          uint32
	maxPosition  int64

	nextID   func() uint64
	bid, ask *quote
	position int64
}

func NewJoinBbo(id string, instrumentID uint32, qty uint32, maxPosition int64) (*JoinBbo, error) {
	if qty == 0 {
		return nil, fmt.Errorf("join_bbo %s: qty must be > 0", id)
	}
	if instrumentID == 0 {
		return nil, errors.New("join_bbo " + id + ": instrument_id is required")
	}
	if maxPosition <= 0 {
		maxPosition = int64(qty)
	}
	return &JoinBbo{id: id, instrumentID: instrumentID, qty: qty, maxPosition: maxPosition}, nil
}

func (s *JoinBbo) ID() string                    { return s.id }
func (s *JoinBbo) Depth() int                    { return 1 }
func (s *JoinBbo) SetIDSource(next func() uint64) { s.nextID = next }

func (s *JoinBbo) OnMarketEvent(d event.MarketDelta, snap []market.BidAskPair) []event.StrategySignal {
	if d.InstrumentID != s.instrumentID || s.nextID == nil {
		return nil
	}
	bid, ask, ok := bestOf(snap)
	if !ok || bid >= ask {
		return nil
	}
	var out []event.StrategySignal
	out = s.requote(out, &s.bid, event.SignalBuy, bid, s.position+int64(s.qty) <= s.maxPosition)
	out = s.requote(out, &s.ask, event.SignalSell, ask, s.position-int64(s.qty) >= -s.maxPosition)
	return out
}

func (s *JoinBbo) requote(out []event.StrategySignal, slot **quote, kind event.SignalKind, price int64, allowed bool) []event.StrategySignal {
	q := *slot
	switch {
	case q == nil && allowed:
		id := s.nextID()
		*slot = &quote{id: id, price: price, remaining: s.qty}
		return append(out, event.StrategySignal{SignalID: id, InstrumentID: s.instrumentID, Signal: kind, Price: price, Quantity: s.qty})
	case q != nil && !allowed:
		*slot = nil
		return append(out, event.StrategySignal{SignalID: s.nextID(), InstrumentID: s.instrumentID, Signal: event.SignalCancel, OrderID: q.id})
	case q != nil && q.price != price:
		q.price = price
		return append(out, event.StrategySignal{SignalID: s.nextID(), InstrumentID: s.instrumentID, Signal: event.SignalModify, OrderID: q.id, Price: price, Quantity: q.remaining})
	}
	return out
}

func (s *JoinBbo) OnFill(f event.Fill) {
	s.position += f.SignedQty()
	for _, slot := range []**quote{&s.bid, &s.ask} {
		if q := *slot; q != nil && q.id == f.OrderID {
			if f.Quantity >= q.remaining {
				*slot = nil
			} else {
				q.remaining -= f.Quantity
			}
		}
	}
}

// OnReject 报价被拒（新单或改单）时清空该侧，下一笔行情重新报价。
func (s *JoinBbo) OnReject(sig event.StrategySignal, _ error) {
	target := sig.SignalID
	if sig.Signal == event.SignalModify || sig.Signal == event.SignalCancel {
		target = sig.OrderID
	}
	for _, slot := range []**quote{&s.bid, &s.ask} {
		if q := *slot; q != nil && q.id == target {
			*slot = nil
		}
	}
}

func (s *JoinBbo) OnEndOfDay(int64) {}

// Position 返回策略自己跟踪的仓位。
func (s *JoinBbo) Position() int64 { return s.position }
