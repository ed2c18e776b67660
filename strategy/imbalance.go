package strategy

import (
	"fmt"

	"mbo-backtester/event"
	"mbo-backtester/fixed"
	"mbo-backtester/market"
)

// BookImbalance 按前 N 档挂单量不平衡方向主动成交：
// 买盘明显占优时在卖一买入，卖盘占优时在买一卖出，目标仓位 ±Qty。
type BookImbalance struct {
	id           string
	instrumentID uint32
	levels       int
	threshold    int64 // 定点，(0, Scale]
	qty          int64
	position     int64
	inflight     bool
}

// NewBookImbalance 创建策略；thresholdBps 为万分比，例如 3000 表示 0.3。
func NewBookImbalance(id string, instrumentID uint32, levels int, thresholdBps int64, qty int64) (*BookImbalance, error) {
	if levels <= 0 {
		return nil, fmt.Errorf("book_imbalance %s: levels must be > 0", id)
	}
	if thresholdBps <= 0 || thresholdBps > 10_000 {
		return nil, fmt.Errorf("book_imbalance %s: threshold must be within (0, 10000] bps", id)
	}
	if qty <= 0 {
		return nil, fmt.Errorf("book_imbalance %s: qty must be > 0", id)
	}
	return &BookImbalance{
		id:           id,
		instrumentID: instrumentID,
		levels:       levels,
		threshold:    thresholdBps * (fixed.Scale / 10_000),
		qty:          qty,
	}, nil
}

func (s *BookImbalance) ID() string { return s.id }
func (s *BookImbalance) Depth() int { return s.levels }

func (s *BookImbalance) OnMarketEvent(d event.MarketDelta, snap []market.BidAskPair) []event.StrategySignal {
	if s.inflight || (s.instrumentID != 0 && d.InstrumentID != s.instrumentID) {
		return nil
	}
	bid, ask, ok := bestOf(snap)
	if !ok || bid >= ask {
		return nil
	}
	imb := market.ImbalanceFromSnapshot(snap, s.levels)
	sig := event.StrategySignal{InstrumentID: d.InstrumentID}
	switch {
	case imb >= s.threshold && s.position < s.qty:
		sig.Signal, sig.Price, sig.Quantity = event.SignalBuy, ask, uint32(s.qty-s.position)
	case imb <= -s.threshold && s.position > -s.qty:
		sig.Signal, sig.Price, sig.Quantity = event.SignalSell, bid, uint32(s.position+s.qty)
	default:
		return nil
	}
	s.inflight = true
	return []event.StrategySignal{sig}
}

func (s *BookImbalance) OnFill(f event.Fill) {
	s.position += f.SignedQty()
	s.inflight = false
}

// OnReject 信号被拒后允许重新下单。
func (s *BookImbalance) OnReject(event.StrategySignal, error) { s.inflight = false }

func (s *BookImbalance) OnEndOfDay(int64) {}

// Position 返回策略自己跟踪的仓位。
func (s *BookImbalance) Position() int64 { return s.position }
