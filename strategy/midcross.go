package strategy

import (
	"fmt"

	"mbo-backtester/event"
	"mbo-backtester/market"
)

// MidCross 是 mid 价的双均线交叉策略：短均线上穿做多，下穿做空，目标仓位为 ±Qty。
// 买单挂在卖一、卖单挂在买一，即主动成交。
type MidCross struct {
	id           string
	instrumentID uint32
	depth        int
	short, long  int
	qty          int64

	mids     []int64 // 环形缓冲，长度 long
	head     int
	filled   int
	lastMid  int64
	prevSign int
	position int64
}

// NewMidCross 创建策略。short < long 且都 > 0，qty > 0。
func NewMidCross(id string, instrumentID uint32, short, long int, qty int64, depth int) (*MidCross, error) {
	if short <= 0 || long <= short {
		return nil, fmt.Errorf("mid_cross %s: need 0 < short < long, got %d/%d", id, short, long)
	}
	if qty <= 0 {
		return nil, fmt.Errorf("mid_cross %s: qty must be > 0", id)
	}
	if depth <= 0 {
		depth = 1
	}
	return &MidCross{
		id:           id,
		instrumentID: instrumentID,
		depth:        depth,
		short:        short,
		long:         long,
		qty:          qty,
		mids:         make([]int64, long),
	}, nil
}

func (s *MidCross) ID() string { return s.id }
func (s *MidCross) Depth() int { return s.depth }

func (s *MidCross) OnMarketEvent(d event.MarketDelta, snap []market.BidAskPair) []event.StrategySignal {
	if s.instrumentID != 0 && d.InstrumentID != s.instrumentID {
		return nil
	}
	bid, ask, ok := bestOf(snap)
	if !ok || bid >= ask {
		return nil
	}
	mid := bid + (ask-bid)/2
	if mid == s.lastMid && s.filled > 0 {
		return nil
	}
	s.lastMid = mid
	s.mids[s.head] = mid
	s.head = (s.head + 1) % s.long
	if s.filled < s.long {
		s.filled++
		if s.filled < s.long {
			return nil
		}
	}

	sign := compare(s.average(s.short), s.average(s.long))
	prev := s.prevSign
	s.prevSign = sign
	if prev == 0 || sign == prev || sign == 0 {
		return nil
	}

	sig := event.StrategySignal{InstrumentID: d.InstrumentID}
	if sign > 0 {
		need := s.qty - s.position
		if need <= 0 {
			return nil
		}
		sig.Signal, sig.Price, sig.Quantity = event.SignalBuy, ask, uint32(need)
	} else {
		need := s.position + s.qty
		if need <= 0 {
			return nil
		}
		sig.Signal, sig.Price, sig.Quantity = event.SignalSell, bid, uint32(need)
	}
	return []event.StrategySignal{sig}
}

// average 返回最近 n 个 mid 的均值（整数截断）。
func (s *MidCross) average(n int) int64 {
	var sum int64
	for i := 1; i <= n; i++ {
		sum += s.mids[(s.head-i+s.long)%s.long]
	}
	return sum / int64(n)
}

func (s *MidCross) OnFill(f event.Fill) {
	s.position += f.SignedQty()
}

func (s *MidCross) OnEndOfDay(int64) {}

// Position 返回策略自己跟踪的仓位。
func (s *MidCross) Position() int64 { return s.position }

func compare(a, b int64) int {
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	}
	return 0
}
