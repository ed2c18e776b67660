package inventory

import (
	"slices"

	"mbo-backtester/fixed"
)

// Position 是单个合约的净仓位。Quantity 多头为正、空头为负；空仓时 AvgEntryPrice 为 0。
type Position struct {
	InstrumentID  uint32
	Quantity      int64
	AvgEntryPrice int64
	LastUpdateTs  int64
}

func (p Position) IsFlat() bool  { return p.Quantity == 0 }
func (p Position) IsLong() bool  { return p.Quantity > 0 }
func (p Position) IsShort() bool { return p.Quantity < 0 }

// Update 按成交更新仓位，返回本次平仓部分的已实现盈亏。
//   - 空仓或同向：加权平均开仓价（向零截断）
//   - 反向：按 min(|持仓|, |成交|) 平仓并实现盈亏；若穿越 0，剩余部分以成交价开新仓
func (p *Position) Update(inst Instrument, signedQty int64, price int64, ts int64) (realized int64) {
	p.LastUpdateTs = ts
	if signedQty == 0 {
		return 0
	}
	if p.Quantity == 0 || (p.Quantity > 0) == (signedQty > 0) {
		oldAbs, addAbs := abs(p.Quantity), abs(signedQty)
		p.AvgEntryPrice = fixed.WeightedAvg(oldAbs, p.AvgEntryPrice, addAbs, price)
		p.Quantity += signedQty
		return 0
	}

	closed := min(abs(p.Quantity), abs(signedQty))
	realized = inst.ClosePnL(p.AvgEntryPrice, price, closed, p.Quantity > 0)
	p.Quantity += signedQty
	switch {
	case p.Quantity == 0:
		p.AvgEntryPrice = 0
	case (p.Quantity > 0) == (signedQty > 0):
		// 反手
		p.AvgEntryPrice = price
	}
	return realized
}

// Ledger 保存全部合约仓位，单线程使用。
type Ledger struct {
	positions map[uint32]*Position
}

func NewLedger() *Ledger {
	return &Ledger{positions: make(map[uint32]*Position)}
}

// Apply 记录一笔成交并返回已实现盈亏。
func (l *Ledger) Apply(inst Instrument, signedQty int64, price int64, ts int64) int64 {
	p, ok := l.positions[inst.ID]
	if !ok {
		p = &Position{InstrumentID: inst.ID}
		l.positions[inst.ID] = p
	}
	return p.Update(inst, signedQty, price, ts)
}

// Position 返回仓位副本；未交易过的合约返回空仓。
func (l *Ledger) Position(id uint32) Position {
	if p, ok := l.positions[id]; ok {
		return *p
	}
	return Position{InstrumentID: id}
}

// NetExposure 返回净数量。
func (l *Ledger) NetExposure(id uint32) int64 {
	if p, ok := l.positions[id]; ok {
		return p.Quantity
	}
	return 0
}

// Positions 返回所有交易过的合约仓位，按 id 升序。
func (l *Ledger) Positions() []Position {
	out := make([]Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, *p)
	}
	slices.SortFunc(out, func(a, b Position) int {
		switch {
		case a.InstrumentID < b.InstrumentID:
			return -1
		case a.InstrumentID > b.InstrumentID:
			return 1
		}
		return 0
	})
	return out
}

// Open 返回非空仓位。
func (l *Ledger) Open() []Position {
	all := l.Positions()
	out := all[:0]
	for _, p := range all {
		if !p.IsFlat() {
			out = append(out, p)
		}
	}
	return out
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
