package portfolio

import (
	"slices"

	"mbo-backtester/event"
)

// TradeRecord 是一笔成交的账本记录。RealizedPnL 为该笔成交平仓部分的实际盈亏（开仓为 0）。
type TradeRecord struct {
	Ts            int64
	StrategyID    string
	OrderID       uint64
	InstrumentID  uint32
	Side          event.Side
	Price         int64
	Quantity      uint32
	Commission    int64
	RealizedPnL   int64
	PositionAfter int64
	AvgEntryAfter int64
}

// Closing 判断该笔成交是否减少了仓位。
func (r TradeRecord) Closing() bool {
	before := r.PositionAfter
	if r.Side == event.SideBid {
		before -= int64(r.Quantity)
	} else {
		before += int64(r.Quantity)
	}
	return before != 0 && (before > 0) != (r.Side == event.SideBid)
}

// TradeHistory 返回成交记录副本，按时间顺序。
func (m *Manager) TradeHistory() []TradeRecord {
	return slices.Clone(m.history)
}
