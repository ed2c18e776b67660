package inventory

import (
	"mbo-backtester/fixed"
	"mbo-backtester/market"
)

// markPrice 多头按 bid、空头按 ask 平仓估值，缺报价时退回开仓价。
func markPrice(p Position, bbo market.Bbo) int64 {
	if p.IsLong() {
		return bbo.Bid.Or(p.AvgEntryPrice)
	}
	return bbo.Ask.Or(p.AvgEntryPrice)
}

// Unrealized 计算未实现盈亏。
func Unrealized(inst Instrument, p Position, bbo market.Bbo) int64 {
	if p.IsFlat() {
		return 0
	}
	return inst.ClosePnL(p.AvgEntryPrice, markPrice(p, bbo), abs(p.Quantity), p.IsLong())
}

// UsedMargin 返回仓位占用的保证金：期货按每手保证金，股票按开仓成本锁定。
func UsedMargin(inst Instrument, p Position) int64 {
	return inst.Margin(p.Quantity, p.AvgEntryPrice)
}

// referencePrice 优先 mid，其次单边报价，最后 fallback。
func referencePrice(bbo market.Bbo, fallback int64) int64 {
	if mid, ok := bbo.Mid(); ok {
		return mid
	}
	if v, ok := bbo.Bid.Get(); ok {
		return v
	}
	if v, ok := bbo.Ask.Get(); ok {
		return v
	}
	return fallback
}

// Delta 返回 signedQty 手的美元 delta（定点）。期货按 tick 价值换算名义价值。
func Delta(inst Instrument, signedQty int64, bbo market.Bbo, fallback int64) int64 {
	if signedQty == 0 {
		return 0
	}
	ref := referencePrice(bbo, fallback)
	return fixed.Mul(inst.ValueOf(ref), signedQty)
}
