package risk

import "mbo-backtester/fixed"

// Limits 配置。比例字段为定点数（0.1 == Scale/10）。
// 除 MaxDrawdownPct 外，0 表示不限制。
type Limits struct {
	MaxPositionSize    int64
	MaxRiskPerTradePct int64
	MaxPortfolioDelta  int64
	MaxDrawdownPct     int64
	MaxDeltaPerTrade   int64
}

// TickGuard 拒绝不在最小变动价位上的价格与 0 数量。
type TickGuard struct{}

func (TickGuard) PreOrder(req Request, _ Account) error {
	if req.Signal.Quantity == 0 {
		return Reject(ErrInvalidQuantity, "signal %d", req.Signal.SignalID)
	}
	if !req.Instrument.OnTick(req.Signal.Price) {
		return Reject(ErrInvalidTick, "price %s tick %s",
			fixed.Format(req.Signal.Price), fixed.Format(req.Instrument.TickSize))
	}
	return nil
}

// BuyingPowerGuard 要求新单所需保证金不超过可用资金。
type BuyingPowerGuard struct{}

func (BuyingPowerGuard) PreOrder(req Request, acct Account) error {
	need := req.Instrument.Margin(req.SignedQty, req.Signal.Price)
	avail := acct.BuyingPower(req.Quotes)
	if need > avail {
		return Reject(ErrBuyingPower, "need %s available %s", fixed.Format(need), fixed.Format(avail))
	}
	return nil
}

// PositionGuard 限制成交后的净仓位绝对值。
type PositionGuard struct {
	Max int64
}

func (g PositionGuard) PreOrder(req Request, acct Account) error {
	if g.Max <= 0 {
		return nil
	}
	next := acct.PositionQty(req.Instrument.ID) + req.SignedQty
	if abs(next) > g.Max {
		return Reject(ErrPositionLimit, "instrument %d position %d > %d", req.Instrument.ID, next, g.Max)
	}
	return nil
}

// RiskPerTradeGuard 限制单笔保证金占权益的比例。
type RiskPerTradeGuard struct {
	MaxPct int64
}

func (g RiskPerTradeGuard) PreOrder(req Request, acct Account) error {
	if g.MaxPct <= 0 {
		return nil
	}
	equity := acct.TotalEquity(req.Quotes)
	need := req.Instrument.Margin(req.SignedQty, req.Signal.Price)
	if equity <= 0 {
		return Reject(ErrRiskPerTrade, "equity %s", fixed.Format(equity))
	}
	if ratio := fixed.Ratio(need, equity); ratio > g.MaxPct {
		return Reject(ErrRiskPerTrade, "%s of equity > %s", fixed.Format(ratio), fixed.Format(g.MaxPct))
	}
	return nil
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
