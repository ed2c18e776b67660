package risk

import (
	"mbo-backtester/fixed"
	"mbo-backtester/inventory"
)

// PortfolioDeltaGuard 限制成交后组合美元 delta 的绝对值。
type PortfolioDeltaGuard struct {
	Max int64
}

func (g PortfolioDeltaGuard) PreOrder(req Request, acct Account) error {
	if g.Max <= 0 {
		return nil
	}
	order := inventory.Delta(req.Instrument, req.SignedQty, req.Quotes[req.Instrument.ID], req.Signal.Price)
	next := acct.PortfolioDelta(req.Quotes) + order
	if abs(next) > g.Max {
		return Reject(ErrPortfolioDelta, "delta %s > %s", fixed.Format(next), fixed.Format(g.Max))
	}
	return nil
}

// DeltaPerTradeGuard 限制单笔订单的美元 delta。
type DeltaPerTradeGuard struct {
	Max int64
}

func (g DeltaPerTradeGuard) PreOrder(req Request, _ Account) error {
	if g.Max <= 0 {
		return nil
	}
	order := inventory.Delta(req.Instrument, req.SignedQty, req.Quotes[req.Instrument.ID], req.Signal.Price)
	if abs(order) > g.Max {
		return Reject(ErrDeltaPerTrade, "order delta %s > %s", fixed.Format(order), fixed.Format(g.Max))
	}
	return nil
}
