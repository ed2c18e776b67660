package risk

import (
	"mbo-backtester/event"
	"mbo-backtester/inventory"
	"mbo-backtester/market"
)

// Account 是组合对风控暴露的只读视图，所有读数基于传入的报价。
type Account interface {
	TotalEquity(quotes map[uint32]market.Bbo) int64
	BuyingPower(quotes map[uint32]market.Bbo) int64
	CurrentDrawdown(quotes map[uint32]market.Bbo) int64
	PositionQty(instrumentID uint32) int64
	PortfolioDelta(quotes map[uint32]market.Bbo) int64
}

// Request 是一次下单前检查的输入。SignedQty 买为正、卖为负。
type Request struct {
	Signal     event.StrategySignal
	Instrument inventory.Instrument
	SignedQty  int64
	Quotes     map[uint32]market.Bbo
}

// Guard 是通用接口，tick、回撤、保证金、仓位等都可实现。
type Guard interface {
	PreOrder(req Request, acct Account) error
}

// GuardFunc 适配普通函数。
type GuardFunc func(req Request, acct Account) error

func (f GuardFunc) PreOrder(req Request, acct Account) error { return f(req, acct) }

// MultiGuard 顺序执行多个 Guard，只要有一个返回错误则中止。
type MultiGuard struct {
	Guards []Guard
}

func (m MultiGuard) PreOrder(req Request, acct Account) error {
	for _, g := range m.Guards {
		if g == nil {
			continue
		}
		if err := g.PreOrder(req, acct); err != nil {
			return err
		}
	}
	return nil
}
