package portfolio

import (
	"mbo-backtester/inventory"
	"mbo-backtester/market"
	"mbo-backtester/order"
	"mbo-backtester/risk"
)

var _ risk.Account = (*Manager)(nil)

// UnrealizedPnL 汇总所有持仓按报价估值的浮动盈亏。
func (m *Manager) UnrealizedPnL(quotes map[uint32]market.Bbo) int64 {
	var total int64
	for _, p := range m.ledger.Open() {
		total += inventory.Unrealized(m.instruments[p.InstrumentID], p, quotes[p.InstrumentID])
	}
	return total
}

// TotalEquity = 现金 + 浮动盈亏。每次读取都会刷新权益峰值。
func (m *Manager) TotalEquity(quotes map[uint32]market.Bbo) int64 {
	eq := m.cash + m.UnrealizedPnL(quotes)
	if eq > m.maxEquity {
		m.maxEquity = eq
	}
	return eq
}

// UsedMargin 汇总持仓占用的保证金。
func (m *Manager) UsedMargin() int64 {
	var total int64
	for _, p := range m.ledger.Open() {
		total += inventory.UsedMargin(m.instruments[p.InstrumentID], p)
	}
	return total
}

// BuyingPower = 权益 - 已用保证金。
func (m *Manager) BuyingPower(quotes map[uint32]market.Bbo) int64 {
	return m.TotalEquity(quotes) - m.UsedMargin()
}

// CurrentDrawdown 返回相对权益峰值的回撤比例（定点，1.0 == fixed.Scale）。
func (m *Manager) CurrentDrawdown(quotes map[uint32]market.Bbo) int64 {
	eq := m.TotalEquity(quotes)
	return risk.Drawdown(m.maxEquity, eq)
}

// PortfolioDelta 汇总各持仓的美元 delta。
func (m *Manager) PortfolioDelta(quotes map[uint32]market.Bbo) int64 {
	var total int64
	for _, p := range m.ledger.Open() {
		total += inventory.Delta(m.instruments[p.InstrumentID], p.Quantity, quotes[p.InstrumentID], p.AvgEntryPrice)
	}
	return total
}

func (m *Manager) PositionQty(instrumentID uint32) int64 {
	return m.ledger.NetExposure(instrumentID)
}

func (m *Manager) Position(instrumentID uint32) inventory.Position {
	return m.ledger.Position(instrumentID)
}

// HasPosition 判断合约是否持仓。
func (m *Manager) HasPosition(instrumentID uint32) bool {
	return m.ledger.NetExposure(instrumentID) != 0
}

// Positions 返回交易过的全部合约仓位。
func (m *Manager) Positions() []inventory.Position { return m.ledger.Positions() }

func (m *Manager) Cash() int64          { return m.cash }
func (m *Manager) InitialCash() int64   { return m.initialCash }
func (m *Manager) RealizedPnL() int64   { return m.realized }
func (m *Manager) Commissions() int64   { return m.commissions }
func (m *Manager) MaxEquitySeen() int64 { return m.maxEquity }

// Instrument 返回合约参数。
func (m *Manager) Instrument(id uint32) (inventory.Instrument, bool) {
	inst, ok := m.instruments[id]
	return inst, ok
}

// WorkingOrders 返回在途订单。
func (m *Manager) WorkingOrders() []order.Order { return m.working.List() }
