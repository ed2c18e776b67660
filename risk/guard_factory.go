package risk

// BuildGuards 按固定顺序组装下单前检查：
// tick -> 回撤 -> 购买力 -> 仓位上限 -> 单笔风险 -> 组合 delta -> 单笔 delta。
// 未配置（为 0）的仓位、单笔风险与 delta 限制直接放行；回撤上限为 0 时不允许任何回撤。
func BuildGuards(l Limits) MultiGuard {
	return MultiGuard{Guards: []Guard{
		TickGuard{},
		DrawdownGuard{MaxPct: l.MaxDrawdownPct},
		BuyingPowerGuard{},
		PositionGuard{Max: l.MaxPositionSize},
		RiskPerTradeGuard{MaxPct: l.MaxRiskPerTradePct},
		PortfolioDeltaGuard{Max: l.MaxPortfolioDelta},
		DeltaPerTradeGuard{Max: l.MaxDeltaPerTrade},
	}}
}
