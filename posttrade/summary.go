package posttrade

import (
	"mbo-backtester/fixed"
	"mbo-backtester/portfolio"
)

// Summary 是成交记录的盈亏统计，金额为定点数。
type Summary struct {
	Trades       int
	Closing      int // 有平仓部分的成交
	Wins         int
	Losses       int
	WinRate      float64
	GrossProfit  int64
	GrossLoss    int64 // 负数
	NetRealized  int64
	Commissions  int64
	NetAfterFees int64
	ProfitFactor float64 // GrossLoss 为 0 时为 0
	Volume       uint64
	AvgWin       int64
	AvgLoss      int64
}

// Summarize 统计成交记录。胜负只看平仓成交的已实现盈亏（不含手续费）。
func Summarize(trades []portfolio.TradeRecord) Summary {
	var s Summary
	s.Trades = len(trades)
	for _, t := range trades {
		s.Volume += uint64(t.Quantity)
		s.Commissions += t.Commission
		if !t.Closing() {
			continue
		}
		s.Closing++
		s.NetRealized += t.RealizedPnL
		switch {
		case t.RealizedPnL > 0:
			s.Wins++
			s.GrossProfit += t.RealizedPnL
		case t.RealizedPnL < 0:
			s.Losses++
			s.GrossLoss += t.RealizedPnL
		}
	}
	s.NetAfterFees = s.NetRealized - s.Commissions
	if s.Closing > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Closing)
	}
	if s.Wins > 0 {
		s.AvgWin = s.GrossProfit / int64(s.Wins)
	}
	if s.Losses > 0 {
		s.AvgLoss = s.GrossLoss / int64(s.Losses)
	}
	if s.GrossLoss < 0 {
		s.ProfitFactor = fixed.Float(fixed.Ratio(s.GrossProfit, -s.GrossLoss))
	}
	return s
}
