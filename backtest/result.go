package backtest

import (
	"fmt"
	"io"
	"sort"
	"time"

	"mbo-backtester/fixed"
	"mbo-backtester/inventory"
	"mbo-backtester/portfolio"
	"mbo-backtester/posttrade"
)

// StopReason 说明循环为何结束。
type StopReason string

const (
	StopEndOfBacktest StopReason = "end_of_backtest"
	StopEndTime       StopReason = "end_time"
	StopQueueDrained  StopReason = "queue_drained"
)

// EquityPoint 是权益曲线上的一个点，金额与比例均为定点数。
type EquityPoint struct {
	Ts       int64
	Equity   int64
	Drawdown int64
}

// Result 回测结果
type Result struct {
	RunID     string
	StartTime int64
	EndTime   int64

	Events       uint64
	MarketEvents uint64
	LastEventTs  int64
	Signals      int
	Orders       int
	Fills        int
	StaleFills   int // 成交前已改单/撤单而作废
	Rejections   int

	RejectionsByCode map[string]int
	ImplicitAdds     uint64

	InitialCash   int64
	FinalEquity   int64
	Cash          int64
	RealizedPnL   int64
	UnrealizedPnL int64
	Commissions   int64
	MaxEquity     int64
	MaxDrawdown   int64 // 比例，Scale == 100%

	EquityCurve []EquityPoint
	Trades      []portfolio.TradeRecord
	Positions   []inventory.Position
	Summary     posttrade.Summary
	Markouts    posttrade.Stats

	StopReason StopReason
	Elapsed    time.Duration
}

func newResult(runID string, cfg Config, initialCash int64) *Result {
	return &Result{
		RunID:            runID,
		StartTime:        cfg.StartTime,
		EndTime:          cfg.EndTime,
		RejectionsByCode: make(map[string]int),
		InitialCash:      initialCash,
		FinalEquity:      initialCash,
		MaxEquity:        initialCash,
	}
}

// TotalPnL 返回最终权益与初始资金之差。
func (r *Result) TotalPnL() int64 { return r.FinalEquity - r.InitialCash }

// Print 打印回测结果
func (r *Result) Print(w io.Writer) {
	ts := func(v int64) string { return time.Unix(0, v).UTC().Format(time.RFC3339) }
	fmt.Fprintln(w, "=== 回测结果 ===")
	fmt.Fprintf(w, "运行ID: %s\n", r.RunID)
	fmt.Fprintf(w, "时间范围: %s - %s\n", ts(r.StartTime), ts(r.EndTime))
	fmt.Fprintf(w, "结束原因: %s\n", r.StopReason)
	fmt.Fprintf(w, "初始资金: %s\n", fixed.Format(r.InitialCash))
	fmt.Fprintf(w, "最终权益: %s\n", fixed.Format(r.FinalEquity))
	fmt.Fprintf(w, "总盈亏: %s (已实现 %s, 未实现 %s, 手续费 %s)\n",
		fixed.Format(r.TotalPnL()), fixed.Format(r.RealizedPnL), fixed.Format(r.UnrealizedPnL), fixed.Format(r.Commissions))
	fmt.Fprintf(w, "最大回撤: %s%%\n", fixed.ToDecimal(r.MaxDrawdown).Shift(2).StringFixed(2))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "事件数: %d (行情 %d)\n", r.Events, r.MarketEvents)
	fmt.Fprintf(w, "信号/订单/成交: %d / %d / %d (作废成交 %d)\n", r.Signals, r.Orders, r.Fills, r.StaleFills)
	fmt.Fprintf(w, "风控拒绝: %d\n", r.Rejections)
	codes := make([]string, 0, len(r.RejectionsByCode))
	for c := range r.RejectionsByCode {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	for _, c := range codes {
		fmt.Fprintf(w, "  %s: %d\n", c, r.RejectionsByCode[c])
	}
	fmt.Fprintf(w, "隐式新增订单: %d\n", r.ImplicitAdds)
	fmt.Fprintf(w, "平仓成交: %d 胜 %d 负 %d 胜率 %.2f%% 盈亏比 %.2f\n",
		r.Summary.Closing, r.Summary.Wins, r.Summary.Losses, r.Summary.WinRate*100, r.Summary.ProfitFactor)
	for _, h := range r.Markouts.Horizons {
		fmt.Fprintf(w, "markout %s: 样本 %d 逆向 %.2f%% 均值 %s\n", h.Horizon, h.Analyzed, h.AdverseRate*100, fixed.Format(h.AvgMarkout))
	}
	for _, p := range r.Positions {
		fmt.Fprintf(w, "持仓 %d: %d @ %s\n", p.InstrumentID, p.Quantity, fixed.Format(p.AvgEntryPrice))
	}
	fmt.Fprintf(w, "耗时: %s\n", r.Elapsed)
	fmt.Fprintln(w, "================")
}
