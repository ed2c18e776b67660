package risk

import "mbo-backtester/fixed"

// DrawdownGuard 在当前回撤（相对权益峰值）超过上限时拒绝开新单。
// 与其它比例限制不同，0 不是"不限制"：上限为 0 时任何正回撤都拒绝。
type DrawdownGuard struct {
	MaxPct int64
}

func (g DrawdownGuard) PreOrder(req Request, acct Account) error {
	if dd := acct.CurrentDrawdown(req.Quotes); dd > g.MaxPct {
		return Reject(ErrDrawdownExceeded, "drawdown %s > %s", fixed.Format(dd), fixed.Format(g.MaxPct))
	}
	return nil
}

// Drawdown 返回 (peak-equity)/peak 的定点比例；peak<=0 时为 0。
func Drawdown(peak, equity int64) int64 {
	if peak <= 0 || equity >= peak {
		return 0
	}
	return fixed.Ratio(peak-equity, peak)
}
