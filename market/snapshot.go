package market

import "mbo-backtester/fixed"

// Bbo 是跨发布方合并后的最优买卖价。Size 为各发布方在最优价上的数量之和。
type Bbo struct {
	Bid     fixed.OptPrice
	Ask     fixed.OptPrice
	BidSize uint64
	AskSize uint64
	Ts      int64
}

// Mid 返回中间价，任一侧缺失时返回 false。
func (b Bbo) Mid() (int64, bool) {
	bid, okB := b.Bid.Get()
	ask, okA := b.Ask.Get()
	if !okB || !okA {
		return 0, false
	}
	return bid + (ask-bid)/2, true
}

// Spread 返回 ask-bid。
func (b Bbo) Spread() (int64, bool) {
	bid, okB := b.Bid.Get()
	ask, okA := b.Ask.Get()
	if !okB || !okA {
		return 0, false
	}
	return ask - bid, true
}

// Crossed 判断是否出现 bid >= ask（多发布方合并时可能短暂发生）。
func (b Bbo) Crossed() bool {
	s, ok := b.Spread()
	return ok && s <= 0
}
