// Package strategy 定义策略接口、多策略调度器以及内置策略。
package strategy

import (
	"mbo-backtester/event"
	"mbo-backtester/market"
)

// Strategy 接收行情与成交回报，返回交易意图。策略只能看到只读快照，不能直接改簿或组合。
type Strategy interface {
	ID() string
	// Depth 是策略需要的盘口档数。
	Depth() int
	OnMarketEvent(d event.MarketDelta, snap []market.BidAskPair) []event.StrategySignal
	OnFill(f event.Fill)
	OnEndOfDay(ts int64)
}

// IDAware 由需要自行分配信号 id 的策略实现（之后要按 id 改单/撤单）。
type IDAware interface {
	SetIDSource(next func() uint64)
}

// RejectionAware 由需要知道信号被风控拒绝的策略实现。
type RejectionAware interface {
	OnReject(sig event.StrategySignal, err error)
}

// Config 是单个策略实例的配置。
type Config struct {
	Name         string  `yaml:"name"`
	ID           string  `yaml:"id"`
	InstrumentID uint32  `yaml:"instrument_id"`
	Params       []int64 `yaml:"params"`
	MaxLobLvl    int     `yaml:"max_lob_lvl"`
}

// bestOf 返回快照首档的买卖价。
func bestOf(snap []market.BidAskPair) (bid, ask int64, ok bool) {
	if len(snap) == 0 {
		return 0, 0, false
	}
	bid, okB := snap[0].BidPx.Get()
	ask, okA := snap[0].AskPx.Get()
	return bid, ask, okB && okA
}
