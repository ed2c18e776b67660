// Package posttrade 做回测后的成交分析：成交后 mid 的 markout（逆向选择）与盈亏统计。
package posttrade

import (
	"slices"
	"time"

	"mbo-backtester/event"
	"mbo-backtester/portfolio"
)

// DefaultHorizons 是默认的 markout 观察窗口（模拟时间）。
var DefaultHorizons = []time.Duration{time.Second, 5 * time.Second}

// fillRecord 跟踪一笔成交在各窗口到期后看到的第一个 mid。
type fillRecord struct {
	ts           int64
	instrumentID uint32
	side         event.Side
	price        int64
	marks        []int64
	marked       []bool
	left         int
}

// HorizonStats 是单个窗口的统计。Markout 为每单位的价格变化，正值表示对我方有利。
type HorizonStats struct {
	Horizon     time.Duration
	Analyzed    int
	Adverse     int
	AdverseRate float64
	AvgMarkout  int64 // 定点
}

// Stats contains statistics computed by the analyzer
type Stats struct {
	TotalFills int
	Horizons   []HorizonStats
}

// Analyzer 按模拟时间计算成交后的 markout。单线程使用。
type Analyzer struct {
	horizons []int64
	records  []*fillRecord
	pending  map[uint32][]*fillRecord
}

// NewAnalyzer 创建分析器；不传窗口时使用 DefaultHorizons。
func NewAnalyzer(horizons ...time.Duration) *Analyzer {
	if len(horizons) == 0 {
		horizons = DefaultHorizons
	}
	hs := make([]int64, 0, len(horizons))
	for _, h := range horizons {
		if h > 0 {
			hs = append(hs, h.Nanoseconds())
		}
	}
	slices.Sort(hs)
	return &Analyzer{horizons: slices.Compact(hs), pending: make(map[uint32][]*fillRecord)}
}

// OnFill records a fill
func (a *Analyzer) OnFill(rec portfolio.TradeRecord) {
	r := &fillRecord{
		ts:           rec.Ts,
		instrumentID: rec.InstrumentID,
		side:         rec.Side,
		price:        rec.Price,
		marks:        make([]int64, len(a.horizons)),
		marked:       make([]bool, len(a.horizons)),
		left:         len(a.horizons),
	}
	a.records = append(a.records, r)
	if r.left > 0 {
		a.pending[r.instrumentID] = append(a.pending[r.instrumentID], r)
	}
}

// OnMid 提供某合约在 ts 的 mid；到期窗口取到期后的第一个 mid。
func (a *Analyzer) OnMid(instrumentID uint32, ts, mid int64) {
	list := a.pending[instrumentID]
	if len(list) == 0 {
		return
	}
	keep := list[:0]
	for _, r := range list {
		for i, h := range a.horizons {
			if !r.marked[i] && ts >= r.ts+h {
				r.marks[i], r.marked[i] = mid, true
				r.left--
			}
		}
		if r.left > 0 {
			keep = append(keep, r)
		}
	}
	clear(list[len(keep):])
	a.pending[instrumentID] = keep
}

// Pending 返回仍在等待 mid 的成交数。
func (a *Analyzer) Pending() int {
	n := 0
	for _, l := range a.pending {
		n += len(l)
	}
	return n
}

// Stats computes and returns statistics
func (a *Analyzer) Stats() Stats {
	stats := Stats{TotalFills: len(a.records), Horizons: make([]HorizonStats, len(a.horizons))}
	for i, h := range a.horizons {
		hs := HorizonStats{Horizon: time.Duration(h)}
		var sum int64
		for _, r := range a.records {
			if !r.marked[i] {
				continue
			}
			m := r.marks[i] - r.price
			if r.side == event.SideAsk {
				m = -m
			}
			hs.Analyzed++
			sum += m
			if m < 0 {
				hs.Adverse++
			}
		}
		if hs.Analyzed > 0 {
			hs.AvgMarkout = sum / int64(hs.Analyzed)
			hs.AdverseRate = float64(hs.Adverse) / float64(hs.Analyzed)
		}
		stats.Horizons[i] = hs
	}
	return stats
}
