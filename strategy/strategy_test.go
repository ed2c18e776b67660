package strategy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mbo-backtester/event"
	"mbo-backtester/fixed"
	"mbo-backtester/market"
)

func book(bid, ask int64) []market.BidAskPair {
	return []market.BidAskPair{
		{BidPx: fixed.Price(bid), AskPx: fixed.Price(ask), BidSz: 1, AskSz: 1},
		{BidPx: fixed.Price(bid - 1), AskPx: fixed.Price(ask + 1)},
	}
}

type recorder struct {
	id    string
	depth int
	seen  []int
	fills int
	eod   int
	emit  []event.StrategySignal
}

func (r *recorder) ID() string { return r.id }
func (r *recorder) Depth() int { return r.depth }
func (r *recorder) OnMarketEvent(_ event.MarketDelta, snap []market.BidAskPair) []event.StrategySignal {
	r.seen = append(r.seen, len(snap))
	return r.emit
}
func (r *recorder) OnFill(event.Fill) { r.fills++ }
func (r *recorder) OnEndOfDay(int64)  { r.eod++ }

func TestManagerStampsSignals(t *testing.T) {
	m := NewManager(nil)
	a := &recorder{id: "a", depth: 1, emit: []event.StrategySignal{{Signal: event.SignalBuy}}}
	b := &recorder{id: "b", depth: 5, emit: []event.StrategySignal{{Signal: event.SignalSell, SignalID: 900, Ts: 3}}}
	require.NoError(t, m.Add(a))
	require.NoError(t, m.Add(b))
	assert.Error(t, m.Add(&recorder{id: "a"}))
	assert.Equal(t, 5, m.Depth())

	sigs := m.OnMarketEvent(event.MarketDelta{TsEvent: 7}, book(10, 11))
	require.Len(t, sigs, 2)
	assert.Equal(t, "a", sigs[0].StrategyID)
	assert.Equal(t, int64(7), sigs[0].Ts)
	assert.Equal(t, uint64(1), sigs[0].SignalID)
	assert.Equal(t, "b", sigs[1].StrategyID)
	assert.Equal(t, uint64(900), sigs[1].SignalID)
	assert.Equal(t, int64(3), sigs[1].Ts)
	assert.Equal(t, []int{1}, a.seen)
	assert.Equal(t, []int{2}, b.seen)

	m.OnFill(event.Fill{StrategyID: "b"})
	m.OnFill(event.Fill{StrategyID: "zzz"})
	assert.Equal(t, 0, a.fills)
	assert.Equal(t, 1, b.fills)

	m.OnEndOfDay(1)
	assert.Equal(t, 1, a.eod)
	assert.Equal(t, 1, b.eod)
}

func TestMidCrossSignals(t *testing.T) {
	s, err := NewMidCross("mc", 1, 2, 3, 1, 1)
	require.NoError(t, err)
	d := event.MarketDelta{InstrumentID: 1}

	feed := func(mid int64) []event.StrategySignal {
		return s.OnMarketEvent(d, book(mid-1, mid+1))
	}
	// 下行序列建立 short < long
	assert.Empty(t, feed(100))
	assert.Empty(t, feed(98))
	assert.Empty(t, feed(96))
	// 上穿
	assert.Empty(t, feed(96))
	sigs := feed(110)
	require.Len(t, sigs, 1)
	assert.Equal(t, event.SignalBuy, sigs[0].Signal)
	assert.Equal(t, int64(111), sigs[0].Price)
	assert.Equal(t, uint32(1), sigs[0].Quantity)

	s.OnFill(event.Fill{Side: event.SideBid, Quantity: 1})
	assert.Equal(t, int64(1), s.Position())

	// 下穿：从 +1 翻到 -1 需要卖 2
	sigs = feed(70)
	require.Len(t, sigs, 1)
	assert.Equal(t, event.SignalSell, sigs[0].Signal)
	assert.Equal(t, int64(69), sigs[0].Price)
	assert.Equal(t, uint32(2), sigs[0].Quantity)

	// 其他合约忽略
	assert.Empty(t, s.OnMarketEvent(event.MarketDelta{InstrumentID: 2}, book(1, 3)))
}

func TestMidCrossValidation(t *testing.T) {
	_, err := NewMidCross("x", 1, 3, 3, 1, 1)
	assert.Error(t, err)
	_, err = NewMidCross("x", 1, 1, 3, 0, 1)
	assert.Error(t, err)
}

func TestJoinBboQuotesAndFollows(t *testing.T) {
	s, err := NewJoinBbo("jb", 1, 2, 2)
	require.NoError(t, err)
	var id uint64
	s.SetIDSource(func() uint64 { id++; return id })
	d := event.MarketDelta{InstrumentID: 1}

	sigs := s.OnMarketEvent(d, book(100, 101))
	require.Len(t, sigs, 2)
	assert.Equal(t, event.SignalBuy, sigs[0].Signal)
	assert.Equal(t, uint64(1), sigs[0].SignalID)
	assert.Equal(t, event.SignalSell, sigs[1].Signal)

	// 盘口不变：无动作
	assert.Empty(t, s.OnMarketEvent(d, book(100, 101)))

	// 卖一上移：改单
	sigs = s.OnMarketEvent(d, book(100, 102))
	require.Len(t, sigs, 1)
	assert.Equal(t, event.SignalModify, sigs[0].Signal)
	assert.Equal(t, uint64(2), sigs[0].OrderID)
	assert.Equal(t, int64(102), sigs[0].Price)

	// 买单成交到上限后不再报买
	s.OnFill(event.Fill{OrderID: 1, Side: event.SideBid, Quantity: 2})
	assert.Equal(t, int64(2), s.Position())
	sigs = s.OnMarketEvent(d, book(100, 102))
	assert.Empty(t, sigs)
}

func TestJoinBboCancelsWhenAtLimit(t *testing.T) {
	s, err := NewJoinBbo("jb", 1, 1, 1)
	require.NoError(t, err)
	var id uint64
	s.SetIDSource(func() uint64 { id++; return id })
	d := event.MarketDelta{InstrumentID: 1}
	require.Len(t, s.OnMarketEvent(d, book(100, 101)), 2)

	// 卖单成交后仓位 -1：买单仍允许（回到 0），卖单已无在途
	s.OnFill(event.Fill{OrderID: 2, Side: event.SideAsk, Quantity: 1})
	assert.Empty(t, s.OnMarketEvent(d, book(100, 101)))

	// 外部成交让仓位到 +1，再次满足撤买条件
	s.OnFill(event.Fill{OrderID: 99, Side: event.SideBid, Quantity: 2})
	sigs := s.OnMarketEvent(d, book(100, 101))
	require.Len(t, sigs, 2)
	assert.Equal(t, event.SignalCancel, sigs[0].Signal)
	assert.Equal(t, uint64(1), sigs[0].OrderID)
	assert.Equal(t, event.SignalSell, sigs[1].Signal)
}

func TestJoinBboRejectClearsSlot(t *testing.T) {
	s, _ := NewJoinBbo("jb", 1, 1, 5)
	var id uint64
	s.SetIDSource(func() uint64 { id++; return id })
	d := event.MarketDelta{InstrumentID: 1}
	sigs := s.OnMarketEvent(d, book(100, 101))
	s.OnReject(sigs[0], errors.New("rejected"))
	sigs = s.OnMarketEvent(d, book(100, 101))
	require.Len(t, sigs, 1)
	assert.Equal(t, event.SignalBuy, sigs[0].Signal)
}

func TestFactory(t *testing.T) {
	s, err := Create(Config{Name: "mid_cross", ID: "fast", Params: []int64{2, 5}, MaxLobLvl: 3})
	require.NoError(t, err)
	assert.Equal(t, "fast", s.ID())
	assert.Equal(t, 3, s.Depth())

	s, err = Create(Config{Name: "JOIN_BBO", InstrumentID: 1, Params: []int64{1, 3}})
	require.NoError(t, err)
	assert.Equal(t, "JOIN_BBO", s.ID())

	_, err = Create(Config{Name: "grid"})
	assert.Error(t, err)
	_, err = Create(Config{Name: "join_bbo", InstrumentID: 1})
	assert.Error(t, err)
}

func TestBookImbalance(t *testing.T) {
	s, err := NewBookImbalance("imb", 1, 2, 3000, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Depth())

	d := event.MarketDelta{InstrumentID: 1}
	snap := func(bidSz, askSz uint64) []market.BidAskPair {
		return []market.BidAskPair{
			{BidPx: fixed.Price(100), AskPx: fixed.Price(101), BidSz: bidSz, AskSz: askSz},
			{BidPx: fixed.Price(99), AskPx: fixed.Price(102), BidSz: bidSz, AskSz: askSz},
		}
	}

	// 0.2 未到阈值
	assert.Empty(t, s.OnMarketEvent(d, snap(6, 4)))

	sigs := s.OnMarketEvent(d, snap(7, 3))
	require.Len(t, sigs, 1)
	assert.Equal(t, event.SignalBuy, sigs[0].Signal)
	assert.Equal(t, int64(101), sigs[0].Price)
	assert.Equal(t, uint32(2), sigs[0].Quantity)

	// 在途时不重复下单
	assert.Empty(t, s.OnMarketEvent(d, snap(9, 1)))
	s.OnFill(event.Fill{Side: event.SideBid, Quantity: 2})
	assert.Equal(t, int64(2), s.Position())
	assert.Empty(t, s.OnMarketEvent(d, snap(9, 1)))

	sigs = s.OnMarketEvent(d, snap(1, 9))
	require.Len(t, sigs, 1)
	assert.Equal(t, event.SignalSell, sigs[0].Signal)
	assert.Equal(t, int64(100), sigs[0].Price)
	assert.Equal(t, uint32(4), sigs[0].Quantity)

	s.OnReject(sigs[0], errors.New("rejected"))
	assert.Len(t, s.OnMarketEvent(d, snap(1, 9)), 1)

	assert.Empty(t, s.OnMarketEvent(event.MarketDelta{InstrumentID: 2}, snap(1, 9)))

	_, err = NewBookImbalance("bad", 1, 0, 3000, 1)
	assert.Error(t, err)
	_, err = NewBookImbalance("bad", 1, 1, 20000, 1)
	assert.Error(t, err)

	c, err := Create(Config{Name: "book_imbalance", InstrumentID: 1, Params: []int64{3, 2500}})
	require.NoError(t, err)
	assert.Equal(t, 3, c.Depth())
}
