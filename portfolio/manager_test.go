package portfolio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mbo-backtester/event"
	"mbo-backtester/fixed"
	"mbo-backtester/inventory"
	"mbo-backtester/market"
	"mbo-backtester/risk"
)

var es = inventory.Instrument{
	ID:                1,
	Type:              inventory.Future,
	TickSize:          fixed.MustParse("0.25"),
	TickValue:         fixed.MustParse("12.5"),
	MarginRequirement: fixed.FromInt(16_500),
}

func newManager(t *testing.T, cash int64, limits risk.Limits) *Manager {
	t.Helper()
	m, err := New(Config{InitialCash: cash, Instruments: []inventory.Instrument{es}, Limits: limits}, nil)
	require.NoError(t, err)
	return m
}

func fill(id uint64, side event.Side, price int64, qty uint32) event.Fill {
	return event.Fill{Ts: int64(id), OrderID: id, InstrumentID: 1, Side: side, Price: price, Quantity: qty}
}

func signal(id uint64, kind event.SignalKind, price string, qty uint32) event.StrategySignal {
	return event.StrategySignal{Ts: 1, StrategyID: "s", SignalID: id, InstrumentID: 1, Signal: kind, Price: fixed.MustParse(price), Quantity: qty}
}

func TestRoundTripPnL(t *testing.T) {
	m := newManager(t, fixed.FromInt(100_000), risk.Limits{})
	_, err := m.ProcessFill(fill(1, event.SideBid, fixed.FromInt(4000), 1))
	require.NoError(t, err)
	rec, err := m.ProcessFill(fill(2, event.SideAsk, fixed.FromInt(4010), 1))
	require.NoError(t, err)

	assert.Equal(t, fixed.FromInt(500), m.RealizedPnL())
	assert.Equal(t, fixed.FromInt(500), rec.RealizedPnL)
	assert.True(t, rec.Closing())
	assert.False(t, m.HasPosition(1))
	assert.Equal(t, fixed.FromInt(100_500), m.Cash())

	hist := m.TradeHistory()
	require.Len(t, hist, 2)
	assert.Equal(t, int64(0), hist[0].RealizedPnL)
	assert.False(t, hist[0].Closing())
}

func TestFlip(t *testing.T) {
	m := newManager(t, fixed.FromInt(100_000), risk.Limits{})
	_, _ = m.ProcessFill(fill(1, event.SideBid, fixed.FromInt(4000), 1))
	_, err := m.ProcessFill(fill(2, event.SideAsk, fixed.FromInt(4010), 2))
	require.NoError(t, err)

	assert.Equal(t, fixed.FromInt(500), m.RealizedPnL())
	p := m.Position(1)
	assert.Equal(t, int64(-1), p.Quantity)
	assert.Equal(t, fixed.FromInt(4010), p.AvgEntryPrice)
}

func TestDrawdownBlocksNewOrders(t *testing.T) {
	m := newManager(t, fixed.FromInt(100_000), risk.Limits{MaxDrawdownPct: fixed.MustParse("0.10")})
	_, _ = m.ProcessFill(fill(1, event.SideBid, fixed.FromInt(4000), 1))
	_, _ = m.ProcessFill(fill(2, event.SideAsk, fixed.FromInt(2000), 1))

	quotes := map[uint32]market.Bbo{}
	assert.Equal(t, int64(0), m.TotalEquity(quotes))
	assert.Equal(t, fixed.FromInt(100_000), m.MaxEquitySeen())
	assert.Equal(t, fixed.Scale, m.CurrentDrawdown(quotes))

	_, err := m.RequestOrder(signal(10, event.SignalBuy, "2000", 1), quotes)
	assert.ErrorIs(t, err, risk.ErrDrawdownExceeded)
	var rej *risk.Rejection
	assert.True(t, errors.As(err, &rej))
}

func TestZeroDrawdownLimitRejectsAnyLoss(t *testing.T) {
	m := newManager(t, fixed.FromInt(100_000), risk.Limits{})
	_, err := m.RequestOrder(signal(1, event.SignalBuy, "4000", 1), nil)
	require.NoError(t, err)
	_, _ = m.ProcessFill(fill(1, event.SideBid, fixed.FromInt(4000), 1))
	// 1600 ticks * 12.5 = 20000
	_, _ = m.ProcessFill(fill(2, event.SideAsk, fixed.FromInt(3600), 1))

	assert.Equal(t, fixed.FromInt(80_000), m.TotalEquity(nil))
	assert.Equal(t, fixed.Scale/5, m.CurrentDrawdown(nil))
	_, err = m.RequestOrder(signal(3, event.SignalBuy, "3600", 1), nil)
	assert.ErrorIs(t, err, risk.ErrDrawdownExceeded)
}

func TestMaxEquityIsHighWaterMark(t *testing.T) {
	m := newManager(t, fixed.FromInt(100_000), risk.Limits{})
	_, _ = m.ProcessFill(fill(1, event.SideBid, fixed.FromInt(4000), 1))
	up := map[uint32]market.Bbo{1: {Bid: fixed.Price(fixed.FromInt(4100)), Ask: fixed.Price(fixed.MustParse("4100.25"))}}
	// 400 ticks * 12.5 = 5000
	assert.Equal(t, fixed.FromInt(105_000), m.TotalEquity(up))
	down := map[uint32]market.Bbo{1: {Bid: fixed.Price(fixed.FromInt(4000)), Ask: fixed.Price(fixed.MustParse("4000.25"))}}
	assert.Equal(t, fixed.FromInt(100_000), m.TotalEquity(down))
	assert.Equal(t, fixed.FromInt(105_000), m.MaxEquitySeen())
	// 5000/105000
	assert.Equal(t, fixed.Ratio(fixed.FromInt(5_000), fixed.FromInt(105_000)), m.CurrentDrawdown(down))
}

func TestRequestOrderGates(t *testing.T) {
	m := newManager(t, fixed.FromInt(20_000), risk.Limits{MaxPositionSize: 1})
	quotes := map[uint32]market.Bbo{}

	_, err := m.RequestOrder(signal(1, event.SignalBuy, "4000.1", 1), quotes)
	assert.ErrorIs(t, err, risk.ErrInvalidTick)

	_, err = m.RequestOrder(signal(2, event.SignalBuy, "4000", 2), quotes)
	assert.ErrorIs(t, err, risk.ErrBuyingPower)

	o, err := m.RequestOrder(signal(3, event.SignalSell, "4000", 1), quotes)
	require.NoError(t, err)
	assert.Equal(t, event.StrategyOrder{Ts: 1, OrderID: 3, StrategyID: "s", InstrumentID: 1, Action: event.OrderAdd, Side: event.SideAsk, Price: fixed.FromInt(4000), Quantity: 1}, o)

	_, err = m.RequestOrder(signal(3, event.SignalSell, "4000", 1), quotes)
	assert.ErrorIs(t, err, risk.ErrDuplicateOrder)

	sig := signal(4, event.SignalBuy, "4000", 1)
	sig.InstrumentID = 99
	_, err = m.RequestOrder(sig, quotes)
	assert.ErrorIs(t, err, risk.ErrUnknownInstrument)
}

func TestPositionLimitGate(t *testing.T) {
	m := newManager(t, fixed.FromInt(1_000_000), risk.Limits{MaxPositionSize: 2})
	_, _ = m.ProcessFill(fill(1, event.SideBid, fixed.FromInt(4000), 2))
	_, err := m.RequestOrder(signal(5, event.SignalBuy, "4000", 1), nil)
	assert.ErrorIs(t, err, risk.ErrPositionLimit)
	_, err = m.RequestOrder(signal(6, event.SignalSell, "4000", 1), nil)
	assert.NoError(t, err)
}

func TestModifyAndCancelUseWorkingOrder(t *testing.T) {
	m := newManager(t, fixed.FromInt(100_000), risk.Limits{})
	_, err := m.RequestOrder(signal(7, event.SignalBuy, "4000", 1), nil)
	require.NoError(t, err)

	mod := signal(8, event.SignalModify, "3999.75", 2)
	mod.OrderID = 7
	o, err := m.RequestOrder(mod, nil)
	require.NoError(t, err)
	assert.Equal(t, event.OrderModify, o.Action)
	assert.Equal(t, event.SideBid, o.Side)
	assert.Equal(t, uint64(7), o.OrderID)

	cancel := signal(9, event.SignalCancel, "0", 0)
	cancel.OrderID = 7
	o, err = m.RequestOrder(cancel, nil)
	require.NoError(t, err)
	assert.Equal(t, event.OrderCancel, o.Action)
	assert.Equal(t, uint32(2), o.Quantity)
	assert.Empty(t, m.WorkingOrders())

	_, err = m.RequestOrder(cancel, nil)
	assert.ErrorIs(t, err, risk.ErrUnknownOrder)
}

func TestFillClosesWorkingOrder(t *testing.T) {
	m := newManager(t, fixed.FromInt(100_000), risk.Limits{})
	_, err := m.RequestOrder(signal(7, event.SignalBuy, "4000", 2), nil)
	require.NoError(t, err)
	require.Len(t, m.WorkingOrders(), 1)
	_, _ = m.ProcessFill(fill(7, event.SideBid, fixed.FromInt(4000), 2))
	assert.Empty(t, m.WorkingOrders())
}

func TestCommissionDebitsCash(t *testing.T) {
	m := newManager(t, fixed.FromInt(100_000), risk.Limits{})
	f := fill(1, event.SideBid, fixed.FromInt(4000), 2)
	f.Commission = fixed.MustParse("4.5")
	_, err := m.ProcessFill(f)
	require.NoError(t, err)
	assert.Equal(t, fixed.MustParse("99995.5"), m.Cash())
	assert.Equal(t, fixed.MustParse("4.5"), m.Commissions())
}

func TestBuyingPowerSubtractsMargin(t *testing.T) {
	m := newManager(t, fixed.FromInt(100_000), risk.Limits{})
	_, _ = m.ProcessFill(fill(1, event.SideBid, fixed.FromInt(4000), 2))
	assert.Equal(t, fixed.FromInt(33_000), m.UsedMargin())
	assert.Equal(t, fixed.FromInt(67_000), m.BuyingPower(nil))
}

func TestProcessFillErrors(t *testing.T) {
	m := newManager(t, fixed.FromInt(100_000), risk.Limits{})
	f := fill(1, event.SideBid, fixed.FromInt(4000), 1)
	f.InstrumentID = 5
	_, err := m.ProcessFill(f)
	assert.ErrorIs(t, err, ErrUnknownInstrument)

	f = fill(1, event.SideNone, fixed.FromInt(4000), 1)
	_, err = m.ProcessFill(f)
	assert.ErrorIs(t, err, ErrInvalidFill)
}

func TestNewRejectsBadInstrument(t *testing.T) {
	_, err := New(Config{Instruments: []inventory.Instrument{{ID: 1, Type: inventory.Future}}}, nil)
	assert.Error(t, err)
	_, err = New(Config{Instruments: []inventory.Instrument{es, es}}, nil)
	assert.Error(t, err)
}
