// Package portfolio 维护现金、仓位、已实现盈亏与在途订单，并在信号变成订单前执行风控。
package portfolio

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"mbo-backtester/event"
	"mbo-backtester/fixed"
	"mbo-backtester/inventory"
	"mbo-backtester/market"
	"mbo-backtester/order"
	"mbo-backtester/risk"
)

var (
	ErrUnknownInstrument = errors.New("fill for instrument that is not traded")
	ErrInvalidFill       = errors.New("invalid fill")
)

// Config 是组合初始化参数，金额均为定点数。
type Config struct {
	InitialCash int64
	Instruments []inventory.Instrument
	Limits      risk.Limits
}

// Manager 是组合与风控的唯一持有者，单线程使用。
type Manager struct {
	initialCash int64
	cash        int64
	realized    int64
	commissions int64
	maxEquity   int64

	instruments map[uint32]inventory.Instrument
	ledger      *inventory.Ledger
	working     *order.Book
	guards      risk.Guard
	history     []TradeRecord

	log *zap.Logger
}

// New 创建组合。合约参数非法时返回错误。
func New(cfg Config, log *zap.Logger) (*Manager, error) {
	if log == nil {
		log = zap.NewNop()
	}
	insts := make(map[uint32]inventory.Instrument, len(cfg.Instruments))
	for _, inst := range cfg.Instruments {
		if err := inst.Validate(); err != nil {
			return nil, err
		}
		if _, dup := insts[inst.ID]; dup {
			return nil, fmt.Errorf("instrument %d declared twice", inst.ID)
		}
		insts[inst.ID] = inst
	}
	return &Manager{
		initialCash: cfg.InitialCash,
		cash:        cfg.InitialCash,
		maxEquity:   cfg.InitialCash,
		instruments: insts,
		ledger:      inventory.NewLedger(),
		working:     order.NewBook(),
		guards:      risk.BuildGuards(cfg.Limits),
		log:         log,
	}, nil
}

// SetGuards 替换下单前检查链。
func (m *Manager) SetGuards(g risk.Guard) { m.guards = g }

// RequestOrder 把策略信号转换为订单。任何错误都是 *risk.Rejection：信号被丢弃，回测继续。
func (m *Manager) RequestOrder(sig event.StrategySignal, quotes map[uint32]market.Bbo) (event.StrategyOrder, error) {
	switch sig.Signal {
	case event.SignalBuy, event.SignalSell:
		return m.requestNew(sig, quotes)
	case event.SignalModify:
		return m.requestModify(sig)
	case event.SignalCancel:
		return m.requestCancel(sig)
	}
	return event.StrategyOrder{}, risk.Reject(risk.ErrUnsupportedRequest, "signal kind %v", sig.Signal)
}

func (m *Manager) requestNew(sig event.StrategySignal, quotes map[uint32]market.Bbo) (event.StrategyOrder, error) {
	inst, ok := m.instruments[sig.InstrumentID]
	if !ok {
		return event.StrategyOrder{}, risk.Reject(risk.ErrUnknownInstrument, "instrument %d", sig.InstrumentID)
	}
	side := sig.Side()
	signed := int64(sig.Quantity)
	if side == event.SideAsk {
		signed = -signed
	}
	req := risk.Request{Signal: sig, Instrument: inst, SignedQty: signed, Quotes: quotes}
	if err := m.guards.PreOrder(req, m); err != nil {
		var rej *risk.Rejection
		if !errors.As(err, &rej) {
			rej = &risk.Rejection{Reason: err}
		}
		return event.StrategyOrder{}, rej
	}

	o := event.StrategyOrder{
		Ts:           sig.Ts,
		OrderID:      sig.SignalID,
		StrategyID:   sig.StrategyID,
		InstrumentID: sig.InstrumentID,
		Action:       event.OrderAdd,
		Side:         side,
		Price:        sig.Price,
		Quantity:     sig.Quantity,
	}
	if err := m.working.Add(order.Order{
		ID:           o.OrderID,
		StrategyID:   o.StrategyID,
		InstrumentID: o.InstrumentID,
		Side:         o.Side,
		Price:        o.Price,
		Quantity:     o.Quantity,
		CreatedTs:    o.Ts,
	}); err != nil {
		return event.StrategyOrder{}, risk.Reject(risk.ErrDuplicateOrder, "order %d", o.OrderID)
	}
	return o, nil
}

func (m *Manager) requestModify(sig event.StrategySignal) (event.StrategyOrder, error) {
	wk, ok := m.working.Get(sig.OrderID)
	if !ok {
		return event.StrategyOrder{}, risk.Reject(risk.ErrUnknownOrder, "modify %d", sig.OrderID)
	}
	inst := m.instruments[wk.InstrumentID]
	req := risk.Request{Signal: sig, Instrument: inst, Quotes: nil}
	if err := (risk.TickGuard{}).PreOrder(req, m); err != nil {
		return event.StrategyOrder{}, err
	}
	wk, err := m.working.Modify(sig.OrderID, sig.Price, sig.Quantity, sig.Ts)
	if err != nil {
		return event.StrategyOrder{}, risk.Reject(risk.ErrUnknownOrder, "modify %d", sig.OrderID)
	}
	return event.StrategyOrder{
		Ts:           sig.Ts,
		OrderID:      wk.ID,
		StrategyID:   wk.StrategyID,
		InstrumentID: wk.InstrumentID,
		Action:       event.OrderModify,
		Side:         wk.Side,
		Price:        sig.Price,
		Quantity:     sig.Quantity,
	}, nil
}

func (m *Manager) requestCancel(sig event.StrategySignal) (event.StrategyOrder, error) {
	wk, err := m.working.Cancel(sig.OrderID, sig.Ts)
	if err != nil {
		return event.StrategyOrder{}, risk.Reject(risk.ErrUnknownOrder, "cancel %d", sig.OrderID)
	}
	return event.StrategyOrder{
		Ts:           sig.Ts,
		OrderID:      wk.ID,
		StrategyID:   wk.StrategyID,
		InstrumentID: wk.InstrumentID,
		Action:       event.OrderCancel,
		Side:         wk.Side,
		Price:        wk.Price,
		Quantity:     wk.Remaining(),
	}, nil
}

// ProcessFill 记账：更新仓位、现金、已实现盈亏与在途订单，并追加成交记录。
// 返回的错误说明成交与组合状态矛盾，回测应中止。
func (m *Manager) ProcessFill(f event.Fill) (TradeRecord, error) {
	inst, ok := m.instruments[f.InstrumentID]
	if !ok {
		return TradeRecord{}, fmt.Errorf("%w: instrument %d order %d", ErrUnknownInstrument, f.InstrumentID, f.OrderID)
	}
	if f.Side != event.SideBid && f.Side != event.SideAsk {
		return TradeRecord{}, fmt.Errorf("%w: order %d has no side", ErrInvalidFill, f.OrderID)
	}
	if f.Quantity == 0 {
		return TradeRecord{}, fmt.Errorf("%w: order %d zero quantity", ErrInvalidFill, f.OrderID)
	}

	realized := m.ledger.Apply(inst, f.SignedQty(), f.Price, f.Ts)
	m.realized += realized
	m.cash += realized - f.Commission
	m.commissions += f.Commission
	if _, ok := m.working.ApplyFill(f.OrderID, f.Quantity, f.Ts); !ok {
		m.log.Debug("fill for order no longer working", zap.Uint64("order_id", f.OrderID))
	}

	pos := m.ledger.Position(f.InstrumentID)
	rec := TradeRecord{
		Ts:            f.Ts,
		StrategyID:    f.StrategyID,
		OrderID:       f.OrderID,
		InstrumentID:  f.InstrumentID,
		Side:          f.Side,
		Price:         f.Price,
		Quantity:      f.Quantity,
		Commission:    f.Commission,
		RealizedPnL:   realized,
		PositionAfter: pos.Quantity,
		AvgEntryAfter: pos.AvgEntryPrice,
	}
	m.history = append(m.history, rec)
	m.log.Debug("fill processed",
		zap.Uint64("order_id", f.OrderID),
		zap.Uint32("instrument_id", f.InstrumentID),
		zap.Stringer("side", f.Side),
		zap.String("price", fixed.Format(f.Price)),
		zap.Uint32("qty", f.Quantity),
		zap.String("realized", fixed.Format(realized)),
		zap.Int64("position", pos.Quantity))
	return rec, nil
}
