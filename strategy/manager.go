package strategy

import (
	"fmt"

	"go.uber.org/zap"

	"mbo-backtester/event"
	"mbo-backtester/market"
)

// Manager 把事件分发给所有策略，并为信号补齐 StrategyID/Ts/SignalID。
type Manager struct {
	strategies []Strategy
	byID       map[string]Strategy
	nextID     uint64
	depth      int
	log        *zap.Logger
}

func NewManager(log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{byID: make(map[string]Strategy), log: log}
}

// Add 注册策略，id 必须唯一。
func (m *Manager) Add(s Strategy) error {
	if _, dup := m.byID[s.ID()]; dup {
		return fmt.Errorf("strategy %q registered twice", s.ID())
	}
	if a, ok := s.(IDAware); ok {
		a.SetIDSource(m.next)
	}
	m.strategies = append(m.strategies, s)
	m.byID[s.ID()] = s
	m.depth = max(m.depth, s.Depth())
	return nil
}

func (m *Manager) next() uint64 {
	m.nextID++
	return m.nextID
}

// Len 返回策略数量。
func (m *Manager) Len() int { return len(m.strategies) }

// Depth 返回所有策略所需的最大档数。
func (m *Manager) Depth() int { return m.depth }

// OnMarketEvent 按注册顺序调用策略并合并信号。
func (m *Manager) OnMarketEvent(d event.MarketDelta, snap []market.BidAskPair) []event.StrategySignal {
	var out []event.StrategySignal
	for _, s := range m.strategies {
		view := snap
		if n := s.Depth(); n < len(view) {
			view = view[:n]
		}
		for _, sig := range s.OnMarketEvent(d, view) {
			sig.StrategyID = s.ID()
			if sig.Ts == 0 {
				sig.Ts = d.TsEvent
			}
			if sig.SignalID == 0 {
				sig.SignalID = m.next()
			}
			out = append(out, sig)
		}
	}
	return out
}

// OnFill 只通知下单的策略。
func (m *Manager) OnFill(f event.Fill) {
	s, ok := m.byID[f.StrategyID]
	if !ok {
		m.log.Warn("fill for unknown strategy", zap.String("strategy_id", f.StrategyID), zap.Uint64("order_id", f.OrderID))
		return
	}
	s.OnFill(f)
}

// OnReject 通知发出信号的策略（若其关心）。
func (m *Manager) OnReject(sig event.StrategySignal, err error) {
	if r, ok := m.byID[sig.StrategyID].(RejectionAware); ok {
		r.OnReject(sig, err)
	}
}

// OnEndOfDay 通知全部策略。
func (m *Manager) OnEndOfDay(ts int64) {
	for _, s := range m.strategies {
		s.OnEndOfDay(ts)
	}
}
