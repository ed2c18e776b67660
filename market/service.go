package market

import (
	"fmt"

	"go.uber.org/zap"

	"mbo-backtester/event"
)

// State 把行情记录分发到各合约状态。
// 声明过的合约通过 index 定位到 arena 下标；未声明的合约在首次出现时放入 fallback 并告警一次。
// arena 只存指针，扩容不会让已返回的 *InstrumentState 失效。
type State struct {
	arena    []*InstrumentState
	index    map[uint32]int
	fallback map[uint32]*InstrumentState

	implicitAdds uint64
	log          *zap.Logger
}

func NewState(log *zap.Logger) *State {
	if log == nil {
		log = zap.NewNop()
	}
	return &State{
		index:    make(map[uint32]int),
		fallback: make(map[uint32]*InstrumentState),
		log:      log,
	}
}

// Initialize 为已知合约预分配状态，重复 id 忽略；已在 fallback 中的合约连同簿一起迁入 arena。
func (s *State) Initialize(ids []uint32) {
	for _, id := range ids {
		if _, ok := s.index[id]; ok {
			continue
		}
		inst, ok := s.fallback[id]
		if ok {
			delete(s.fallback, id)
		} else {
			inst = new(InstrumentState)
			*inst = newInstrumentState(id, s.log)
		}
		s.index[id] = len(s.arena)
		s.arena = append(s.arena, inst)
	}
}

// OnMarketEvent 路由一条记录。簿报错时带上合约信息返回，调用方应中止回测。
func (s *State) OnMarketEvent(d event.MarketDelta) error {
	inst := s.lookup(d.InstrumentID)
	if inst == nil {
		s.log.Warn("market data for undeclared instrument", zap.Uint32("instrument_id", d.InstrumentID))
		inst = new(InstrumentState)
		*inst = newInstrumentState(d.InstrumentID, s.log)
		s.fallback[d.InstrumentID] = inst
	}
	var before uint64
	if d.Action == event.ActionModify {
		before = inst.ImplicitAdds()
	}
	if err := inst.OnMarketEvent(d); err != nil {
		return fmt.Errorf("instrument %d publisher %d seq %d order %d: %w",
			d.InstrumentID, d.PublisherID, d.Sequence, d.OrderID, err)
	}
	if d.Action == event.ActionModify {
		s.implicitAdds += inst.ImplicitAdds() - before
	}
	return nil
}

func (s *State) lookup(id uint32) *InstrumentState {
	if i, ok := s.index[id]; ok {
		return s.arena[i]
	}
	return s.fallback[id]
}

// Instrument 返回合约状态。
func (s *State) Instrument(id uint32) (*InstrumentState, bool) {
	inst := s.lookup(id)
	return inst, inst != nil
}

// Bbo 返回合约合并后的 BBO。
func (s *State) Bbo(id uint32) (Bbo, bool) {
	inst := s.lookup(id)
	if inst == nil {
		return Bbo{}, false
	}
	return inst.Bbo(), true
}

// Snapshot 返回某合约某发布方的前 depth 档；合约或发布方未知时返回 nil。
func (s *State) Snapshot(instrumentID uint32, publisherID uint16, depth int) []BidAskPair {
	inst := s.lookup(instrumentID)
	if inst == nil {
		return nil
	}
	return inst.Snapshot(publisherID, depth)
}

// AllBbo 返回所有已知合约的 BBO，供组合估值使用。
func (s *State) AllBbo() map[uint32]Bbo {
	out := make(map[uint32]Bbo, len(s.arena)+len(s.fallback))
	for _, inst := range s.arena {
		out[inst.InstrumentID] = inst.bbo
	}
	for id, inst := range s.fallback {
		out[id] = inst.bbo
	}
	return out
}

// ImplicitAdds 返回全局隐式 Add 次数。
func (s *State) ImplicitAdds() uint64 { return s.implicitAdds }

// InstrumentCount 返回已知合约数（含未声明）。
func (s *State) InstrumentCount() int { return len(s.arena) + len(s.fallback) }
