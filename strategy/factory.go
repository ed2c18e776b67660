package strategy

import (
	"fmt"
	"strings"
)

// StrategyType 是配置中的策略名。
type StrategyType string

const (
	MidCrossStrategy  StrategyType = "mid_cross"
	JoinBboStrategy   StrategyType = "join_bbo"
	ImbalanceStrategy StrategyType = "book_imbalance"
)

// Create 根据配置创建策略实例。
//
//	mid_cross: params = [short, long, qty]
//	join_bbo:  params = [qty, max_position]
//	book_imbalance: params = [levels, threshold_bps, qty]
func Create(cfg Config) (Strategy, error) {
	id := cfg.ID
	if id == "" {
		id = cfg.Name
	}
	p := cfg.Params
	switch StrategyType(strings.ToLower(cfg.Name)) {
	case MidCrossStrategy:
		if len(p) < 2 {
			return nil, fmt.Errorf("mid_cross %s: params need [short, long, qty]", id)
		}
		qty := int64(1)
		if len(p) > 2 {
			qty = p[2]
		}
		return NewMidCross(id, cfg.InstrumentID, int(p[0]), int(p[1]), qty, cfg.MaxLobLvl)
	case JoinBboStrategy:
		if len(p) < 1 || p[0] <= 0 || p[0] > int64(^uint32(0)) {
			return nil, fmt.Errorf("join_bbo %s: params need [qty, max_position]", id)
		}
		var maxPos int64
		if len(p) > 1 {
			maxPos = p[1]
		}
		return NewJoinBbo(id, cfg.InstrumentID, uint32(p[0]), maxPos)
	case ImbalanceStrategy:
		if len(p) < 2 {
			return nil, fmt.Errorf("book_imbalance %s: params need [levels, threshold_bps, qty]", id)
		}
		qty := int64(1)
		if len(p) > 2 {
			qty = p[2]
		}
		return NewBookImbalance(id, cfg.InstrumentID, int(p[0]), p[1], qty)
	}
	return nil, fmt.Errorf("unknown strategy type: %s", cfg.Name)
}
