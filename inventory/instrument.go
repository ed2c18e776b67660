package inventory

import (
	"fmt"
	"strings"

	"mbo-backtester/fixed"
)

// InstrumentType 决定盈亏与保证金的计算方式。
type InstrumentType uint8

const (
	Future InstrumentType = iota
	Stock
	Option
)

func (t InstrumentType) String() string {
	switch t {
	case Future:
		return "FUT"
	case Stock:
		return "STOCK"
	case Option:
		return "OPTION"
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// ParseInstrumentType 接受 FUT/FUTURE、STOCK/EQUITY、OPTION。
func ParseInstrumentType(s string) (InstrumentType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "FUT", "FUTURE":
		return Future, nil
	case "STOCK", "EQUITY", "STK":
		return Stock, nil
	case "OPTION", "OPT":
		return Option, nil
	}
	return 0, fmt.Errorf("unknown instrument type %q", s)
}

// Instrument 是可交易合约的静态参数，价格类字段均为定点数。
type Instrument struct {
	ID                uint32
	Type              InstrumentType
	TickSize          int64
	TickValue         int64
	MarginRequirement int64
}

// usesTicks: 期货按 tick 价值计价，其余按价差直接计价。
func (i Instrument) usesTicks() bool {
	return i.Type == Future && i.TickSize > 0
}

// ValueOf 把价差换算为单手盈亏（定点金额）。
func (i Instrument) ValueOf(diff int64) int64 {
	if i.usesTicks() {
		return diff / i.TickSize * i.TickValue
	}
	return diff
}

// ClosePnL 计算平仓 qty 手的已实现盈亏。long 表示被平的是多头。
func (i Instrument) ClosePnL(entry, exit int64, qty int64, long bool) int64 {
	diff := exit - entry
	if !long {
		diff = -diff
	}
	return fixed.Mul(i.ValueOf(diff), qty)
}

// Margin 返回持有 qty 手（绝对值）占用的保证金。
// 期货按每手保证金，股票按 qty*price 全额。溢出时饱和，不会绕回为负。
func (i Instrument) Margin(qty int64, price int64) int64 {
	if qty < 0 {
		qty = -qty
	}
	if i.Type == Future {
		return fixed.Mul(qty, i.MarginRequirement)
	}
	return fixed.Mul(qty, price)
}

// OnTick 判断价格是否落在最小变动价位上。
func (i Instrument) OnTick(price int64) bool {
	if i.TickSize <= 0 {
		return true
	}
	return price%i.TickSize == 0
}

// Validate 检查参数是否可用。
func (i Instrument) Validate() error {
	if i.TickSize <= 0 {
		return fmt.Errorf("instrument %d tick_size must be > 0", i.ID)
	}
	if i.Type == Future {
		if i.TickValue <= 0 {
			return fmt.Errorf("instrument %d tick_value must be > 0", i.ID)
		}
		if i.MarginRequirement < 0 {
			return fmt.Errorf("instrument %d margin_requirement must be >= 0", i.ID)
		}
	}
	return nil
}
