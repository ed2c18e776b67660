package risk

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTick        = errors.New("price not on tick grid")
	ErrInvalidQuantity    = errors.New("quantity must be > 0")
	ErrDrawdownExceeded   = errors.New("max drawdown exceeded")
	ErrBuyingPower        = errors.New("insufficient buying power")
	ErrPositionLimit      = errors.New("position limit exceeded")
	ErrRiskPerTrade       = errors.New("risk per trade exceeded")
	ErrPortfolioDelta     = errors.New("portfolio delta limit exceeded")
	ErrDeltaPerTrade      = errors.New("delta per trade exceeded")
	ErrUnknownInstrument  = errors.New("instrument not tradable")
	ErrUnknownOrder       = errors.New("no working order with that id")
	ErrDuplicateOrder     = errors.New("order id already working")
	ErrUnsupportedRequest = errors.New("unsupported signal")
)

var reasonCodes = map[error]string{
	ErrInvalidTick:        "invalid_tick",
	ErrInvalidQuantity:    "invalid_quantity",
	ErrDrawdownExceeded:   "max_drawdown",
	ErrBuyingPower:        "buying_power",
	ErrPositionLimit:      "position_limit",
	ErrRiskPerTrade:       "risk_per_trade",
	ErrPortfolioDelta:     "portfolio_delta",
	ErrDeltaPerTrade:      "delta_per_trade",
	ErrUnknownInstrument:  "unknown_instrument",
	ErrUnknownOrder:       "unknown_order",
	ErrDuplicateOrder:     "duplicate_order",
	ErrUnsupportedRequest: "unsupported",
}

// Rejection 是风控拒单：可恢复，信号被丢弃，回测继续。
type Rejection struct {
	Reason error
	Detail string
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return r.Reason.Error()
	}
	return r.Reason.Error() + ": " + r.Detail
}

func (r *Rejection) Unwrap() error { return r.Reason }

// Code 返回用于统计与指标标签的短名。
func (r *Rejection) Code() string {
	if c, ok := reasonCodes[r.Reason]; ok {
		return c
	}
	return "other"
}

// Reject 构造拒单错误。
func Reject(reason error, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// CodeOf 从任意错误中提取拒单原因短名。
func CodeOf(err error) string {
	var r *Rejection
	if errors.As(err, &r) {
		return r.Code()
	}
	return "other"
}
