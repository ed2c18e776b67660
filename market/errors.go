package market

import "errors"

var (
	ErrDuplicateOrder = errors.New("duplicate order id")
	ErrUnknownLevel   = errors.New("unknown price level")
	ErrUnknownOrder   = errors.New("unknown order id")
	ErrOverCancel     = errors.New("cancel size exceeds resting size")
	ErrSideChanged    = errors.New("modify changes order side")
	ErrInvalidSide    = errors.New("side must be bid or ask")
	ErrInvalidPrice   = errors.New("record carries no price")
	ErrUnknownAction  = errors.New("unknown action")
	// ErrIndexMismatch 表示订单索引与价位队列不一致，簿已损坏。
	ErrIndexMismatch = errors.New("order index out of sync with levels")
)
