package order

import "fmt"

type transition struct {
	from Status
	to   Status
}

// 合法的状态转换；FILLED/CANCELED 为终态。
var legalTransitions = map[transition]bool{
	{StatusNew, StatusPartial}:      true,
	{StatusNew, StatusFilled}:       true,
	{StatusNew, StatusCanceled}:     true,
	{StatusPartial, StatusPartial}:  true, // 多次部分成交
	{StatusPartial, StatusFilled}:   true,
	{StatusPartial, StatusCanceled}: true,
}

// ValidateTransition 验证状态转换是否合法
func ValidateTransition(from, to Status) error {
	if from == to && !IsFinalState(from) {
		return nil
	}
	if !legalTransitions[transition{from, to}] {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	return nil
}

// IsFinalState 判断是否是终态
func IsFinalState(s Status) bool {
	return s == StatusFilled || s == StatusCanceled
}
