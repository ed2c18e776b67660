package feed

import (
	"io"

	"mbo-backtester/event"
)

// SliceSource 从内存切片产出记录，用于测试与合成数据。
type SliceSource struct {
	deltas []event.MarketDelta
	i      int
}

func NewSliceSource(deltas ...event.MarketDelta) *SliceSource {
	return &SliceSource{deltas: deltas}
}

func (s *SliceSource) Next() (event.MarketDelta, error) {
	if s.i >= len(s.deltas) {
		return event.MarketDelta{}, io.EOF
	}
	d := s.deltas[s.i]
	s.i++
	return d, nil
}
