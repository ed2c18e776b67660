package backtest

import (
	"errors"
	"fmt"
	"io"
	"math"

	"go.uber.org/zap"

	"mbo-backtester/event"
	"mbo-backtester/feed"
)

var (
	ErrNonMonotonic   = errors.New("source timestamps went backwards")
	ErrTooManySources = errors.New("too many sources")
)

type sourceEntry struct {
	name   string
	src    feed.Source
	lastTs int64
	read   uint64
	done   bool
}

// sources 为每个数据源分配 SourceID，并保证每个源在队列中最多只有一条待处理记录。
type sources struct {
	entries []*sourceEntry
	log     *zap.Logger
}

func (s *sources) add(name string, src feed.Source) (uint16, error) {
	if len(s.entries) >= math.MaxUint16 {
		return 0, ErrTooManySources
	}
	id := uint16(len(s.entries))
	s.entries = append(s.entries, &sourceEntry{name: name, src: src, lastTs: math.MinInt64})
	s.log.Info("source registered", zap.String("source", name), zap.Uint16("source_id", id))
	return id, nil
}

// next 读取源的下一条记录。源耗尽时返回 ok=false 且 err=nil。
func (s *sources) next(id uint16) (event.MarketDelta, bool, error) {
	if int(id) >= len(s.entries) {
		return event.MarketDelta{}, false, fmt.Errorf("unknown source id %d", id)
	}
	e := s.entries[id]
	if e.done {
		return event.MarketDelta{}, false, nil
	}
	d, err := e.src.Next()
	if errors.Is(err, io.EOF) {
		e.done = true
		s.log.Info("source exhausted", zap.String("source", e.name), zap.Uint64("records", e.read))
		s.closeEntry(e)
		return event.MarketDelta{}, false, nil
	}
	if err != nil {
		return event.MarketDelta{}, false, fmt.Errorf("source %s: %w", e.name, err)
	}
	if d.TsEvent < e.lastTs {
		return event.MarketDelta{}, false, fmt.Errorf("%w: source %s ts %d after %d", ErrNonMonotonic, e.name, d.TsEvent, e.lastTs)
	}
	e.lastTs = d.TsEvent
	e.read++
	d.SourceID = id
	return d, true, nil
}

func (s *sources) closeEntry(e *sourceEntry) {
	c, ok := e.src.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		s.log.Warn("close source failed", zap.String("source", e.name), zap.Error(err))
	}
}

// closeAll 关闭尚未耗尽的源，用于提前结束或出错。
func (s *sources) closeAll() {
	for _, e := range s.entries {
		if !e.done {
			e.done = true
			s.closeEntry(e)
		}
	}
}

func (s *sources) len() int { return len(s.entries) }
