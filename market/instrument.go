package market

import (
	"slices"

	"go.uber.org/zap"

	"mbo-backtester/event"
)

// InstrumentState 持有一个合约在各发布方的订单簿以及合并后的 BBO。
type InstrumentState struct {
	InstrumentID uint32

	books      map[uint16]*Book
	publishers []uint16 // 有序，保证合并结果确定
	bbo        Bbo
	log        *zap.Logger
}

func newInstrumentState(id uint32, log *zap.Logger) InstrumentState {
	return InstrumentState{
		InstrumentID: id,
		books:        make(map[uint16]*Book),
		log:          log.With(zap.Uint32("instrument_id", id)),
	}
}

// OnMarketEvent 把记录交给对应发布方的簿（首次出现时创建），然后重算 BBO。
func (s *InstrumentState) OnMarketEvent(d event.MarketDelta) error {
	b, ok := s.books[d.PublisherID]
	if !ok {
		b = NewBook(s.log.With(zap.Uint16("publisher_id", d.PublisherID)))
		s.books[d.PublisherID] = b
		i, _ := slices.BinarySearch(s.publishers, d.PublisherID)
		s.publishers = slices.Insert(s.publishers, i, d.PublisherID)
	}
	if err := b.Apply(d); err != nil {
		return err
	}
	s.recompute(d.TsEvent)
	return nil
}

func (s *InstrumentState) recompute(ts int64) {
	var out Bbo
	for _, pub := range s.publishers {
		bid, ask := s.books[pub].Bbo()
		if px, ok := bid.Price.Get(); ok {
			best, has := out.Bid.Get()
			switch {
			case !has || px > best:
				out.Bid, out.BidSize = bid.Price, bid.Size
			case px == best:
				out.BidSize += bid.Size
			}
		}
		if px, ok := ask.Price.Get(); ok {
			best, has := out.Ask.Get()
			switch {
			case !has || px < best:
				out.Ask, out.AskSize = ask.Price, ask.Size
			case px == best:
				out.AskSize += ask.Size
			}
		}
	}
	out.Ts = ts
	s.bbo = out
}

// Bbo 返回合并后的最优价。
func (s *InstrumentState) Bbo() Bbo { return s.bbo }

// Book 返回某发布方的簿。
func (s *InstrumentState) Book(publisherID uint16) (*Book, bool) {
	b, ok := s.books[publisherID]
	return b, ok
}

// Publishers 返回已出现的发布方（升序）。
func (s *InstrumentState) Publishers() []uint16 {
	return slices.Clone(s.publishers)
}

// Snapshot 返回某发布方簿的前 depth 档；未知发布方返回 nil。
func (s *InstrumentState) Snapshot(publisherID uint16, depth int) []BidAskPair {
	b, ok := s.books[publisherID]
	if !ok {
		return nil
	}
	return b.Snapshot(depth)
}

// ImplicitAdds 汇总各簿的隐式 Add 次数。
func (s *InstrumentState) ImplicitAdds() uint64 {
	var n uint64
	for _, b := range s.books {
		n += b.ImplicitAdds()
	}
	return n
}
