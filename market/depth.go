package market

import (
	"mbo-backtester/event"
	"mbo-backtester/fixed"
)

// Level 是某一价位的聚合视图；空档位的 Price 为 NoPrice。
type Level struct {
	Price fixed.OptPrice
	Size  uint64
	Count uint32
}

// Empty 判断档位是否存在。
func (l Level) Empty() bool { return !l.Price.Valid() }

// BidAskPair 是快照中第 k 档的买卖对。
type BidAskPair struct {
	BidPx fixed.OptPrice
	AskPx fixed.OptPrice
	BidSz uint64
	AskSz uint64
	BidCt uint32
	AskCt uint32
}

// Order 是簿中的一笔挂单。
type Order struct {
	ID       uint64
	Side     event.Side
	Price    int64
	Size     uint32
	TsEvent  int64
	Sequence uint32
}

// levelQueue 按到达顺序保存同一价位的挂单，并缓存总量与笔数。
type levelQueue struct {
	price  int64
	orders []Order
	size   uint64
}

func (q *levelQueue) view() Level {
	return Level{Price: fixed.Price(q.price), Size: q.size, Count: uint32(len(q.orders))}
}

func (q *levelQueue) push(o Order) {
	q.orders = append(q.orders, o)
	q.size += uint64(o.Size)
}

func (q *levelQueue) find(id uint64) int {
	for i := range q.orders {
		if q.orders[i].ID == id {
			return i
		}
	}
	return -1
}

func (q *levelQueue) removeAt(i int) Order {
	o := q.orders[i]
	copy(q.orders[i:], q.orders[i+1:])
	q.orders[len(q.orders)-1] = Order{}
	q.orders = q.orders[:len(q.orders)-1]
	q.size -= uint64(o.Size)
	return o
}

// resize 原位修改数量，保留队列位置。
func (q *levelQueue) resize(i int, size uint32) {
	q.size = q.size - uint64(q.orders[i].Size) + uint64(size)
	q.orders[i].Size = size
}

// ahead 返回排在 i 之前的累计数量。
func (q *levelQueue) ahead(i int) uint64 {
	var n uint64
	for _, o := range q.orders[:i] {
		n += uint64(o.Size)
	}
	return n
}
