package market

import (
	"fmt"

	"github.com/tidwall/btree"
	"go.uber.org/zap"

	"mbo-backtester/event"
	"mbo-backtester/fixed"
)

type orderRef struct {
	side  event.Side
	price int64
}

// Book 是单个 (instrument, publisher) 的逐笔订单簿。
// 两侧价位按价格有序保存，另有 order_id -> (side, price) 索引，二者始终一致。
type Book struct {
	bids   btree.Map[int64, *levelQueue]
	asks   btree.Map[int64, *levelQueue]
	orders map[uint64]orderRef

	implicitAdds uint64
	strict       bool
	log          *zap.Logger
}

// NewBook 创建空簿。log 为 nil 时不输出日志。
// 以 -tags mbodebug 构建时每次变更后都做全量 Verify。
func NewBook(log *zap.Logger) *Book {
	if log == nil {
		log = zap.NewNop()
	}
	return &Book{orders: make(map[uint64]orderRef), strict: verifyEachApply, log: log}
}

// SetStrict 打开或关闭每次变更后的全量校验，开销为 O(簿内订单数)。
func (b *Book) SetStrict(on bool) { b.strict = on }

// Apply 把一条 MBO 记录应用到簿上。返回的错误都意味着数据与簿状态矛盾。
func (b *Book) Apply(d event.MarketDelta) error {
	if err := b.apply(d); err != nil {
		return err
	}
	if b.strict {
		if err := b.Verify(); err != nil {
			return fmt.Errorf("after %v order %d: %w", d.Action, d.OrderID, err)
		}
	}
	return nil
}

func (b *Book) apply(d event.MarketDelta) error {
	switch d.Action {
	case event.ActionAdd:
		return b.add(d)
	case event.ActionCancel:
		return b.cancel(d)
	case event.ActionModify:
		return b.modify(d)
	case event.ActionClear:
		b.Clear()
		return nil
	case event.ActionTrade, event.ActionFill, event.ActionNone:
		// 成交记录不改变挂单，随后的 Cancel/Modify 会体现。
		return nil
	}
	return fmt.Errorf("%w: %v", ErrUnknownAction, d.Action)
}

func (b *Book) side(s event.Side) *btree.Map[int64, *levelQueue] {
	switch s {
	case event.SideBid:
		return &b.bids
	case event.SideAsk:
		return &b.asks
	}
	return nil
}

func (b *Book) add(d event.MarketDelta) error {
	if _, dup := b.orders[d.OrderID]; dup {
		return fmt.Errorf("%w: %d", ErrDuplicateOrder, d.OrderID)
	}
	tree := b.side(d.Side)
	if tree == nil {
		return fmt.Errorf("%w: add order %d", ErrInvalidSide, d.OrderID)
	}
	price, ok := d.Price.Get()
	if !ok {
		return fmt.Errorf("%w: add order %d", ErrInvalidPrice, d.OrderID)
	}
	insert(tree, Order{
		ID:       d.OrderID,
		Side:     d.Side,
		Price:    price,
		Size:     d.Size,
		TsEvent:  d.TsEvent,
		Sequence: d.Sequence,
	})
	b.orders[d.OrderID] = orderRef{side: d.Side, price: price}
	return nil
}

func (b *Book) cancel(d event.MarketDelta) error {
	tree := b.side(d.Side)
	if tree == nil {
		return fmt.Errorf("%w: cancel order %d", ErrInvalidSide, d.OrderID)
	}
	price, ok := d.Price.Get()
	if !ok {
		return fmt.Errorf("%w: cancel order %d", ErrInvalidPrice, d.OrderID)
	}
	lq, ok := tree.Get(price)
	if !ok {
		return fmt.Errorf("%w: %s %s (order %d)", ErrUnknownLevel, d.Side, fixed.Format(price), d.OrderID)
	}
	i := lq.find(d.OrderID)
	if i < 0 {
		return fmt.Errorf("%w: %d at %s", ErrUnknownOrder, d.OrderID, fixed.Format(price))
	}
	if ref, ok := b.orders[d.OrderID]; !ok || ref.side != d.Side || ref.price != price {
		return fmt.Errorf("%w: order %d", ErrIndexMismatch, d.OrderID)
	}
	resting := lq.orders[i].Size
	switch {
	case d.Size > resting:
		return fmt.Errorf("%w: order %d resting %d cancel %d", ErrOverCancel, d.OrderID, resting, d.Size)
	case d.Size == resting:
		b.remove(tree, lq, i)
	default:
		lq.resize(i, resting-d.Size)
	}
	return nil
}

func (b *Book) modify(d event.MarketDelta) error {
	ref, ok := b.orders[d.OrderID]
	if !ok {
		b.implicitAdds++
		b.log.Warn("modify for unknown order, treating as add",
			zap.Uint64("order_id", d.OrderID),
			zap.Uint32("instrument_id", d.InstrumentID),
			zap.Uint32("sequence", d.Sequence))
		return b.add(d)
	}
	if d.Side != ref.side {
		return fmt.Errorf("%w: order %d %s -> %s", ErrSideChanged, d.OrderID, ref.side, d.Side)
	}
	price, ok := d.Price.Get()
	if !ok {
		return fmt.Errorf("%w: modify order %d", ErrInvalidPrice, d.OrderID)
	}
	tree := b.side(ref.side)
	lq, ok := tree.Get(ref.price)
	if !ok {
		return fmt.Errorf("%w: order %d level %s missing", ErrIndexMismatch, d.OrderID, fixed.Format(ref.price))
	}
	i := lq.find(d.OrderID)
	if i < 0 {
		return fmt.Errorf("%w: order %d not in level %s", ErrIndexMismatch, d.OrderID, fixed.Format(ref.price))
	}

	cur := lq.orders[i]
	if d.Size == 0 {
		b.remove(tree, lq, i)
		return nil
	}
	if price == ref.price && d.Size <= cur.Size {
		// 减量保留队列位置
		lq.resize(i, d.Size)
		return nil
	}
	// 改价或加量：失去优先级，排到新价位队尾
	lq.removeAt(i)
	if len(lq.orders) == 0 {
		tree.Delete(ref.price)
	}
	cur.Price = price
	cur.Size = d.Size
	cur.TsEvent = d.TsEvent
	cur.Sequence = d.Sequence
	insert(tree, cur)
	b.orders[d.OrderID] = orderRef{side: ref.side, price: price}
	return nil
}

func insert(tree *btree.Map[int64, *levelQueue], o Order) {
	lq, ok := tree.Get(o.Price)
	if !ok {
		lq = &levelQueue{price: o.Price}
		tree.Set(o.Price, lq)
	}
	lq.push(o)
}

func (b *Book) remove(tree *btree.Map[int64, *levelQueue], lq *levelQueue, i int) {
	o := lq.removeAt(i)
	delete(b.orders, o.ID)
	if len(lq.orders) == 0 {
		tree.Delete(lq.price)
	}
}

// Clear 清空两侧。
func (b *Book) Clear() {
	b.bids = btree.Map[int64, *levelQueue]{}
	b.asks = btree.Map[int64, *levelQueue]{}
	clear(b.orders)
}

// BestBid 返回第 k 好的买档（k 从 0 开始）；不存在时返回空 Level。
func (b *Book) BestBid(k int) Level {
	n := b.bids.Len()
	if k < 0 || k >= n {
		return Level{}
	}
	_, lq, _ := b.bids.GetAt(n - 1 - k)
	return lq.view()
}

// BestAsk 返回第 k 好的卖档。
func (b *Book) BestAsk(k int) Level {
	if k < 0 || k >= b.asks.Len() {
		return Level{}
	}
	_, lq, _ := b.asks.GetAt(k)
	return lq.view()
}

// Bbo 返回最优买卖档。
func (b *Book) Bbo() (bid, ask Level) {
	return b.BestBid(0), b.BestAsk(0)
}

// Snapshot 返回前 depth 档；不足的档位为空。
func (b *Book) Snapshot(depth int) []BidAskPair {
	if depth <= 0 {
		return nil
	}
	out := make([]BidAskPair, depth)
	i := 0
	b.bids.Reverse(func(_ int64, lq *levelQueue) bool {
		out[i].BidPx, out[i].BidSz, out[i].BidCt = fixed.Price(lq.price), lq.size, uint32(len(lq.orders))
		i++
		return i < depth
	})
	i = 0
	b.asks.Scan(func(_ int64, lq *levelQueue) bool {
		out[i].AskPx, out[i].AskSz, out[i].AskCt = fixed.Price(lq.price), lq.size, uint32(len(lq.orders))
		i++
		return i < depth
	})
	return out
}

// Level 返回指定价位的聚合。
func (b *Book) Level(side event.Side, price int64) (Level, bool) {
	tree := b.side(side)
	if tree == nil {
		return Level{}, false
	}
	lq, ok := tree.Get(price)
	if !ok {
		return Level{}, false
	}
	return lq.view(), true
}

// Order 按 id 查询挂单。
func (b *Book) Order(id uint64) (Order, bool) {
	lq, i, ok := b.locate(id)
	if !ok {
		return Order{}, false
	}
	return lq.orders[i], true
}

// QueuePosition 返回排在该订单之前的同价位累计数量。
func (b *Book) QueuePosition(id uint64) (uint64, bool) {
	lq, i, ok := b.locate(id)
	if !ok {
		return 0, false
	}
	return lq.ahead(i), true
}

func (b *Book) locate(id uint64) (*levelQueue, int, bool) {
	ref, ok := b.orders[id]
	if !ok {
		return nil, 0, false
	}
	lq, ok := b.side(ref.side).Get(ref.price)
	if !ok {
		return nil, 0, false
	}
	i := lq.find(id)
	return lq, i, i >= 0
}

// OrderCount 返回在簿订单数。
func (b *Book) OrderCount() int { return len(b.orders) }

// LevelCount 返回某一侧的价位数。
func (b *Book) LevelCount(side event.Side) int {
	tree := b.side(side)
	if tree == nil {
		return 0
	}
	return tree.Len()
}

// ImplicitAdds 返回把未知订单的 Modify 当作 Add 处理的次数。
func (b *Book) ImplicitAdds() uint64 { return b.implicitAdds }

// Verify 全量检查索引、价位缓存与非空约束，供测试与诊断使用。
func (b *Book) Verify() error {
	seen := 0
	var err error
	check := func(side event.Side) func(int64, *levelQueue) bool {
		return func(price int64, lq *levelQueue) bool {
			if len(lq.orders) == 0 {
				err = fmt.Errorf("%w: empty level %s %s", ErrIndexMismatch, side, fixed.Format(price))
				return false
			}
			var total uint64
			for _, o := range lq.orders {
				total += uint64(o.Size)
				ref, ok := b.orders[o.ID]
				if !ok || ref.side != side || ref.price != price {
					err = fmt.Errorf("%w: order %d", ErrIndexMismatch, o.ID)
					return false
				}
			}
			if total != lq.size {
				err = fmt.Errorf("%w: level %s size cache %d != %d", ErrIndexMismatch, fixed.Format(price), lq.size, total)
				return false
			}
			seen += len(lq.orders)
			return true
		}
	}
	b.bids.Scan(check(event.SideBid))
	if err != nil {
		return err
	}
	b.asks.Scan(check(event.SideAsk))
	if err != nil {
		return err
	}
	if seen != len(b.orders) {
		return fmt.Errorf("%w: index has %d orders, levels hold %d", ErrIndexMismatch, len(b.orders), seen)
	}
	return nil
}
