package order

import (
	"errors"
	"fmt"
	"slices"
)

var (
	ErrDuplicateOrder    = errors.New("order already working")
	ErrUnknownOrder      = errors.New("order not working")
	ErrIllegalTransition = errors.New("illegal state transition")
)

// Book 记录在途订单，订单终结（全部成交或撤单）后移除。单线程使用。
type Book struct {
	orders map[uint64]*Order
}

func NewBook() *Book {
	return &Book{orders: make(map[uint64]*Order)}
}

// Add 登记新订单。
func (b *Book) Add(o Order) error {
	if _, ok := b.orders[o.ID]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateOrder, o.ID)
	}
	o.Status = StatusNew
	o.Filled = 0
	o.UpdatedTs = o.CreatedTs
	b.orders[o.ID] = &o
	return nil
}

func (b *Book) Get(id uint64) (Order, bool) {
	o, ok := b.orders[id]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// Modify 改价改量；qty 为新的剩余数量。
func (b *Book) Modify(id uint64, price int64, qty uint32, ts int64) (Order, error) {
	o, ok := b.orders[id]
	if !ok {
		return Order{}, fmt.Errorf("%w: %d", ErrUnknownOrder, id)
	}
	o.Price = price
	o.Quantity = o.Filled + qty
	o.UpdatedTs = ts
	return *o, nil
}

// Cancel 撤单并移除。
func (b *Book) Cancel(id uint64, ts int64) (Order, error) {
	o, ok := b.orders[id]
	if !ok {
		return Order{}, fmt.Errorf("%w: %d", ErrUnknownOrder, id)
	}
	if err := ValidateTransition(o.Status, StatusCanceled); err != nil {
		return *o, err
	}
	o.Status = StatusCanceled
	o.UpdatedTs = ts
	delete(b.orders, id)
	return *o, nil
}

// ApplyFill 记录成交；订单不在簿中时返回 false（例如撤单后才到达的成交）。
func (b *Book) ApplyFill(id uint64, qty uint32, ts int64) (Order, bool) {
	o, ok := b.orders[id]
	if !ok {
		return Order{}, false
	}
	o.Filled += qty
	next := StatusPartial
	if o.Filled >= o.Quantity {
		next = StatusFilled
	}
	if ValidateTransition(o.Status, next) == nil {
		o.Status = next
	}
	o.UpdatedTs = ts
	if IsFinalState(o.Status) {
		delete(b.orders, id)
	}
	return *o, true
}

// List 返回全部在途订单（拷贝，按 id 排序）。
func (b *Book) List() []Order {
	res := make([]Order, 0, len(b.orders))
	for _, o := range b.orders {
		res = append(res, *o)
	}
	slices.SortFunc(res, func(x, y Order) int {
		switch {
		case x.ID < y.ID:
			return -1
		case x.ID > y.ID:
			return 1
		}
		return 0
	})
	return res
}

func (b *Book) Len() int { return len(b.orders) }
