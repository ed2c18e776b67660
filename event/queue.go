package event

// Less 定义全局事件顺序：时间戳、类型优先级，最后是各变体的确定性次级键。
func Less(a, b Event) bool {
	if ta, tb := a.Timestamp(), b.Timestamp(); ta != tb {
		return ta < tb
	}
	if ka, kb := a.Kind(), b.Kind(); ka != kb {
		return ka < kb
	}
	a1, a2, a3 := a.tieKey()
	b1, b2, b3 := b.tieKey()
	if a1 != b1 {
		return a1 < b1
	}
	if a2 != b2 {
		return a2 < b2
	}
	return a3 < b3
}

// Queue 是按 Less 排序的最小堆，单线程使用。
type Queue struct {
	items []Event
}

// NewQueue 预分配容量。
func NewQueue(capacity int) *Queue {
	return &Queue{items: make([]Event, 0, capacity)}
}

func (q *Queue) Len() int { return len(q.items) }

func (q *Queue) Empty() bool { return len(q.items) == 0 }

// Push 入队，O(log n)。
func (q *Queue) Push(e Event) {
	q.items = append(q.items, e)
	q.up(len(q.items) - 1)
}

// Peek 返回最小事件但不出队。
func (q *Queue) Peek() (Event, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	return q.items[0], true
}

// Pop 出队最小事件。
func (q *Queue) Pop() (Event, bool) {
	n := len(q.items)
	if n == 0 {
		return nil, false
	}
	top := q.items[0]
	last := n - 1
	q.items[0] = q.items[last]
	q.items[last] = nil
	q.items = q.items[:last]
	if last > 0 {
		q.down(0)
	}
	return top, true
}

func (q *Queue) up(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !Less(q.items[i], q.items[parent]) {
			return
		}
		q.items[i], q.items[parent] = q.items[parent], q.items[i]
		i = parent
	}
}

func (q *Queue) down(i int) {
	n := len(q.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		m := l
		if r := l + 1; r < n && Less(q.items[r], q.items[l]) {
			m = r
		}
		if !Less(q.items[m], q.items[i]) {
			return
		}
		q.items[i], q.items[m] = q.items[m], q.items[i]
		i = m
	}
}
