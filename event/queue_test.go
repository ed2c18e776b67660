package event

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueOrdersByTimestampThenKind(t *testing.T) {
	q := NewQueue(8)
	q.Push(Control{Ts: 100, Type: ControlEndOfBacktest})
	q.Push(Fill{Ts: 100, OrderID: 1})
	q.Push(StrategyOrder{Ts: 100, OrderID: 1})
	q.Push(StrategySignal{Ts: 100, SignalID: 1})
	q.Push(MarketDelta{TsEvent: 100})
	q.Push(MarketDelta{TsEvent: 99})

	want := []Kind{KindMarket, KindMarket, KindSignal, KindOrder, KindFill, KindControl}
	var got []Kind
	var ts []int64
	for !q.Empty() {
		e, ok := q.Pop()
		require.True(t, ok)
		got = append(got, e.Kind())
		ts = append(ts, e.Timestamp())
	}
	assert.Equal(t, want, got)
	assert.Equal(t, int64(99), ts[0])
}

func TestQueueMarketTieBreak(t *testing.T) {
	q := NewQueue(0)
	q.Push(MarketDelta{TsEvent: 5, SourceID: 2, Sequence: 1})
	q.Push(MarketDelta{TsEvent: 5, SourceID: 1, Sequence: 9})
	q.Push(MarketDelta{TsEvent: 5, SourceID: 1, Sequence: 3, OrderID: 2})
	q.Push(MarketDelta{TsEvent: 5, SourceID: 1, Sequence: 3, OrderID: 1})

	var order [][3]uint64
	for !q.Empty() {
		e, _ := q.Pop()
		d := e.(MarketDelta)
		order = append(order, [3]uint64{uint64(d.SourceID), uint64(d.Sequence), d.OrderID})
	}
	assert.Equal(t, [][3]uint64{{1, 3, 1}, {1, 3, 2}, {1, 9, 0}, {2, 1, 0}}, order)
}

func TestQueueEmpty(t *testing.T) {
	q := NewQueue(0)
	_, ok := q.Pop()
	assert.False(t, ok)
	_, ok = q.Peek()
	assert.False(t, ok)

	f := Fill{Ts: 3, OrderID: 11, Quantity: 2}
	q.Push(f)
	e, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, f, e)
	assert.True(t, q.Empty())
	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestQueueRandomisedIsSorted(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	q := NewQueue(0)
	for i := 0; i < 2000; i++ {
		ts := rng.Int63n(50)
		switch rng.Intn(3) {
		case 0:
			q.Push(MarketDelta{TsEvent: ts, SourceID: uint16(rng.Intn(4)), Sequence: uint32(i)})
		case 1:
			q.Push(Fill{Ts: ts, OrderID: uint64(i)})
		default:
			q.Push(StrategySignal{Ts: ts, SignalID: uint64(i)})
		}
	}
	prev, ok := q.Pop()
	require.True(t, ok)
	for !q.Empty() {
		cur, _ := q.Pop()
		if Less(cur, prev) {
			t.Fatalf("heap order violated: %+v before %+v", prev, cur)
		}
		prev = cur
	}
}

func TestParseActionAndSide(t *testing.T) {
	for _, c := range []byte("ACMRTFN") {
		a, err := ParseAction(c)
		require.NoError(t, err)
		assert.Equal(t, string(c), a.String())
	}
	_, err := ParseAction('X')
	assert.Error(t, err)

	s, err := ParseSide('B')
	require.NoError(t, err)
	assert.Equal(t, SideBid, s)
	assert.Equal(t, SideAsk, s.Opposite())
	_, err = ParseSide('Z')
	assert.Error(t, err)
}
