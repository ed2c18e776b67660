package order

import (
	"errors"
	"testing"

	"mbo-backtester/event"
)

func TestBookLifecycle(t *testing.T) {
	b := NewBook()
	if err := b.Add(Order{ID: 1, InstrumentID: 7, Side: event.SideBid, Price: 100, Quantity: 5, CreatedTs: 10}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := b.Add(Order{ID: 1}); !errors.Is(err, ErrDuplicateOrder) {
		t.Fatalf("expected duplicate error, got %v", err)
	}

	o, ok := b.ApplyFill(1, 2, 11)
	if !ok || o.Status != StatusPartial || o.Remaining() != 3 {
		t.Fatalf("unexpected partial fill state: %+v %v", o, ok)
	}

	o, err := b.Modify(1, 101, 4, 12)
	if err != nil || o.Quantity != 6 || o.Price != 101 {
		t.Fatalf("modify failed: %+v %v", o, err)
	}

	o, ok = b.ApplyFill(1, 4, 13)
	if !ok || o.Status != StatusFilled {
		t.Fatalf("expected filled: %+v", o)
	}
	if b.Len() != 0 {
		t.Fatalf("filled order should leave the book")
	}
	if _, ok := b.ApplyFill(1, 1, 14); ok {
		t.Fatalf("fill after completion must be ignored")
	}
}

func TestBookCancel(t *testing.T) {
	b := NewBook()
	_ = b.Add(Order{ID: 2, Quantity: 1})
	_ = b.Add(Order{ID: 1, Quantity: 1})
	if list := b.List(); len(list) != 2 || list[0].ID != 1 {
		t.Fatalf("list not sorted: %+v", list)
	}
	o, err := b.Cancel(2, 5)
	if err != nil || o.Status != StatusCanceled {
		t.Fatalf("cancel failed: %+v %v", o, err)
	}
	if _, err := b.Cancel(2, 6); !errors.Is(err, ErrUnknownOrder) {
		t.Fatalf("expected unknown order, got %v", err)
	}
	if _, err := b.Modify(9, 1, 1, 1); !errors.Is(err, ErrUnknownOrder) {
		t.Fatalf("expected unknown order, got %v", err)
	}
}

func TestValidateTransition(t *testing.T) {
	if err := ValidateTransition(StatusNew, StatusFilled); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if err := ValidateTransition(StatusFilled, StatusPartial); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected illegal transition, got %v", err)
	}
	if err := ValidateTransition(StatusCanceled, StatusCanceled); err == nil {
		t.Fatalf("terminal state cannot repeat")
	}
}
