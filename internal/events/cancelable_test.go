package events

import (
	"errors"
	"testing"

	"axonsim/internal/nn"
)

func hit(q *CancelableQueue, t float64) Scheduled {
	return q.NewSpikeHit(t, 0, nn.SynapseV, 0)
}

func TestCancelableRemoveAllThenPop(t *testing.T) {
	q := NewCancelableQueue()
	e1 := hit(q, 1)
	e2 := hit(q, 1)
	e3 := hit(q, 2)

	if !q.Remove(e1) || !q.Remove(e2) {
		t.Fatal("expected removal of pending events")
	}
	got, err := q.Pop()
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if len(got) != 1 || got[0].ID != e3.ID {
		t.Fatalf("expected only e3, got %+v", got)
	}
	if q.Len() != 0 {
		t.Fatalf("expected empty queue, got len=%d", q.Len())
	}
	if _, err := q.Pop(); !errors.Is(err, ErrEmptyQueue) {
		t.Fatalf("expected ErrEmptyQueue, got %v", err)
	}
}

func TestCancelableRemoveSingleOfManyAtTime(t *testing.T) {
	q := NewCancelableQueue()
	e1 := hit(q, 1)
	e2 := hit(q, 1)
	hit(q, 2)
	hit(q, 2)

	q.Remove(e1)

	first, err := q.Pop()
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if len(first) != 1 || first[0].ID != e2.ID {
		t.Fatalf("expected only e2, got %+v", first)
	}
	second, err := q.Pop()
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if len(second) != 2 {
		t.Fatalf("expected two events at t=2, got %d", len(second))
	}
}

func TestCancelablePopOrder(t *testing.T) {
	q := NewCancelableQueue()
	e5 := hit(q, 5)
	e3 := hit(q, 3)
	e6 := hit(q, 6)

	for _, want := range []Scheduled{e3, e5, e6} {
		got, err := q.Pop()
		if err != nil {
			t.Fatalf("pop: %v", err)
		}
		if got[0].ID != want.ID {
			t.Fatalf("unexpected order: got=%+v want=%+v", got[0], want)
		}
	}
}

func TestCancelableBucketsReturnWholeTime(t *testing.T) {
	q := NewCancelableQueue()
	e4 := hit(q, 2)
	e3 := hit(q, 2)
	e6 := hit(q, 3)
	e1 := hit(q, 1)
	e2 := hit(q, 1)
	e5 := hit(q, 2)

	if q.Len() != 3 {
		t.Fatalf("expected 3 live buckets, got %d", q.Len())
	}

	tests := [][]Scheduled{{e1, e2}, {e4, e3, e5}, {e6}}
	for _, want := range tests {
		got, err := q.Pop()
		if err != nil {
			t.Fatalf("pop: %v", err)
		}
		if len(got) != len(want) {
			t.Fatalf("unexpected bucket size: got=%d want=%d", len(got), len(want))
		}
		for i := range want {
			if got[i].ID != want[i].ID {
				t.Fatalf("bucket must be ordered by id: got=%+v", got)
			}
		}
	}
}

func TestCancelableLenIgnoresEmptiedBuckets(t *testing.T) {
	q := NewCancelableQueue()
	e1 := hit(q, 1)
	e2 := hit(q, 2)
	e3 := hit(q, 3)
	q.Remove(e1)
	q.Remove(e2)
	q.Remove(e3)

	if q.Len() != 0 {
		t.Fatalf("expected len 0, got %d", q.Len())
	}
	if _, ok := q.PeekTime(); ok {
		t.Fatal("expected no live time")
	}
}

func TestCancelableRemoveIsIdempotent(t *testing.T) {
	q := NewCancelableQueue()
	e := q.NewReset(4, 1)
	if !q.Remove(e) {
		t.Fatal("expected first removal to succeed")
	}
	if q.Remove(e) {
		t.Fatal("second removal must report false")
	}

	e2 := q.NewReset(4, 1)
	got, err := q.Pop()
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if len(got) != 1 || got[0].ID != e2.ID || got[0].Kind != NeuronReset {
		t.Fatalf("unexpected events: %+v", got)
	}
	if q.Remove(e2) {
		t.Fatal("removing a popped event must report false")
	}
}

func TestCancelableReaddAfterPopAtSameTime(t *testing.T) {
	q := NewCancelableQueue()
	hit(q, 1)
	if _, err := q.Pop(); err != nil {
		t.Fatalf("pop: %v", err)
	}
	again := hit(q, 1)
	later := hit(q, 2)

	if tm, ok := q.PeekTime(); !ok || tm != 1 {
		t.Fatalf("unexpected peek time: %f ok=%t", tm, ok)
	}
	got, _ := q.Pop()
	if len(got) != 1 || got[0].ID != again.ID {
		t.Fatalf("unexpected events: %+v", got)
	}
	got, _ = q.Pop()
	if len(got) != 1 || got[0].ID != later.ID {
		t.Fatalf("unexpected events: %+v", got)
	}
}
