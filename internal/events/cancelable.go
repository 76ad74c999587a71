package events

import (
	"container/heap"
	"errors"
	"sort"

	"axonsim/internal/nn"
)

var ErrEmptyQueue = errors.New("event queue is empty")

type Kind uint8

const (
	// SpikeHit delivers a synaptic effect to Target.
	SpikeHit Kind = iota + 1
	// NeuronReset fires Target's predicted spike and resets it.
	NeuronReset
)

func (k Kind) String() string {
	switch k {
	case SpikeHit:
		return "spike_hit"
	case NeuronReset:
		return "neuron_reset"
	default:
		return "unknown"
	}
}

// Scheduled is an event in a CancelableQueue. ID is unique per queue and
// increases with insertion order.
type Scheduled struct {
	ID     uint64
	Kind   Kind
	Time   float64
	Target nn.NeuronID
	Type   nn.SynapseType
	Weight float64
}

// CancelableQueue groups events by exact time. The heap of times is never
// cleaned on removal, so it can hold stale entries whose bucket is empty
// or gone; Pop skips them.
type CancelableQueue struct {
	buckets map[float64][]Scheduled
	times   timeHeap
	live    int
	nextID  uint64
}

func NewCancelableQueue() *CancelableQueue {
	return &CancelableQueue{buckets: make(map[float64][]Scheduled)}
}

func (q *CancelableQueue) NewSpikeHit(t float64, target nn.NeuronID, typ nn.SynapseType, weight float64) Scheduled {
	return q.Add(Scheduled{Kind: SpikeHit, Time: t, Target: target, Type: typ, Weight: weight})
}

func (q *CancelableQueue) NewReset(t float64, target nn.NeuronID) Scheduled {
	return q.Add(Scheduled{Kind: NeuronReset, Time: t, Target: target})
}

// Add assigns the next ID to e, inserts it and returns the stored event.
func (q *CancelableQueue) Add(e Scheduled) Scheduled {
	q.nextID++
	e.ID = q.nextID

	bucket, ok := q.buckets[e.Time]
	if !ok {
		heap.Push(&q.times, e.Time)
	}
	if len(bucket) == 0 {
		q.live++
	}
	q.buckets[e.Time] = append(bucket, e)
	return e
}

// Remove deletes e from its bucket. It reports false when e was already
// popped or removed.
func (q *CancelableQueue) Remove(e Scheduled) bool {
	bucket, ok := q.buckets[e.Time]
	if !ok {
		return false
	}
	for i := range bucket {
		if bucket[i].ID != e.ID {
			continue
		}
		bucket = append(bucket[:i], bucket[i+1:]...)
		q.buckets[e.Time] = bucket
		if len(bucket) == 0 {
			q.live--
		}
		return true
	}
	return false
}

// Pop returns every event at the earliest non-empty time, ordered by ID.
func (q *CancelableQueue) Pop() ([]Scheduled, error) {
	for q.times.Len() > 0 {
		t := heap.Pop(&q.times).(float64)
		bucket, ok := q.buckets[t]
		if !ok {
			continue
		}
		delete(q.buckets, t)
		if len(bucket) == 0 {
			continue
		}
		q.live--
		sort.Slice(bucket, func(i, j int) bool { return bucket[i].ID < bucket[j].ID })
		return bucket, nil
	}
	return nil, ErrEmptyQueue
}

// PeekTime returns the earliest time holding a live event.
func (q *CancelableQueue) PeekTime() (float64, bool) {
	for q.times.Len() > 0 {
		t := q.times[0]
		if len(q.buckets[t]) > 0 {
			return t, true
		}
		heap.Pop(&q.times)
		delete(q.buckets, t)
	}
	return 0, false
}

// Len counts time buckets that still hold at least one event.
func (q *CancelableQueue) Len() int {
	return q.live
}

type timeHeap []float64

func (h timeHeap) Len() int           { return len(h) }
func (h timeHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h timeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *timeHeap) Push(x any) {
	*h = append(*h, x.(float64))
}

func (h *timeHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	*h = old[:n-1]
	return t
}
