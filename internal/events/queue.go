// Package events holds the schedulers used by the simulation engines: a
// plain time-ordered queue for the fixed-step engine and a cancelable,
// time-bucketed queue for the predictive engine.
package events

import (
	"container/heap"

	"axonsim/internal/nn"
)

// Event is a synaptic effect due at Time on Target.
type Event struct {
	Time   float64
	Target nn.NeuronID
	Type   nn.SynapseType
	Weight float64

	seq uint64
}

// TimeQueue is a min-heap keyed by event time. Events with equal times
// come out in insertion order.
type TimeQueue struct {
	events  eventHeap
	nextSeq uint64
}

func NewTimeQueue() *TimeQueue {
	q := &TimeQueue{}
	heap.Init(&q.events)
	return q
}

func (q *TimeQueue) Push(e Event) {
	e.seq = q.nextSeq
	q.nextSeq++
	heap.Push(&q.events, e)
}

// PopUntil removes and returns every event with Time <= t.
func (q *TimeQueue) PopUntil(t float64) []Event {
	var out []Event
	for q.events.Len() > 0 && q.events[0].Time <= t {
		out = append(out, heap.Pop(&q.events).(Event))
	}
	return out
}

// Peek returns the earliest pending event.
func (q *TimeQueue) Peek() (Event, bool) {
	if q.events.Len() == 0 {
		return Event{}, false
	}
	return q.events[0], true
}

func (q *TimeQueue) Len() int {
	return q.events.Len()
}

type eventHeap []Event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].Time == h[j].Time {
		return h[i].seq < h[j].seq
	}
	return h[i].Time < h[j].Time
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(Event))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}
