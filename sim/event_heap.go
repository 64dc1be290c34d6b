package sim

import (
	"container/heap"
	"sort"
)

type scheduledEvent struct {
	ev  Event
	seq uint64
}

// EventHeap implements a priority queue with deterministic ordering
// Ordering: time → scheduling sequence
type EventHeap struct {
	events []scheduledEvent
	seq    uint64
}

// NewEventHeap creates a new event heap
func NewEventHeap() *EventHeap {
	h := &EventHeap{
		events: make([]scheduledEvent, 0),
	}
	heap.Init(h)
	return h
}

// Len implements heap.Interface
func (h *EventHeap) Len() int {
	return len(h.events)
}

// Less implements heap.Interface with deterministic ordering
func (h *EventHeap) Less(i, j int) bool {
	return less(h.events[i], h.events[j])
}

func less(a, b scheduledEvent) bool {
	if a.ev.Time() != b.ev.Time() {
		return a.ev.Time() < b.ev.Time()
	}
	return a.seq < b.seq
}

// Swap implements heap.Interface
func (h *EventHeap) Swap(i, j int) {
	h.events[i], h.events[j] = h.events[j], h.events[i]
}

// Push implements heap.Interface
func (h *EventHeap) Push(x interface{}) {
	h.events = append(h.events, x.(scheduledEvent))
}

// Pop implements heap.Interface
func (h *EventHeap) Pop() interface{} {
	old := h.events
	n := len(old)
	item := old[n-1]
	h.events = old[0 : n-1]
	return item
}

// Schedule adds an event to the heap at its absolute time
func (h *EventHeap) Schedule(e Event) {
	h.seq++
	heap.Push(h, scheduledEvent{ev: e, seq: h.seq})
}

// PopNext removes and returns the next event
func (h *EventHeap) PopNext() Event {
	if h.Len() == 0 {
		return nil
	}
	return heap.Pop(h).(scheduledEvent).ev
}

// Peek returns the next event without removing it
func (h *EventHeap) Peek() Event {
	if h.Len() == 0 {
		return nil
	}
	return h.events[0].ev
}

// Pending returns all scheduled events in delivery order without removing them
func (h *EventHeap) Pending() []Event {
	sorted := append([]scheduledEvent(nil), h.events...)
	sort.Slice(sorted, func(i, j int) bool { return less(sorted[i], sorted[j]) })
	out := make([]Event, len(sorted))
	for i, se := range sorted {
		out[i] = se.ev
	}
	return out
}
