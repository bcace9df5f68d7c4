//go:build linux

package tracer

import "container/heap"

// raceEvent is one race-point firing, resolved to the tracer's own race
// point index, ready for the state machine.
type raceEvent struct {
	time  uint64
	pid   int
	point int
}

// eventSource is implemented by one CPU's decoded, time-ordered event
// stream. mergeRound drains every source in global timestamp order
// without needing to know how any particular source produces its events,
// so the state machine and merge logic are testable against fakes.
type eventSource interface {
	peek() (raceEvent, bool)
	advance()
	missedEvents() bool
}

// cpuSource adapts a pageDecoder, filtering out events whose id doesn't
// belong to a tracked race point (other kprobes, or noise) transparently.
type cpuSource struct {
	decoder *pageDecoder
	eventID map[int]int
}

func (s *cpuSource) peek() (raceEvent, bool) {
	for {
		rec, ok := s.decoder.next()
		if !ok {
			return raceEvent{}, false
		}
		point, known := s.eventID[rec.eventID]
		if !known {
			s.decoder.advance()
			continue
		}
		return raceEvent{time: rec.time, pid: rec.pid, point: point}, true
	}
}

func (s *cpuSource) advance() { s.decoder.advance() }

func (s *cpuSource) missedEvents() bool { return s.decoder.missed }

type heapItem struct {
	ev  raceEvent
	src int
}

type eventHeap []heapItem

func (h eventHeap) Len() int            { return len(h) }
func (h eventHeap) Less(i, j int) bool  { return h[i].ev.time < h[j].ev.time }
func (h eventHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x interface{}) { *h = append(*h, x.(heapItem)) }
func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// mergeRound performs a k-way merge of every source's pending events in
// ascending kernel-timestamp order, invoking apply for each in that
// global order, and reports how many events were merged plus whether any
// source observed a ring-buffer overrun this round.
func mergeRound(sources []eventSource, apply func(raceEvent)) (entries int, missed bool) {
	h := &eventHeap{}
	heap.Init(h)

	for i, s := range sources {
		if s.missedEvents() {
			missed = true
		}
		if ev, ok := s.peek(); ok {
			heap.Push(h, heapItem{ev: ev, src: i})
		}
	}

	for h.Len() > 0 {
		item := heap.Pop(h).(heapItem)
		apply(item.ev)
		entries++

		sources[item.src].advance()
		if ev, ok := sources[item.src].peek(); ok {
			heap.Push(h, heapItem{ev: ev, src: item.src})
		}
	}
	return entries, missed
}
