package engine

import "sync"

// Queue is the ordered list of units awaiting a suite run.
// Units run in insertion order and the queue is emptied when drained.
type Queue struct {
	mu    sync.Mutex
	units []Unit
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push appends a unit.
func (q *Queue) Push(u Unit) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.units = append(q.units, u)
}

// Len returns the number of queued units.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.units)
}

// Units returns a copy of the queued units without draining.
func (q *Queue) Units() []Unit {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Unit(nil), q.units...)
}

// Drain returns every queued unit and empties the queue.
func (q *Queue) Drain() []Unit {
	q.mu.Lock()
	defer q.mu.Unlock()
	units := q.units
	q.units = nil
	return units
}
