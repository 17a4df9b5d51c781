package link

import "sync"

// Queue is the unbounded outbound FIFO shared between command producers
// and the single link worker that drains it.
type Queue struct {
	mu    sync.Mutex
	items [][]byte
}

// Enqueue appends a payload. The slice is copied.
func (q *Queue) Enqueue(p []byte) {
	item := append([]byte(nil), p...)
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
}

// DrainOne removes and returns the oldest payload.
func (q *Queue) DrainOne() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	item := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return item, true
}

// Len returns the number of pending payloads.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
