package server

import "sync"

// RequestQueue is the hand-off between request producers and the cognitive
// loop. Push and Pop never wait for work.
type RequestQueue struct {
	mu    sync.Mutex
	items []Request
}

func NewRequestQueue() *RequestQueue {
	return &RequestQueue{}
}

func (q *RequestQueue) Push(r Request) {
	q.mu.Lock()
	q.items = append(q.items, r)
	q.mu.Unlock()
}

// Pop removes the oldest request. ok is false when the queue is empty.
func (q *RequestQueue) Pop() (Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	r := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return r, true
}

func (q *RequestQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
