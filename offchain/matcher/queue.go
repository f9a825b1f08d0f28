package matcher

import (
	"sync"
)

// OrderQueue is a thread-safe buffer of order ids waiting to be matched.
// An id is held at most once until the next flush.
type OrderQueue struct {
	ids     []string
	queued  map[string]struct{}
	maxSize int
	mu      sync.Mutex
}

// NewOrderQueue creates a queue that flushes at most maxSize ids at a time
func NewOrderQueue(maxSize int) *OrderQueue {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &OrderQueue{
		ids:     make([]string, 0, maxSize),
		queued:  make(map[string]struct{}),
		maxSize: maxSize,
	}
}

// Add queues an order id; it reports false when the id is already queued
func (q *OrderQueue) Add(orderID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.queued[orderID]; ok {
		return false
	}
	q.queued[orderID] = struct{}{}
	q.ids = append(q.ids, orderID)
	return true
}

// FlushBatch returns up to maxSize ids in arrival order and removes them
func (q *OrderQueue) FlushBatch() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.ids) == 0 {
		return nil
	}

	count := q.maxSize
	if len(q.ids) < count {
		count = len(q.ids)
	}

	batch := append([]string(nil), q.ids[:count]...)
	q.ids = q.ids[count:]
	for _, id := range batch {
		delete(q.queued, id)
	}
	return batch
}

// Len returns the number of queued ids
func (q *OrderQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ids)
}
