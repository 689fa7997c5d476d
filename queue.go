package photohistory

import "sync"

// pendingQueue is the FIFO of items awaiting analysis. A claim removes the
// head and marks it active in one critical section, so an item is never
// handed to two workers and is never visible in the queue once claimed.
type pendingQueue struct {
	mu     sync.Mutex
	items  []*Item
	head   int
	active int // claimed, not yet released
}

// newPendingQueue keeps collection order, skips already analyzed items and
// enqueues each ID at most once.
func newPendingQueue(items []*Item) *pendingQueue {
	seen := make(map[string]struct{}, len(items))
	queued := make([]*Item, 0, len(items))
	for _, it := range items {
		if it == nil || it.IsAnalyzed() {
			continue
		}
		if _, dup := seen[it.ID()]; dup {
			continue
		}
		seen[it.ID()] = struct{}{}
		queued = append(queued, it)
	}
	return &pendingQueue{items: queued}
}

// claim pops the head of the queue. It returns false once the queue is empty.
func (q *pendingQueue) claim() (*Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head >= len(q.items) {
		return nil, false
	}
	it := q.items[q.head]
	q.items[q.head] = nil
	q.head++
	q.active++
	return it, true
}

// release marks one claimed item as finished.
func (q *pendingQueue) release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.active > 0 {
		q.active--
	}
}

// pending returns the number of unclaimed items.
func (q *pendingQueue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// remaining returns unclaimed plus claimed-but-unreleased items.
func (q *pendingQueue) remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head + q.active
}

// size returns how many items were originally queued.
func (q *pendingQueue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
