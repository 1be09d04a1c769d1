package queue

import "sync"

// HostQueue is an unbounded FIFO work list of canonical hosts. The three
// phase queues (discover, crawl, third-party) are instances of this type.
// Queue depth is throttled only by the iteration controller's tuning and the
// pool capacity cap, never by the queue itself.
type HostQueue struct {
	items []string
	mu    sync.Mutex
}

// NewHostQueue creates an empty queue.
func NewHostQueue() *HostQueue {
	return &HostQueue{}
}

// Enqueue appends a host.
func (q *HostQueue) Enqueue(host string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, host)
}

// Pop removes and returns the oldest host.
func (q *HostQueue) Pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", false
	}
	host := q.items[0]
	q.items = q.items[1:]
	return host, true
}

// PopBatch removes up to n hosts in FIFO order, discarding any for which
// skip returns true. A nil skip keeps everything.
func (q *HostQueue) PopBatch(n int, skip func(string) bool) []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	var batch []string
	for len(batch) < n && len(q.items) > 0 {
		host := q.items[0]
		q.items = q.items[1:]
		if skip != nil && skip(host) {
			continue
		}
		batch = append(batch, host)
	}
	return batch
}

// Drain removes and returns everything in FIFO order.
func (q *HostQueue) Drain() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// Len returns the current queue length.
func (q *HostQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
