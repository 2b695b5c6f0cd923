package notify

import (
	"context"
	"sync"

	"github.com/seawatch/threat-monitor/backend/internal/models"
)

// Queue is a process-wide, unbounded FIFO of committed threat records.
// Publish never blocks. Items published while no subscriber is connected
// accumulate until the next subscriber consumes them.
//
// Consumption is destructive: each record goes to whichever subscriber reads
// it first, so concurrent subscribers split the stream between them rather
// than each receiving a copy. True broadcast would need a per-subscriber
// queue registry.
type Queue struct {
	mu    sync.Mutex
	items []models.ThreatRecord
	wake  chan struct{}
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Publish appends a record to the queue.
func (q *Queue) Publish(rec models.ThreatRecord) {
	q.mu.Lock()
	q.items = append(q.items, rec)
	q.mu.Unlock()
	q.signal()
}

// Next blocks until a record is available or ctx is cancelled. A single
// subscriber observes records in publish order with no gaps.
func (q *Queue) Next(ctx context.Context) (models.ThreatRecord, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			rec := q.items[0]
			q.items = q.items[1:]
			remaining := len(q.items)
			q.mu.Unlock()
			if remaining > 0 {
				// Keep other waiters moving on a non-empty queue.
				q.signal()
			}
			return rec, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return models.ThreatRecord{}, ctx.Err()
		case <-q.wake:
		}
	}
}

// Len reports the number of records waiting for a subscriber.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
