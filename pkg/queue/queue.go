// Package queue holds notification deliveries that failed and are waiting
// for their next attempt.
package queue

import (
	"sort"
	"sync"
	"time"
)

// Delivery is one payload bound for the notification service.
type Delivery struct {
	ID          string
	Payload     []byte
	RetryAt     time.Time
	Attempts    int
	MaxAttempts int
}

// Backoff is the delay before the next attempt: base doubled per attempt
// already made, capped at limit.
func Backoff(base, limit time.Duration, attempts int) time.Duration {
	d := base
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= limit {
			return limit
		}
	}
	return d
}

// Reschedule records a failed attempt and reports whether the delivery may
// be tried again.
func (d *Delivery) Reschedule(now time.Time, base, limit time.Duration) bool {
	d.Attempts++
	if d.Attempts >= d.MaxAttempts {
		return false
	}
	d.RetryAt = now.Add(Backoff(base, limit, d.Attempts))
	return true
}

type Queue struct {
	mu    sync.Mutex
	items []*Delivery
}

func NewQueue() *Queue {
	return &Queue{items: make([]*Delivery, 0)}
}

func (q *Queue) Enqueue(d *Delivery) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, d)
}

// Due removes and returns every delivery whose RetryAt is not after now,
// oldest first.
func (q *Queue) Due(now time.Time) []*Delivery {
	q.mu.Lock()
	defer q.mu.Unlock()

	var due []*Delivery
	keep := q.items[:0]
	for _, d := range q.items {
		if d.RetryAt.After(now) {
			keep = append(keep, d)
			continue
		}
		due = append(due, d)
	}
	q.items = keep
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].RetryAt.Before(due[j].RetryAt)
	})
	return due
}

func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) Snapshot() []Delivery {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Delivery, len(q.items))
	for i, d := range q.items {
		out[i] = *d
	}
	return out
}
