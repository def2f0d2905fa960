package session

import (
	"context"
	"log/slog"
	"sync"
)

const defaultIngestCapacity = 256

// IngestQueue buffers live-channel events into the controller, preserving
// arrival order. When extraction cannot keep up with the acoustic sampling
// rate the queue applies drop-oldest backpressure rather than blocking the
// channel's read loop.
type IngestQueue struct {
	ctrl   *Controller
	logger *slog.Logger

	mu      sync.Mutex
	events  []Event
	notify  chan struct{}
	closed  bool
	dropped int64
	cap     int
}

// NewIngestQueue creates a queue bounded at capacity events.
func NewIngestQueue(ctrl *Controller, capacity int, logger *slog.Logger) *IngestQueue {
	if capacity < 1 {
		capacity = defaultIngestCapacity
	}
	return &IngestQueue{
		ctrl:   ctrl,
		logger: logger,
		notify: make(chan struct{}, 1),
		cap:    capacity,
	}
}

// Push enqueues an event, evicting the oldest pending event when full.
func (q *IngestQueue) Push(ev Event) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	if len(q.events) == q.cap {
		q.events = q.events[1:]
		q.dropped++
		q.logger.Warn("ingest queue full — dropping oldest event", "dropped_total", q.dropped)
	}
	q.events = append(q.events, ev)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Dropped returns how many events have been evicted so far.
func (q *IngestQueue) Dropped() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Run drains the queue into the controller serially, preserving order, until
// ctx is cancelled. Meant to run as a single goroutine.
func (q *IngestQueue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			q.mu.Lock()
			q.closed = true
			q.mu.Unlock()
			return
		case <-q.notify:
			for {
				q.mu.Lock()
				if len(q.events) == 0 {
					q.mu.Unlock()
					break
				}
				ev := q.events[0]
				q.events = q.events[1:]
				q.mu.Unlock()
				q.ctrl.Apply(ctx, ev)
			}
		}
	}
}
