// Package ratelimit provides a queueing rate limiter for outbound metadata
// calls. Each limiter owns a FIFO queue drained by a single worker; tasks
// are dispatched no faster than requestsPerPeriod per rolling period and
// never closer together than minRequestInterval.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// DefaultMinRequestInterval is the floor between any two dispatches on one
// limiter, independent of the period budget.
const DefaultMinRequestInterval = 400 * time.Millisecond

type Limiter struct {
	requestsPerPeriod  int
	periodDuration     time.Duration
	minRequestInterval time.Duration

	mu                 sync.Mutex
	queue              []func()
	draining           bool
	periodStart        time.Time
	requestsThisPeriod int
	lastRequestTime    time.Time
}

// New creates a limiter allowing requestsPerPeriod dispatches per
// periodDuration with the default minimum spacing.
func New(requestsPerPeriod int, periodDuration time.Duration) *Limiter {
	return NewWithInterval(requestsPerPeriod, periodDuration, DefaultMinRequestInterval)
}

func NewWithInterval(requestsPerPeriod int, periodDuration, minRequestInterval time.Duration) *Limiter {
	return &Limiter{
		requestsPerPeriod:  requestsPerPeriod,
		periodDuration:     periodDuration,
		minRequestInterval: minRequestInterval,
	}
}

// Schedule enqueues fn and blocks until it has been dispatched and has
// returned, or until ctx is done. A task error fails only that task; the
// queue keeps draining. When ctx is cancelled before dispatch the task
// still runs in its queue slot, but the result is discarded.
func Schedule[T any](ctx context.Context, l *Limiter, fn func() (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)

	l.enqueue(func() {
		value, err := fn()
		done <- result{value, err}
	})

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (l *Limiter) enqueue(task func()) {
	l.mu.Lock()
	l.queue = append(l.queue, task)
	// Only one drain worker runs per limiter; if one is already active the
	// new task just waits its turn in the queue.
	if !l.draining {
		l.draining = true
		go l.drain()
	}
	l.mu.Unlock()
}

func (l *Limiter) drain() {
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.draining = false
			l.mu.Unlock()
			return
		}

		now := time.Now()

		// Roll the window once the period has fully elapsed.
		if now.Sub(l.periodStart) >= l.periodDuration {
			l.periodStart = now
			l.requestsThisPeriod = 0
		}

		// Budget exhausted: wait out the rest of the window.
		if l.requestsThisPeriod >= l.requestsPerPeriod {
			wait := l.periodStart.Add(l.periodDuration).Sub(now)
			l.mu.Unlock()
			time.Sleep(wait)
			continue
		}

		// Enforce minimum spacing between dispatches.
		if since := now.Sub(l.lastRequestTime); since < l.minRequestInterval {
			l.mu.Unlock()
			time.Sleep(l.minRequestInterval - since)
			continue
		}

		task := l.queue[0]
		l.queue = l.queue[1:]
		l.lastRequestTime = time.Now()
		l.requestsThisPeriod++
		l.mu.Unlock()

		task()
	}
}

// Pending returns the number of queued, not-yet-dispatched tasks.
func (l *Limiter) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}
