package compute

import (
	"container/list"
	"context"
	"sync"
	"time"

	"stakedeck/internal/types"
)

// Limiter bounds outbound dispatches to the compute process: at most
// MaxConcurrent calls in flight, at least MinSpacing between dispatch
// instants, and at most MaxQueue callers waiting for a slot. On queue
// overflow the oldest queued (not yet started) caller is evicted with
// types.ErrQueueEvicted instead of the newcomer failing.
//
// This throttles an external dependency; it protects no shared memory.
type Limiter struct {
	mu            sync.Mutex
	maxConcurrent int
	minSpacing    time.Duration
	maxQueue      int

	active       int
	queue        *list.List // of *waiter, oldest at front
	lastDispatch time.Time
	timerArmed   bool

	now   func() time.Time
	after func(d time.Duration, f func())
}

type waiter struct {
	ready chan error // buffered; nil grants a slot
}

func NewLimiter(cfg types.LimiterConfig) *Limiter {
	return &Limiter{
		maxConcurrent: cfg.MaxConcurrent,
		minSpacing:    cfg.MinSpacing(),
		maxQueue:      cfg.MaxQueue,
		queue:         list.New(),
		now:           time.Now,
		after:         func(d time.Duration, f func()) { time.AfterFunc(d, f) },
	}
}

// Acquire blocks until a dispatch slot is granted, the caller is evicted, or
// ctx is done. Every nil return MUST be paired with a Release.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	if l.queue.Len() == 0 && l.canDispatchLocked() {
		l.markDispatchLocked()
		l.mu.Unlock()
		return nil
	}
	w := &waiter{ready: make(chan error, 1)}
	if l.queue.Len() >= l.maxQueue {
		oldest := l.queue.Remove(l.queue.Front()).(*waiter)
		oldest.ready <- types.ErrQueueEvicted
	}
	elem := l.queue.PushBack(w)
	l.armLocked()
	l.mu.Unlock()

	select {
	case err := <-w.ready:
		return err
	case <-ctx.Done():
		l.mu.Lock()
		select {
		case err := <-w.ready:
			// Settled concurrently with cancellation. A granted slot
			// must be handed back since the caller won't Release.
			if err == nil {
				l.active--
				l.drainLocked()
			}
			l.mu.Unlock()
			if err != nil {
				return err
			}
			return ctx.Err()
		default:
			l.queue.Remove(elem)
			l.mu.Unlock()
			return ctx.Err()
		}
	}
}

// Release frees a slot granted by Acquire and wakes queued callers.
func (l *Limiter) Release() {
	l.mu.Lock()
	if l.active > 0 {
		l.active--
	}
	l.drainLocked()
	l.mu.Unlock()
}

// Queued returns the number of callers currently waiting.
func (l *Limiter) Queued() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queue.Len()
}

func (l *Limiter) canDispatchLocked() bool {
	if l.active >= l.maxConcurrent {
		return false
	}
	if l.minSpacing > 0 && l.now().Before(l.lastDispatch.Add(l.minSpacing)) {
		return false
	}
	return true
}

func (l *Limiter) markDispatchLocked() {
	l.active++
	l.lastDispatch = l.now()
}

func (l *Limiter) drainLocked() {
	for l.queue.Len() > 0 {
		if l.active >= l.maxConcurrent {
			return
		}
		if l.minSpacing > 0 && l.now().Before(l.lastDispatch.Add(l.minSpacing)) {
			l.armLocked()
			return
		}
		w := l.queue.Remove(l.queue.Front()).(*waiter)
		l.markDispatchLocked()
		w.ready <- nil
	}
}

// armLocked schedules a drain once the spacing window elapses. Concurrency
// -bound waiters need no timer; Release drains them.
func (l *Limiter) armLocked() {
	if l.timerArmed || l.minSpacing <= 0 {
		return
	}
	if l.queue.Len() == 0 || l.active >= l.maxConcurrent {
		return
	}
	wait := l.lastDispatch.Add(l.minSpacing).Sub(l.now())
	if wait <= 0 {
		return
	}
	l.timerArmed = true
	l.after(wait, func() {
		l.mu.Lock()
		l.timerArmed = false
		l.drainLocked()
		l.mu.Unlock()
	})
}
