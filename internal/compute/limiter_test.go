package compute

import (
	"context"
	"errors"
	"time"

	"stakedeck/internal/types"
)

func (s *UnitTestSuite) TestLimiterConcurrencyBound() {
	l := NewLimiter(types.LimiterConfig{MaxConcurrent: 1, MinSpacingMS: 0, MaxQueue: 8})

	s.NoError(l.Acquire(context.Background()))

	granted := make(chan error, 1)
	go func() { granted <- l.Acquire(context.Background()) }()

	select {
	case <-granted:
		s.Fail("second acquire should block while the slot is held")
	case <-time.After(50 * time.Millisecond):
	}

	l.Release()
	select {
	case err := <-granted:
		s.NoError(err)
	case <-time.After(time.Second):
		s.Fail("queued acquire was not woken by release")
	}
	l.Release()
}

func (s *UnitTestSuite) TestLimiterEvictsOldestOnOverflow() {
	l := NewLimiter(types.LimiterConfig{MaxConcurrent: 1, MinSpacingMS: 0, MaxQueue: 1})

	s.NoError(l.Acquire(context.Background()))

	first := make(chan error, 1)
	go func() { first <- l.Acquire(context.Background()) }()
	s.Eventually(func() bool { return l.Queued() == 1 }, time.Second, 5*time.Millisecond)

	second := make(chan error, 1)
	go func() { second <- l.Acquire(context.Background()) }()

	// The newcomer displaces the oldest waiter, not itself.
	select {
	case err := <-first:
		s.True(errors.Is(err, types.ErrQueueEvicted))
	case <-time.After(time.Second):
		s.Fail("oldest waiter was not evicted")
	}

	l.Release()
	select {
	case err := <-second:
		s.NoError(err)
	case <-time.After(time.Second):
		s.Fail("remaining waiter was not granted")
	}
	l.Release()
}

func (s *UnitTestSuite) TestLimiterMinSpacing() {
	l := NewLimiter(types.LimiterConfig{MaxConcurrent: 2, MinSpacingMS: 60, MaxQueue: 8})

	start := time.Now()
	s.NoError(l.Acquire(context.Background()))
	s.NoError(l.Acquire(context.Background()))
	elapsed := time.Since(start)

	// Both slots were free, so the second dispatch waited only for spacing.
	s.GreaterOrEqual(elapsed, 50*time.Millisecond)
	l.Release()
	l.Release()
}

func (s *UnitTestSuite) TestLimiterAcquireHonorsContext() {
	l := NewLimiter(types.LimiterConfig{MaxConcurrent: 1, MinSpacingMS: 0, MaxQueue: 8})
	s.NoError(l.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := l.Acquire(ctx)
	s.True(errors.Is(err, context.DeadlineExceeded))
	s.Equal(0, l.Queued())
	l.Release()
}
