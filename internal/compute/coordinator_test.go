package compute

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"stakedeck/internal/types"
)

func (s *UnitTestSuite) TestExecuteDedupsIdenticalInFlight() {
	release := make(chan struct{})
	gw := &fakeGateway{
		queryFn: func(string, []types.Tag) (types.CallResult, error) {
			<-release
			return tagResult("Answer", "42"), nil
		},
	}
	co := NewCoordinator(gw, wideOpen())
	req := Request{
		Target:  testProcess,
		Tags:    []types.Tag{{Name: "Action", Value: "Get-Positions"}, {Name: "Staker", Value: "addr-1"}},
		UserKey: "addr-1",
	}

	const callers = 5
	var wg sync.WaitGroup
	results := make(chan types.CallResult, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := co.Execute(context.Background(), req)
			s.NoError(err)
			results <- res
		}()
	}

	// Let everyone join the in-flight call before it settles.
	s.Eventually(func() bool { return gw.queryCount() == 1 }, time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()

	s.Equal(1, gw.queryCount())
	for i := 0; i < callers; i++ {
		res := <-results
		v, ok := res.Tag("Answer")
		s.True(ok)
		s.Equal("42", v)
	}
}

func (s *UnitTestSuite) TestExecuteDifferentUsersNotDeduped() {
	gw := &fakeGateway{
		queryFn: func(string, []types.Tag) (types.CallResult, error) {
			return tagResult(), nil
		},
	}
	co := NewCoordinator(gw, wideOpen())
	tags := []types.Tag{{Name: "Action", Value: "Balance"}}

	_, err := co.Execute(context.Background(), Request{Target: testProcess, Tags: tags, UserKey: "addr-1"})
	s.NoError(err)
	_, err = co.Execute(context.Background(), Request{Target: testProcess, Tags: tags, UserKey: "addr-2"})
	s.NoError(err)

	s.Equal(2, gw.queryCount())
}

func (s *UnitTestSuite) TestExecuteCachesSuccess() {
	gw := &fakeGateway{
		queryFn: func(string, []types.Tag) (types.CallResult, error) {
			return dataResult(`{"ok":true}`), nil
		},
	}
	co := NewCoordinator(gw, wideOpen())
	req := Request{
		Target:   testProcess,
		Tags:     []types.Tag{{Name: "Action", Value: "Info"}},
		CacheTTL: CacheMinute,
	}

	first, err := co.Execute(context.Background(), req)
	s.NoError(err)
	second, err := co.Execute(context.Background(), req)
	s.NoError(err)

	s.Equal(1, gw.queryCount())
	s.Equal(first.FirstData(), second.FirstData())
}

func (s *UnitTestSuite) TestExecuteCacheExpires() {
	now := time.Now()
	mem := newMemCache()
	mem.ttl.WithClock(func() time.Time { return now })

	gw := &fakeGateway{
		queryFn: func(string, []types.Tag) (types.CallResult, error) {
			return dataResult(`{}`), nil
		},
	}
	co := NewCoordinator(gw, wideOpen(), WithCache(mem))
	req := Request{
		Target:   testProcess,
		Tags:     []types.Tag{{Name: "Action", Value: "Info"}},
		CacheTTL: CacheMinute,
	}

	_, err := co.Execute(context.Background(), req)
	s.NoError(err)
	now = now.Add(2 * time.Minute)
	_, err = co.Execute(context.Background(), req)
	s.NoError(err)

	s.Equal(2, gw.queryCount())
}

func (s *UnitTestSuite) TestExecuteErrorsAreNotCached() {
	calls := 0
	gw := &fakeGateway{
		queryFn: func(string, []types.Tag) (types.CallResult, error) {
			calls++
			if calls == 1 {
				return types.CallResult{}, fmt.Errorf("node unreachable")
			}
			return dataResult(`{}`), nil
		},
	}
	co := NewCoordinator(gw, wideOpen())
	req := Request{
		Target:   testProcess,
		Tags:     []types.Tag{{Name: "Action", Value: "Info"}},
		CacheTTL: CacheMinute,
	}

	_, err := co.Execute(context.Background(), req)
	s.Error(err)
	_, err = co.Execute(context.Background(), req)
	s.NoError(err)
	s.Equal(2, calls)
}

func (s *UnitTestSuite) TestSignedExecuteSubmitsAndAwaits() {
	gw := &fakeGateway{
		submitFn: func(string, []types.Tag) (string, error) { return "sub-9", nil },
		awaitFn: func(_, id string) (types.CallResult, error) {
			return tagResult("Submission", id), nil
		},
	}
	co := NewCoordinator(gw, wideOpen())

	res, err := co.Execute(context.Background(), Request{
		Target: testProcess,
		Tags:   []types.Tag{{Name: "Action", Value: "Stake"}},
		Signer: true,
	})
	s.NoError(err)
	v, _ := res.Tag("Submission")
	s.Equal("sub-9", v)
	s.Equal(0, gw.queryCount())
}

func (s *UnitTestSuite) TestSignedExecuteRejectsEmptySubmissionID() {
	gw := &fakeGateway{
		submitFn: func(string, []types.Tag) (string, error) { return "", nil },
	}
	co := NewCoordinator(gw, wideOpen())

	_, err := co.Execute(context.Background(), Request{
		Target: testProcess,
		Tags:   []types.Tag{{Name: "Action", Value: "Stake"}},
		Signer: true,
	})
	s.True(errors.Is(err, types.ErrNoSubmissionID))
	s.Equal(0, gw.awaits)
}

func (s *UnitTestSuite) TestExecuteRequiresTarget() {
	co := NewCoordinator(&fakeGateway{}, wideOpen())
	_, err := co.Execute(context.Background(), Request{})
	s.True(errors.Is(err, types.ErrInvalidRequest))
}

func (s *UnitTestSuite) TestRetryBacksOffAndGivesUp() {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, 4*time.Millisecond, func(context.Context) error {
		calls++
		return fmt.Errorf("boom %d", calls)
	})
	s.Equal(3, calls)
	s.ErrorContains(err, "giving up after 3 attempts")
	s.ErrorContains(err, "boom 3")

	calls = 0
	err = Retry(context.Background(), 3, time.Millisecond, 4*time.Millisecond, func(context.Context) error {
		calls++
		if calls < 2 {
			return fmt.Errorf("transient")
		}
		return nil
	})
	s.NoError(err)
	s.Equal(2, calls)
}
