package staking

import (
	"context"
	"fmt"
	"time"

	"stakedeck/internal/types"
)

func (s *UnitTestSuite) TestStakeCompletesWhenPositionAppears() {
	f := newFixture()
	tx := f.pendingStake("tx-1", 100)

	// No position yet: the record stays pending.
	f.poller.tick(context.Background(), testAddress)
	got, _ := f.book.Get(tx.ID)
	s.Equal(types.StagePending, got.Stage)
	s.Equal(1, got.Checks)

	f.gw.setPositions(types.Position{
		ID: "P1", TokenAddress: testToken, TokenSymbol: "XYZ",
		Amount: 100, Address: testAddress, StakedAt: time.Now().Unix(),
	})
	f.poller.tick(context.Background(), testAddress)

	got, _ = f.book.Get(tx.ID)
	s.Equal(types.StageCompleted, got.Stage)

	markers, err := f.markers.List(context.Background(), testAddress)
	s.NoError(err)
	s.Empty(markers)
}

func (s *UnitTestSuite) TestStakeMatchTolerance() {
	f := newFixture()
	tx := f.pendingStake("tx-1", 100)

	// 1% under the submitted amount still matches.
	f.gw.setPositions(types.Position{ID: "P1", TokenAddress: testToken, Amount: 99.0, Address: testAddress})
	f.poller.tick(context.Background(), testAddress)
	got, _ := f.book.Get(tx.ID)
	s.Equal(types.StageCompleted, got.Stage)

	// More than 1% under does not.
	f2 := newFixture()
	tx2 := f2.pendingStake("tx-2", 100)
	f2.gw.setPositions(types.Position{ID: "P1", TokenAddress: testToken, Amount: 98.0, Address: testAddress})
	f2.poller.tick(context.Background(), testAddress)
	got2, _ := f2.book.Get(tx2.ID)
	s.Equal(types.StagePending, got2.Stage)

	// An amount that grew past the submission matches too.
	f3 := newFixture()
	tx3 := f3.pendingStake("tx-3", 100)
	f3.gw.setPositions(types.Position{ID: "P1", TokenAddress: testToken, Amount: 100.7, Address: testAddress})
	f3.poller.tick(context.Background(), testAddress)
	got3, _ := f3.book.Get(tx3.ID)
	s.Equal(types.StageCompleted, got3.Stage)
}

func (s *UnitTestSuite) TestUnstakeCompletesWhenPositionDisappears() {
	f := newFixture()
	tx := types.Transaction{
		ID: "tx-u1", Kind: types.TxUnstake, TokenAddress: testToken,
		Amount: 50, Address: testAddress, PositionID: "P1",
		CreatedAt: time.Now().Unix(), Stage: types.StagePending,
	}
	f.book.Track(tx)

	// Position still present: pending.
	f.gw.setPositions(types.Position{ID: "P1", TokenAddress: testToken, Amount: 50, Address: testAddress})
	f.poller.tick(context.Background(), testAddress)
	got, _ := f.book.Get(tx.ID)
	s.Equal(types.StagePending, got.Stage)

	f.gw.setPositions()
	f.poller.tick(context.Background(), testAddress)
	got, _ = f.book.Get(tx.ID)
	s.Equal(types.StageCompleted, got.Stage)
}

func (s *UnitTestSuite) TestFailureRecordFailsTransaction() {
	f := newFixture()
	tx := f.pendingStake("tx-1", 100)
	failedAt := time.Now().Unix() - 5
	f.gw.setFailures(types.FailureRecord{Reference: tx.ID, Reason: "insufficient balance", FailedAt: failedAt})

	f.poller.tick(context.Background(), testAddress)

	got, _ := f.book.Get(tx.ID)
	s.Equal(types.StageFailed, got.Stage)
	s.Equal("insufficient balance", got.FailReason)
	s.Equal(failedAt, got.FailedAt)
}

func (s *UnitTestSuite) TestUnrelatedFailureRecordIgnored() {
	f := newFixture()
	tx := f.pendingStake("tx-1", 100)
	f.gw.setFailures(types.FailureRecord{Reference: "someone-else", Reason: "nope"})

	f.poller.tick(context.Background(), testAddress)

	got, _ := f.book.Get(tx.ID)
	s.Equal(types.StagePending, got.Stage)
}

func (s *UnitTestSuite) TestFlakyCheckLeavesPending() {
	f := newFixture()
	tx := f.pendingStake("tx-1", 100)
	f.gw.setQueryErr(fmt.Errorf("node unreachable"))

	f.poller.tick(context.Background(), testAddress)

	got, _ := f.book.Get(tx.ID)
	s.Equal(types.StagePending, got.Stage)
	s.Empty(got.FailReason)
}

func (s *UnitTestSuite) TestTerminalTransitionHappensOnce() {
	f := newFixture()
	tx := f.pendingStake("tx-1", 100)

	events, cancel := f.bus.Subscribe()
	defer cancel()

	f.gw.setPositions(types.Position{ID: "P1", TokenAddress: testToken, Amount: 100, Address: testAddress})
	f.poller.tick(context.Background(), testAddress)
	f.poller.tick(context.Background(), testAddress)
	f.poller.FailNow(context.Background(), tx.ID, "late failure")

	// Completed record is immutable: the late failure did not overwrite it.
	got, _ := f.book.Get(tx.ID)
	s.Equal(types.StageCompleted, got.Stage)
	s.Empty(got.FailReason)

	// Exactly one notification went out.
	var count int
	for {
		select {
		case e := <-events:
			s.Equal(EventStakeCompleted, e.Type)
			s.Equal(tx.ID, e.TxID)
			count++
			continue
		default:
		}
		break
	}
	s.Equal(1, count)
}

func (s *UnitTestSuite) TestFailedRecordKeepsOriginalReason() {
	f := newFixture()
	tx := f.pendingStake("tx-1", 100)

	f.poller.FailNow(context.Background(), tx.ID, "first reason")
	first, _ := f.book.Get(tx.ID)

	f.poller.FailNow(context.Background(), tx.ID, "second reason")
	second, _ := f.book.Get(tx.ID)

	s.Equal("first reason", second.FailReason)
	s.Equal(first.FailedAt, second.FailedAt)
}

func (s *UnitTestSuite) TestPollingLoopSelfStops() {
	f := newFixture()
	f.poller.interval = 20 * time.Millisecond
	f.pendingStake("tx-1", 100)

	f.poller.StartPolling(testAddress)
	s.True(f.poller.Polling(testAddress))

	f.gw.setPositions(types.Position{ID: "P1", TokenAddress: testToken, Amount: 100, Address: testAddress})

	s.Eventually(func() bool { return !f.poller.Polling(testAddress) }, 2*time.Second, 10*time.Millisecond)
	got, _ := f.book.Get("tx-1")
	s.Equal(types.StageCompleted, got.Stage)
}

func (s *UnitTestSuite) TestStartPollingIsIdempotent() {
	f := newFixture()
	f.pendingStake("tx-1", 100)

	f.poller.StartPolling(testAddress)
	f.poller.StartPolling(testAddress)
	s.True(f.poller.Polling(testAddress))

	f.poller.StopPolling(testAddress)
	s.False(f.poller.Polling(testAddress))
	// Stopping again is harmless.
	f.poller.StopPolling(testAddress)
}

func (s *UnitTestSuite) TestCheckNowWithoutLoopRunsInline() {
	f := newFixture()
	tx := f.pendingStake("tx-1", 100)
	f.gw.setPositions(types.Position{ID: "P1", TokenAddress: testToken, Amount: 100, Address: testAddress})

	s.False(f.poller.Polling(testAddress))
	f.poller.CheckNow(context.Background(), testAddress)

	got, _ := f.book.Get(tx.ID)
	s.Equal(types.StageCompleted, got.Stage)
}

func (s *UnitTestSuite) TestResumeFromMarkers() {
	f := newFixture()
	_ = f.markers.Put(context.Background(), types.PendingStake{
		ID: "tx-r1", Address: testAddress, Kind: types.TxStake,
		TokenAddress: testToken, TokenSymbol: "XYZ", Amount: 75,
		CreatedAt: time.Now().Unix(),
	})

	s.NoError(f.poller.ResumeFromMarkers(context.Background()))

	got, ok := f.book.Get("tx-r1")
	s.True(ok)
	s.Equal(types.StagePending, got.Stage)
	s.InDelta(75, got.Amount, 1e-9)
	s.True(f.poller.Polling(testAddress))
	f.poller.StopPolling(testAddress)
}
