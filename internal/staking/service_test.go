package staking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stakedeck/internal/types"
)

func (s *UnitTestSuite) TestStakeSubmitsAndTracks() {
	f := newFixture()

	tx, err := f.svc.Stake(context.Background(), testAddress, testToken, 100)
	s.NoError(err)
	s.NotEmpty(tx.ID)
	s.Equal(types.TxStake, tx.Kind)
	s.Equal(types.StagePending, tx.Stage)
	s.Equal(testToken, tx.TokenAddress)
	s.Equal("XYZ", tx.TokenSymbol)

	// Tag contract: the local id rode along as Reference.
	s.Len(f.gw.submitted, 1)
	tags := f.gw.submitted[0]
	s.Equal("Stake", tagValue(tags, "Action"))
	s.Equal(testToken, tagValue(tags, "Token"))
	s.Equal("100", tagValue(tags, "Quantity"))
	s.Equal(tx.ID, tagValue(tags, "Reference"))

	got, ok := f.book.Get(tx.ID)
	s.True(ok)
	s.Equal(types.StagePending, got.Stage)

	markers, err := f.markers.List(context.Background(), testAddress)
	s.NoError(err)
	s.Len(markers, 1)
	s.Equal(tx.ID, markers[0].ID)

	s.True(f.poller.Polling(testAddress))
	f.poller.StopPolling(testAddress)
}

func (s *UnitTestSuite) TestStakeBySymbol() {
	f := newFixture()
	tx, err := f.svc.Stake(context.Background(), testAddress, "xyz", 5)
	s.NoError(err)
	s.Equal(testToken, tx.TokenAddress)
	f.poller.StopPolling(testAddress)
}

func (s *UnitTestSuite) TestStakeValidation() {
	f := newFixture()

	_, err := f.svc.Stake(context.Background(), testAddress, testToken, 0)
	s.True(errors.Is(err, types.ErrInvalidRequest))

	_, err = f.svc.Stake(context.Background(), testAddress, "unknown-token", 10)
	s.True(errors.Is(err, types.ErrInvalidRequest))

	_, err = f.svc.Stake(context.Background(), "", testToken, 10)
	s.True(errors.Is(err, types.ErrInvalidRequest))

	s.Empty(f.gw.submitted)
}

func (s *UnitTestSuite) TestStakeSubmitFailureFailsRecord() {
	f := newFixture()
	f.gw.submitErr = fmt.Errorf("signer rejected")

	tx, err := f.svc.Stake(context.Background(), testAddress, testToken, 100)
	s.Error(err)
	s.NotEmpty(tx.ID)
	s.Equal(types.StageFailed, tx.Stage)
	s.Contains(tx.FailReason, "submission failed")

	// The marker was cleared along with the terminal transition.
	markers, merr := f.markers.List(context.Background(), testAddress)
	s.NoError(merr)
	s.Empty(markers)
	s.False(f.poller.Polling(testAddress))
}

func (s *UnitTestSuite) TestUnstakeRequiresExistingPosition() {
	f := newFixture()

	_, err := f.svc.Unstake(context.Background(), testAddress, "no-such-position")
	s.True(errors.Is(err, types.ErrNotFound))
	s.Empty(f.gw.submitted)
}

func (s *UnitTestSuite) TestUnstakeSubmitsPositionRelease() {
	f := newFixture()
	f.gw.setPositions(types.Position{
		ID: "P1", TokenAddress: testToken, TokenSymbol: "XYZ",
		Amount: 40, Address: testAddress, StakedAt: time.Now().Unix(),
	})

	tx, err := f.svc.Unstake(context.Background(), testAddress, "P1")
	s.NoError(err)
	s.Equal(types.TxUnstake, tx.Kind)
	s.Equal("P1", tx.PositionID)
	s.InDelta(40, tx.Amount, 1e-9)

	tags := f.gw.submitted[0]
	s.Equal("Unstake", tagValue(tags, "Action"))
	s.Equal("P1", tagValue(tags, "Position"))
	s.Equal(tx.ID, tagValue(tags, "Reference"))
	f.poller.StopPolling(testAddress)
}

func (s *UnitTestSuite) TestTransactionsSortedOldestFirst() {
	f := newFixture()
	now := time.Now().Unix()
	f.book.Track(types.Transaction{ID: "b", Address: testAddress, CreatedAt: now, Stage: types.StagePending})
	f.book.Track(types.Transaction{ID: "a", Address: testAddress, CreatedAt: now - 10, Stage: types.StagePending})
	f.book.Track(types.Transaction{ID: "other", Address: "someone-else", CreatedAt: now - 20, Stage: types.StagePending})

	txs := f.svc.Transactions(testAddress)
	s.Len(txs, 2)
	s.Equal("a", txs[0].ID)
	s.Equal("b", txs[1].ID)
}

func (s *UnitTestSuite) TestRemoveCompletedKeepsPending() {
	f := newFixture()
	f.book.Track(types.Transaction{ID: "p", Address: testAddress, Stage: types.StagePending})
	f.book.Track(types.Transaction{ID: "c", Address: testAddress, Stage: types.StageCompleted})
	f.book.Track(types.Transaction{ID: "f", Address: testAddress, Stage: types.StageFailed})

	s.Equal(2, f.svc.RemoveCompleted(testAddress))
	s.Len(f.svc.Transactions(testAddress), 1)

	s.True(f.svc.Remove("p"))
	s.False(f.svc.Remove("p"))
}

func (s *UnitTestSuite) TestDashboardAggregates() {
	f := newFixture()
	now := time.Now().Unix()
	day := int64(24 * 60 * 60)
	f.gw.setPositions(
		types.Position{ID: "P1", TokenAddress: testToken, Amount: 100, Address: testAddress, StakedAt: now - 15*day},
		types.Position{ID: "P2", TokenAddress: testToken, Amount: 300, Address: testAddress, StakedAt: now - 60*day},
	)

	d, err := f.svc.Dashboard(context.Background(), testAddress)
	s.NoError(err)
	s.Equal(2, d.PositionCount)
	s.InDelta(400, d.TotalStaked, 1e-9)
	// P1 is half-vested, P2 fully vested: (100*0.5 + 300*1) / 400
	s.InDelta(0.875, d.Coverage, 0.01)
}
