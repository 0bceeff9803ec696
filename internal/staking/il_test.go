package staking

func (s *UnitTestSuite) TestCoverageVestsLinearly() {
	day := int64(24 * 60 * 60)
	stakedAt := int64(1_700_000_000)

	s.InDelta(0, CoverageAt(stakedAt, stakedAt, 30), 1e-9)
	s.InDelta(0.5, CoverageAt(stakedAt, stakedAt+15*day, 30), 1e-9)
	s.InDelta(1, CoverageAt(stakedAt, stakedAt+30*day, 30), 1e-9)
	s.InDelta(1, CoverageAt(stakedAt, stakedAt+90*day, 30), 1e-9)

	// Clock skew or bad input never yields negative coverage.
	s.InDelta(0, CoverageAt(stakedAt, stakedAt-day, 30), 1e-9)
	s.InDelta(0, CoverageAt(stakedAt, stakedAt+day, 0), 1e-9)
}

func (s *UnitTestSuite) TestBookTransitionsOnce() {
	b := NewBook()
	b.Track(txPending("tx-1"))

	tx, ok := b.MarkCompleted("tx-1")
	s.True(ok)
	s.True(tx.Stage.Terminal())

	_, ok = b.MarkCompleted("tx-1")
	s.False(ok)
	_, ok = b.MarkFailed("tx-1", "late", 1)
	s.False(ok)

	_, ok = b.MarkCompleted("missing")
	s.False(ok)
}
