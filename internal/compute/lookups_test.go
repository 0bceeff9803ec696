package compute

import (
	"context"
	"fmt"

	"stakedeck/internal/types"
)

func (s *UnitTestSuite) TestBalanceLookup() {
	gw := &fakeGateway{
		queryFn: func(_ string, tags []types.Tag) (types.CallResult, error) {
			return tagResult("Balance", "123.5"), nil
		},
	}
	co := NewCoordinator(gw, wideOpen())

	v := co.Balance(context.Background(), testProcess, "addr-1")
	s.NotNil(v)
	s.InDelta(123.5, *v, 1e-9)
}

func (s *UnitTestSuite) TestBalanceUnknownIsNilNotZero() {
	gw := &fakeGateway{
		queryFn: func(string, []types.Tag) (types.CallResult, error) {
			return types.CallResult{}, fmt.Errorf("node unreachable")
		},
	}
	co := NewCoordinator(gw, wideOpen())
	s.Nil(co.Balance(context.Background(), testProcess, "addr-1"))

	// Present call, absent tag: still unknown.
	gw2 := &fakeGateway{
		queryFn: func(string, []types.Tag) (types.CallResult, error) {
			return tagResult("Other", "1"), nil
		},
	}
	co2 := NewCoordinator(gw2, wideOpen())
	s.Nil(co2.Balance(context.Background(), testProcess, "addr-1"))
}

func (s *UnitTestSuite) TestDenominationFallsBack() {
	gw := &fakeGateway{
		queryFn: func(string, []types.Tag) (types.CallResult, error) {
			return tagResult("Denomination", "9"), nil
		},
	}
	co := NewCoordinator(gw, wideOpen())
	s.Equal(9, co.Denomination(context.Background(), testProcess, 12))

	broken := &fakeGateway{
		queryFn: func(string, []types.Tag) (types.CallResult, error) {
			return types.CallResult{}, fmt.Errorf("node unreachable")
		},
	}
	co2 := NewCoordinator(broken, wideOpen())
	s.Equal(12, co2.Denomination(context.Background(), testProcess, 12))
}

func (s *UnitTestSuite) TestMaintenanceFailsClosed() {
	up := &fakeGateway{
		queryFn: func(string, []types.Tag) (types.CallResult, error) {
			return dataResult(`{"maintenance": false}`), nil
		},
	}
	s.False(NewCoordinator(up, wideOpen()).InMaintenance(context.Background(), testProcess))

	down := &fakeGateway{
		queryFn: func(string, []types.Tag) (types.CallResult, error) {
			return dataResult(`{"maintenance": true}`), nil
		},
	}
	s.True(NewCoordinator(down, wideOpen()).InMaintenance(context.Background(), testProcess))

	// Any failure reads as maintenance.
	broken := &fakeGateway{
		queryFn: func(string, []types.Tag) (types.CallResult, error) {
			return types.CallResult{}, fmt.Errorf("node unreachable")
		},
	}
	s.True(NewCoordinator(broken, wideOpen()).InMaintenance(context.Background(), testProcess))

	garbled := &fakeGateway{
		queryFn: func(string, []types.Tag) (types.CallResult, error) {
			return dataResult(`{"maintenance": "nope"}`), nil
		},
	}
	s.True(NewCoordinator(garbled, wideOpen()).InMaintenance(context.Background(), testProcess))
}
