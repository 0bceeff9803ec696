package staking

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"stakedeck/internal/compute"
	"stakedeck/internal/types"
)

// fetchPositions queries the compute process for the user's position list.
// The poller passes ttl 0 to force a fresh read each tick; the read API uses
// a short TTL to spare the limiter on dashboard refreshes.
func fetchPositions(ctx context.Context, co *compute.Coordinator, process, address string, ttl time.Duration) ([]types.Position, error) {
	res, err := co.Execute(ctx, compute.Request{
		Target: process,
		Tags: []types.Tag{
			{Name: "Action", Value: "Get-Positions"},
			{Name: "Staker", Value: address},
		},
		CacheTTL: ttl,
		UserKey:  address,
	})
	if err != nil {
		return nil, err
	}
	data := res.FirstData()
	if data == "" {
		return nil, nil
	}
	var positions []types.Position
	if err := json.Unmarshal([]byte(data), &positions); err != nil {
		return nil, fmt.Errorf("decode positions: %w", err)
	}
	return positions, nil
}

// fetchFailedOperations queries the failed-operations record source. Records
// carry the Reference tag value attached to the original signed submission,
// which is how a local transaction id finds its failure.
func fetchFailedOperations(ctx context.Context, co *compute.Coordinator, process, address string) ([]types.FailureRecord, error) {
	res, err := co.Execute(ctx, compute.Request{
		Target: process,
		Tags: []types.Tag{
			{Name: "Action", Value: "Get-Failed-Operations"},
			{Name: "Staker", Value: address},
		},
		UserKey: address,
	})
	if err != nil {
		return nil, err
	}
	data := res.FirstData()
	if data == "" {
		return nil, nil
	}
	var records []types.FailureRecord
	if err := json.Unmarshal([]byte(data), &records); err != nil {
		return nil, fmt.Errorf("decode failed operations: %w", err)
	}
	return records, nil
}

// buildDashboard derives the per-user summary from a position list.
func buildDashboard(address string, positions []types.Position, vestingDays int, now int64) types.Dashboard {
	d := types.Dashboard{
		Address:       address,
		PositionCount: len(positions),
		UpdatedAt:     now,
	}
	var weighted float64
	for _, p := range positions {
		d.TotalStaked += p.Amount
		weighted += p.Amount * CoverageAt(p.StakedAt, now, vestingDays)
	}
	if d.TotalStaked > 0 {
		d.Coverage = weighted / d.TotalStaked
	}
	return d
}
