package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"stakedeck/internal/types"
)

const (
	stakeKeyNameTemplate = "_stakedeck_pending_%s" // hash: tx id → marker JSON
	stakeKeyScanPattern  = "_stakedeck_pending_*"
)

// StakeStore implements ports.PendingStakeStore using one hash per address,
// field per marker.
type StakeStore struct {
	cli *redis.Client
}

func NewStakeStore(cli *redis.Client) *StakeStore {
	return &StakeStore{cli: cli}
}

func (s *StakeStore) List(ctx context.Context, address string) ([]types.PendingStake, error) {
	out := s.cli.HGetAll(ctx, getStakeKeyName(address))
	if out.Err() != nil {
		if errors.Is(out.Err(), redis.Nil) {
			return nil, nil
		}
		return nil, out.Err()
	}
	markers := make([]types.PendingStake, 0, len(out.Val()))
	for _, raw := range out.Val() {
		var m types.PendingStake
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("invalid pending-stake marker: %w", err)
		}
		markers = append(markers, m)
	}
	sortMarkers(markers)
	return markers, nil
}

func (s *StakeStore) Put(ctx context.Context, marker types.PendingStake) error {
	raw, err := json.Marshal(marker)
	if err != nil {
		return err
	}
	return s.cli.HSet(ctx, getStakeKeyName(marker.Address), marker.ID, string(raw)).Err()
}

func (s *StakeStore) Delete(ctx context.Context, address, id string) error {
	return s.cli.HDel(ctx, getStakeKeyName(address), id).Err()
}

func (s *StakeStore) Addresses(ctx context.Context) ([]string, error) {
	out := s.cli.Keys(ctx, stakeKeyScanPattern)
	if out.Err() != nil {
		return nil, out.Err()
	}
	prefixLen := len(fmt.Sprintf(stakeKeyNameTemplate, ""))
	addresses := make([]string, 0, len(out.Val()))
	for _, k := range out.Val() {
		if len(k) > prefixLen {
			addresses = append(addresses, k[prefixLen:])
		}
	}
	return addresses, nil
}

func getStakeKeyName(address string) string {
	return fmt.Sprintf(stakeKeyNameTemplate, address)
}

func sortMarkers(markers []types.PendingStake) {
	// insertion sort; marker sets are tiny
	for i := 1; i < len(markers); i++ {
		for j := i; j > 0 && markers[j].CreatedAt < markers[j-1].CreatedAt; j-- {
			markers[j], markers[j-1] = markers[j-1], markers[j]
		}
	}
}
