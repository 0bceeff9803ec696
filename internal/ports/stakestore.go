package ports

import (
	"context"

	"stakedeck/internal/types"
)

// PendingStakeStore persists the pending-stake markers used to decide whether
// polling should resume after a restart. It is a convenience cache, not
// authoritative transaction state; losing it only delays resolution until the
// user acts again.
type PendingStakeStore interface {
	// List returns all markers for an address, oldest first.
	List(ctx context.Context, address string) ([]types.PendingStake, error)

	Put(ctx context.Context, marker types.PendingStake) error

	// Delete removes one marker by (address, id). Missing markers are not
	// an error.
	Delete(ctx context.Context, address, id string) error

	// Addresses lists addresses that currently have markers.
	Addresses(ctx context.Context) ([]string, error)
}
