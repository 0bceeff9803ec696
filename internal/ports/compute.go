package ports

import (
	"context"

	"stakedeck/internal/types"
)

// ComputeGateway is the raw transport to the external compute process. The
// process's message schema is owned by that collaborator; stakedeck only
// relies on named tags and the first message's Data payload.
//
// Implementations add no retry and no extra timeout: callers wrap with
// compute.Retry where retrying is wanted, and timeout semantics are whatever
// the underlying transport provides.
type ComputeGateway interface {
	// Query issues a read-only call against target.
	Query(ctx context.Context, target string, tags []types.Tag) (types.CallResult, error)

	// Submit sends a signed, state-changing message and returns its
	// submission identifier. An empty identifier with a nil error is
	// treated by callers as a submission failure.
	Submit(ctx context.Context, target string, tags []types.Tag) (string, error)

	// AwaitResult blocks until the submission identified by id settles
	// against the same target.
	AwaitResult(ctx context.Context, target string, id string) (types.CallResult, error)
}
