package ports

import (
	"context"

	"stakedeck/internal/types"
)

// SessionStore tracks wallet sessions. Entries expire on their own; Get MUST
// return types.ErrSessionExpired (or types.ErrNotFound) once past expiry.
type SessionStore interface {
	Put(ctx context.Context, session types.Session) error
	Get(ctx context.Context, token string) (types.Session, error)
	Delete(ctx context.Context, token string) error
}
