package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"stakedeck/internal/types"
)

const sessionKeyNameTemplate = "_stakedeck_session_%s"

// SessionStore implements ports.SessionStore with redis key TTLs doing the
// expiry work.
type SessionStore struct {
	cli *redis.Client
}

func NewSessionStore(cli *redis.Client) *SessionStore {
	return &SessionStore{cli: cli}
}

func (s *SessionStore) Put(ctx context.Context, session types.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	ttl := time.Until(time.Unix(session.ExpiresAt, 0))
	if ttl <= 0 {
		return types.Err(types.ErrInvalidRequest, nil, "session already expired")
	}
	return s.cli.Set(ctx, getSessionKeyName(session.Token), string(raw), ttl).Err()
}

func (s *SessionStore) Get(ctx context.Context, token string) (types.Session, error) {
	out := s.cli.Get(ctx, getSessionKeyName(token))
	if out.Err() != nil {
		if errors.Is(out.Err(), redis.Nil) {
			return types.Session{}, types.ErrNotFound
		}
		return types.Session{}, out.Err()
	}
	var session types.Session
	if err := json.Unmarshal([]byte(out.Val()), &session); err != nil {
		return types.Session{}, err
	}
	return session, nil
}

func (s *SessionStore) Delete(ctx context.Context, token string) error {
	return s.cli.Del(ctx, getSessionKeyName(token)).Err()
}

func getSessionKeyName(token string) string {
	return fmt.Sprintf(sessionKeyNameTemplate, token)
}
