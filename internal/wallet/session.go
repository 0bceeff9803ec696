package wallet

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"stakedeck/internal/ports"
	"stakedeck/internal/types"
)

// Manager issues and resolves wallet sessions. The extension-side permission
// ceremony (connect, getActiveAddress) is the external collaborator; by the
// time a request reaches this layer the gateway has a verified address.
type Manager struct {
	store ports.SessionStore
	ttl   time.Duration
	now   func() time.Time
}

func NewManager(store ports.SessionStore, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = types.DefaultSessionTTL
	}
	return &Manager{store: store, ttl: ttl, now: time.Now}
}

// Connect issues a session for the address.
func (m *Manager) Connect(ctx context.Context, address string) (types.Session, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return types.Session{}, types.Err(types.ErrInvalidRequest, nil, "address is required")
	}
	now := m.now()
	session := types.Session{
		Token:     uuid.NewString(),
		Address:   address,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(m.ttl).Unix(),
	}
	if err := m.store.Put(ctx, session); err != nil {
		return types.Session{}, err
	}
	return session, nil
}

// Resolve validates a session token and returns its session.
func (m *Manager) Resolve(ctx context.Context, token string) (types.Session, error) {
	if token == "" {
		return types.Session{}, types.ErrSessionExpired
	}
	session, err := m.store.Get(ctx, token)
	if err != nil {
		return types.Session{}, err
	}
	if m.now().Unix() >= session.ExpiresAt {
		_ = m.store.Delete(ctx, token)
		return types.Session{}, types.ErrSessionExpired
	}
	return session, nil
}

// Disconnect revokes the session and returns the address it was bound to so
// the caller can stop polling for it.
func (m *Manager) Disconnect(ctx context.Context, token string) (string, error) {
	session, err := m.store.Get(ctx, token)
	if err != nil {
		return "", err
	}
	if err := m.store.Delete(ctx, token); err != nil {
		return "", err
	}
	return session.Address, nil
}
