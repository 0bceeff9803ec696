// Package mem provides in-process store implementations. They back local
// development and tests; state does not survive a restart.
package mem

import (
	"context"
	"sort"
	"sync"

	"stakedeck/internal/types"
)

// StakeStore implements ports.PendingStakeStore in memory.
type StakeStore struct {
	mu      sync.RWMutex
	markers map[string]map[string]types.PendingStake // address → id → marker
}

func NewStakeStore() *StakeStore {
	return &StakeStore{markers: map[string]map[string]types.PendingStake{}}
}

func (s *StakeStore) List(_ context.Context, address string) ([]types.PendingStake, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.PendingStake, 0, len(s.markers[address]))
	for _, m := range s.markers[address] {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out, nil
}

func (s *StakeStore) Put(_ context.Context, marker types.PendingStake) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID := s.markers[marker.Address]
	if byID == nil {
		byID = map[string]types.PendingStake{}
		s.markers[marker.Address] = byID
	}
	byID[marker.ID] = marker
	return nil
}

func (s *StakeStore) Delete(_ context.Context, address, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if byID := s.markers[address]; byID != nil {
		delete(byID, id)
		if len(byID) == 0 {
			delete(s.markers, address)
		}
	}
	return nil
}

func (s *StakeStore) Addresses(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.markers))
	for address := range s.markers {
		out = append(out, address)
	}
	sort.Strings(out)
	return out, nil
}

// SessionStore implements ports.SessionStore in memory. Expiry is enforced by
// the session manager, not here.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]types.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: map[string]types.Session{}}
}

func (s *SessionStore) Put(_ context.Context, session types.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.Token] = session
	return nil
}

func (s *SessionStore) Get(_ context.Context, token string) (types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[token]
	if !ok {
		return types.Session{}, types.ErrNotFound
	}
	return session, nil
}

func (s *SessionStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

// ReferralStore implements ports.ReferralStore in memory.
type ReferralStore struct {
	mu       sync.RWMutex
	accounts map[string]types.ReferralAccount // subject → account
	byCode   map[string]string                // code → subject
}

func NewReferralStore() *ReferralStore {
	return &ReferralStore{
		accounts: map[string]types.ReferralAccount{},
		byCode:   map[string]string{},
	}
}

func (s *ReferralStore) Get(_ context.Context, subject string) (types.ReferralAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[subject]
	if !ok {
		return types.ReferralAccount{}, types.ErrNotFound
	}
	return account, nil
}

func (s *ReferralStore) GetByCode(_ context.Context, code string) (types.ReferralAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subject, ok := s.byCode[code]
	if !ok {
		return types.ReferralAccount{}, types.ErrNotFound
	}
	return s.accounts[subject], nil
}

func (s *ReferralStore) Create(_ context.Context, account types.ReferralAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[account.Subject]; exists {
		return types.ErrConflict
	}
	if _, taken := s.byCode[account.Code]; taken {
		return types.Err(types.ErrConflict, nil, "code %s already taken", account.Code)
	}
	s.accounts[account.Subject] = account
	s.byCode[account.Code] = account.Subject
	return nil
}

func (s *ReferralStore) SetWallet(_ context.Context, subject, wallet string) error {
	return s.update(subject, func(a *types.ReferralAccount) { a.Wallet = wallet })
}

func (s *ReferralStore) SetReferredBy(_ context.Context, subject, code string) error {
	return s.update(subject, func(a *types.ReferralAccount) { a.ReferredBy = code })
}

func (s *ReferralStore) IncrementReferrals(_ context.Context, subject string, points int) error {
	return s.update(subject, func(a *types.ReferralAccount) {
		a.Referrals++
		a.Points += points
	})
}

func (s *ReferralStore) update(subject string, apply func(*types.ReferralAccount)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[subject]
	if !ok {
		return types.ErrNotFound
	}
	apply(&account)
	s.accounts[subject] = account
	return nil
}
