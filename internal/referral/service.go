package referral

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"stakedeck/internal/ports"
	"stakedeck/internal/types"
)

// PointsPerReferral is the reward credited to the referrer per accepted
// referral. Tunable.
const PointsPerReferral = 100

const codeLength = 8

// codeAlphabet avoids 0/O and 1/I lookalikes; codes are read aloud and typed.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Service implements the referral/rewards flow. Authentication happens at
// the social-login provider; this layer only ever sees the opaque subject id
// the gateway verified.
type Service struct {
	store ports.ReferralStore
	now   func() time.Time
}

func NewService(store ports.ReferralStore) *Service {
	return &Service{store: store, now: time.Now}
}

// Register enrolls a subject, generating its referral code. Registering an
// already-enrolled subject returns the existing account unchanged.
func (s *Service) Register(ctx context.Context, subject string) (types.ReferralAccount, error) {
	if subject == "" {
		return types.ReferralAccount{}, types.Err(types.ErrInvalidRequest, nil, "subject is required")
	}
	account := types.ReferralAccount{
		Subject:   subject,
		Code:      newCode(),
		CreatedAt: s.now().Unix(),
	}
	err := s.store.Create(ctx, account)
	if errors.Is(err, types.ErrConflict) {
		return s.store.Get(ctx, subject)
	}
	if err != nil {
		return types.ReferralAccount{}, err
	}
	log.WithFields(log.Fields{"subject": subject, "code": account.Code}).Info("referral account created")
	return account, nil
}

// LinkWallet binds a wallet address to the account. Relinking the same
// address is a no-op; a different address is rejected rather than silently
// replacing the one rewards accrue to.
func (s *Service) LinkWallet(ctx context.Context, subject, address string) error {
	address = strings.TrimSpace(address)
	if subject == "" || address == "" {
		return types.Err(types.ErrInvalidRequest, nil, "subject and address are required")
	}
	account, err := s.store.Get(ctx, subject)
	if err != nil {
		return err
	}
	if account.Wallet != "" {
		if strings.EqualFold(account.Wallet, address) {
			return nil
		}
		return types.Err(types.ErrWalletLinked, nil, "subject already linked to %s", account.Wallet)
	}
	return s.store.SetWallet(ctx, subject, address)
}

// Use records that newSubject was referred by code and credits the referrer.
// Self-referral and re-use by an already-referred subject are rejected.
func (s *Service) Use(ctx context.Context, code, newSubject string) error {
	if code == "" || newSubject == "" {
		return types.Err(types.ErrInvalidRequest, nil, "code and subject are required")
	}
	referrer, err := s.store.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	if referrer.Subject == newSubject {
		return types.ErrSelfReferral
	}
	account, err := s.store.Get(ctx, newSubject)
	if err != nil {
		return err
	}
	if account.ReferredBy != "" {
		return types.ErrCodeUsed
	}
	if err := s.store.SetReferredBy(ctx, newSubject, code); err != nil {
		return err
	}
	if err := s.store.IncrementReferrals(ctx, referrer.Subject, PointsPerReferral); err != nil {
		return fmt.Errorf("credit referrer: %w", err)
	}
	log.WithFields(log.Fields{"code": code, "subject": newSubject}).Info("referral recorded")
	return nil
}

// Stats returns the read model for the dashboard.
func (s *Service) Stats(ctx context.Context, subject string) (types.ReferralStats, error) {
	account, err := s.store.Get(ctx, subject)
	if err != nil {
		return types.ReferralStats{}, err
	}
	return types.ReferralStats{
		Code:      account.Code,
		Wallet:    account.Wallet,
		Referrals: account.Referrals,
		Points:    account.Points,
	}, nil
}

func newCode() string {
	buf := make([]byte, codeLength)
	// crypto/rand.Read only fails when the platform entropy source is broken
	_, _ = rand.Read(buf)
	out := make([]byte, codeLength)
	for i, b := range buf {
		out[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(out)
}
