package ports

import (
	"context"

	"stakedeck/internal/types"
)

// ReferralStore persists referral accounts in the hosted backend.
// Implementations MUST make Create conditional (no overwrite of an existing
// subject) and IncrementReferrals atomic.
type ReferralStore interface {
	// Get returns the account for a subject.
	// MUST return types.ErrNotFound if the subject is unknown.
	Get(ctx context.Context, subject string) (types.ReferralAccount, error)

	// GetByCode resolves a referral code to its owning account.
	// MUST return types.ErrNotFound for unknown codes.
	GetByCode(ctx context.Context, code string) (types.ReferralAccount, error)

	// Create stores a new account. MUST return types.ErrConflict when the
	// subject already exists.
	Create(ctx context.Context, account types.ReferralAccount) error

	// SetWallet records the linked wallet for a subject.
	SetWallet(ctx context.Context, subject, wallet string) error

	// SetReferredBy records which code referred the subject.
	SetReferredBy(ctx context.Context, subject, code string) error

	// IncrementReferrals bumps the referrer's counters by one referral and
	// the given reward points.
	IncrementReferrals(ctx context.Context, subject string, points int) error
}
