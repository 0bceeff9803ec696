package types

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNoSubmissionID means a signed submission settled without producing a
	// submission identifier; the result await is never attempted in that case.
	ErrNoSubmissionID = errors.New("no submission id")

	// ErrQueueEvicted is delivered to the oldest queued caller when the
	// dispatch queue overflows. The caller never started a network call.
	ErrQueueEvicted = errors.New("evicted from dispatch queue")

	ErrWalletLinked   = errors.New("wallet already linked")
	ErrSelfReferral   = errors.New("self referral")
	ErrCodeUsed       = errors.New("referral code already used")
	ErrSessionExpired = errors.New("session expired")

	ErrInvalidBackend = errors.New("invalid backend")
	ErrStoreAccess    = errors.New("store read/write error")
)

func Err(typedError error, innerErr error, msgTemplate string, args ...any) error {
	if msgTemplate == "" {
		return errors.Join(typedError, innerErr)
	}
	return errors.Join(typedError, innerErr, fmt.Errorf(msgTemplate, args...))
}
