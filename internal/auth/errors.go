package auth

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials covers unknown identifier, inactive account
	// and wrong password alike, so callers cannot enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken covers malformed, expired, wrong-type, bad-signature
	// and revoked tokens. The sub-reason is logged, never returned.
	ErrInvalidToken = errors.New("invalid token")

	// ErrStoreUnavailable marks a transient credential-store failure.
	// The whole operation is safe to retry.
	ErrStoreUnavailable = errors.New("credential store unavailable")
)

// RateLimitedError is returned while an account is locked out.
type RateLimitedError struct {
	Until time.Time
}

func (e RateLimitedError) Error() string {
	return "login temporarily locked"
}

// storeErr converts a repository failure into the transient taxonomy
// kind unless it already is a taxonomy error.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
