package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// ErrAccountNotFound is internal-only: a verified token whose subject
// no longer resolves to an account surfaces to callers as
// ErrInvalidToken so account lifecycle state never leaks.
var ErrAccountNotFound = errors.New("account not found")

// CredentialStore is everything the session manager needs from the
// durable store. Implementations must keep the AttemptStore operations
// atomic per account.
type CredentialStore interface {
	AttemptStore
	FindAccount(ctx context.Context, identifier string) (Account, error)
	FindAccountByID(ctx context.Context, id string) (Account, error)
	EnsureAccount(ctx context.Context, username, email, passwordHash string) error
}

// RevocationLedger records revoked token ids. Revoke must be idempotent
// and atomic per token id.
type RevocationLedger interface {
	Revoke(ctx context.Context, record BlacklistedToken) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Service orchestrates the session lifecycle: authenticate, issue,
// refresh, revoke. All shared state lives behind the store interfaces;
// the service itself is safe for concurrent use once configured.
type Service struct {
	store      CredentialStore
	ledger     RevocationLedger
	codec      *Codec
	hasher     *Hasher
	guard      *Guard
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewService(store CredentialStore, ledger RevocationLedger, jwtSecret string) *Service {
	return &Service{
		store:      store,
		ledger:     ledger,
		codec:      NewCodec(CodecConfig{Secret: []byte(jwtSecret)}),
		hasher:     NewHasher(0),
		guard:      NewGuard(store, AttemptPolicy{}),
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
}

// WithSecurityConfig overrides the defaults. Call before serving; the
// service is not safe to reconfigure concurrently with requests.
func (s *Service) WithSecurityConfig(policy AttemptPolicy, accessTTL, refreshTTL, leeway time.Duration) {
	s.guard = NewGuard(s.store, policy)
	if accessTTL > 0 {
		s.accessTTL = accessTTL
	}
	if refreshTTL > 0 {
		s.refreshTTL = refreshTTL
	}
	if leeway > 0 {
		secret := s.codec.secret
		s.codec = NewCodec(CodecConfig{Secret: secret, Leeway: leeway})
	}
}

// Login authenticates by username or email. Lockout is checked before
// any bcrypt work; unknown identifier, inactive account and wrong
// password all return the same ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, identifier, password string) (TokenPair, error) {
	identifier = strings.TrimSpace(strings.ToLower(identifier))
	password = strings.TrimSpace(password)
	if identifier == "" || password == "" {
		return TokenPair{}, ErrInvalidCredentials
	}

	now := s.now().UTC()

	account, err := s.store.FindAccount(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, storeErr(err)
	}

	if !s.guard.IsAllowed(account, now) {
		return TokenPair{}, RateLimitedError{Until: *account.LockedUntil}
	}

	if !account.Active {
		return TokenPair{}, ErrInvalidCredentials
	}

	if !s.hasher.Verify(password, account.PasswordHash) {
		if _, err := s.guard.RecordFailure(ctx, account.ID, now); err != nil {
			return TokenPair{}, storeErr(err)
		}
		return TokenPair{}, ErrInvalidCredentials
	}

	if err := s.guard.RecordSuccess(ctx, account.ID, now); err != nil {
		return TokenPair{}, storeErr(err)
	}
	account.FailedAttempts = 0
	account.LockedUntil = nil
	account.LastLogin = &now

	return s.issueTokens(account)
}

// Refresh mints a new access token from a valid, non-revoked refresh
// token. Refresh tokens are not rotated: the presented token stays
// valid until its own expiry or an explicit logout.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (AccessGrant, error) {
	claims, err := s.codec.Verify(strings.TrimSpace(refreshToken), TokenTypeRefresh)
	if err != nil {
		return AccessGrant{}, ErrInvalidToken
	}

	revoked, err := s.ledger.IsRevoked(ctx, claims.ID)
	if err != nil {
		return AccessGrant{}, storeErr(err)
	}
	if revoked {
		return AccessGrant{}, ErrInvalidToken
	}

	account, err := s.store.FindAccountByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return AccessGrant{}, ErrInvalidToken
		}
		return AccessGrant{}, storeErr(err)
	}
	if !account.Active {
		return AccessGrant{}, ErrInvalidToken
	}

	access, err := s.issueAccessToken(account)
	if err != nil {
		return AccessGrant{}, err
	}

	return AccessGrant{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.accessTTL.Seconds()),
	}, nil
}

// Logout revokes the presented token, access or refresh. Revocation is
// idempotent: logging out an already-revoked token succeeds.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.codec.VerifyAny(strings.TrimSpace(token))
	if err != nil {
		return ErrInvalidToken
	}

	record := BlacklistedToken{
		TokenID:   claims.ID,
		AccountID: claims.Subject,
		RevokedAt: s.now().UTC(),
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if err := s.ledger.Revoke(ctx, record); err != nil {
		return storeErr(err)
	}

	return nil
}

// CurrentIdentity resolves an access token to the identity embedded in
// its claims. No store lookup beyond the revocation check; the password
// hash is never part of the claims.
func (s *Service) CurrentIdentity(ctx context.Context, accessToken string) (AccountSummary, error) {
	claims, err := s.codec.Verify(strings.TrimSpace(accessToken), TokenTypeAccess)
	if err != nil {
		return AccountSummary{}, ErrInvalidToken
	}

	revoked, err := s.ledger.IsRevoked(ctx, claims.ID)
	if err != nil {
		return AccountSummary{}, storeErr(err)
	}
	if revoked {
		return AccountSummary{}, ErrInvalidToken
	}

	return AccountSummary{
		ID:       claims.Subject,
		Username: claims.Username,
		Email:    claims.Email,
		Active:   claims.Active,
	}, nil
}

// BootstrapFromEnv seeds a single account from environment values at
// startup. All three values must be present together.
func (s *Service) BootstrapFromEnv(ctx context.Context, username, email, password string) error {
	username = strings.TrimSpace(strings.ToLower(username))
	email = strings.TrimSpace(strings.ToLower(email))
	password = strings.TrimSpace(password)

	if username == "" && email == "" && password == "" {
		return nil
	}
	if username == "" || email == "" || password == "" {
		return fmt.Errorf("ADMIN_USERNAME, ADMIN_EMAIL and ADMIN_PASSWORD are required together")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	if err := s.store.EnsureAccount(ctx, username, email, hash); err != nil {
		return storeErr(err)
	}

	return nil
}

func (s *Service) issueTokens(account Account) (TokenPair, error) {
	access, err := s.issueAccessToken(account)
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := s.codec.Issue(Claims{
		RegisteredClaims: registeredSubject(account.ID),
	}, TokenTypeRefresh, s.refreshTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL.Seconds()),
		Account:      account.Summary(),
	}, nil
}

func (s *Service) issueAccessToken(account Account) (string, error) {
	access, err := s.codec.Issue(Claims{
		Username:         account.Username,
		Email:            account.Email,
		Active:           account.Active,
		RegisteredClaims: registeredSubject(account.ID),
	}, TokenTypeAccess, s.accessTTL)
	if err != nil {
		return "", fmt.Errorf("issue access token: %w", err)
	}
	return access, nil
}
