package auth

import "time"

// Account is the stored user record the core authenticates against.
// Lockout state lives on the row itself so failed-attempt bookkeeping
// and credential checks share one atomic unit.
type Account struct {
	ID              string
	Username        string
	Email           string
	PasswordHash    string
	FullName        *string
	Active          bool
	FailedAttempts  int
	LastFailedLogin *time.Time
	LockedUntil     *time.Time
	LastLogin       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Locked reports whether the account is still inside a lockout window.
func (a Account) Locked(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}

// AccountSummary is the caller-facing view of an account. It never
// carries the password hash.
type AccountSummary struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	FullName  *string    `json:"full_name,omitempty"`
	Active    bool       `json:"is_active"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// Summary builds the caller-facing view from a stored account.
func (a Account) Summary() AccountSummary {
	return AccountSummary{
		ID:        a.ID,
		Username:  a.Username,
		Email:     a.Email,
		FullName:  a.FullName,
		Active:    a.Active,
		LastLogin: a.LastLogin,
	}
}

type TokenPair struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	TokenType    string         `json:"token_type"`
	ExpiresIn    int64          `json:"expires_in"`
	Account      AccountSummary `json:"user"`
}

// AccessGrant is the result of a token refresh: a fresh access token
// without a new refresh token.
type AccessGrant struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// BlacklistedToken is one revocation-ledger entry. ExpiresAt is the
// revoked token's own expiry, kept so retention can prune rows that can
// no longer matter.
type BlacklistedToken struct {
	TokenID   string
	AccountID string
	RevokedAt time.Time
	ExpiresAt time.Time
}
