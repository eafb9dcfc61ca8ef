package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Verification outcomes. Callers outside the core only ever see
// ErrInvalidToken; these exist for internal diagnostics and tests.
var (
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenBadSignature = errors.New("token signature invalid")
	ErrTokenTypeMismatch = errors.New("token type mismatch")
	ErrTokenMalformed    = errors.New("token malformed")
)

// Claims is the signed payload of every token this service issues.
// Access tokens carry the identity claims downstream consumers need so
// verification does not require a store lookup; refresh tokens carry
// only the subject.
type Claims struct {
	TokenType TokenType `json:"typ"`
	Username  string    `json:"username,omitempty"`
	Email     string    `json:"email,omitempty"`
	Active    bool      `json:"active,omitempty"`
	jwt.RegisteredClaims
}

// CodecConfig is fixed at construction. The signing secret and
// algorithm are process-wide; Leeway applies to expiry checks only.
type CodecConfig struct {
	Secret []byte
	Leeway time.Duration
}

// Codec signs and verifies the compact token format. Issuance and
// verification are pure computations and safe for concurrent use.
type Codec struct {
	secret []byte
	leeway time.Duration
	now    func() time.Time
}

func NewCodec(cfg CodecConfig) *Codec {
	return &Codec{
		secret: cfg.Secret,
		leeway: cfg.Leeway,
		now:    time.Now,
	}
}

// Issue signs claims as a token of the given type valid for lifetime.
// Timestamps are whole-second UTC; exp-iat always equals lifetime.
func (c *Codec) Issue(claims Claims, typ TokenType, lifetime time.Duration) (string, error) {
	now := c.now().UTC().Truncate(time.Second)

	jti, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate token id: %w", err)
	}

	claims.TokenType = typ
	claims.ID = jti.String()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(lifetime))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	encoded, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return encoded, nil
}

// Verify checks signature, expiry and the type discriminator, in that
// order. A refresh token is never accepted where an access token is
// expected, and vice versa.
func (c *Codec) Verify(tokenStr string, expected TokenType) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(c.leeway),
		jwt.WithTimeFunc(func() time.Time { return c.now().UTC() }),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenBadSignature
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrTokenMalformed
		default:
			return nil, ErrTokenMalformed
		}
	}
	if !token.Valid {
		return nil, ErrTokenBadSignature
	}

	if claims.TokenType != expected {
		return nil, ErrTokenTypeMismatch
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

func registeredSubject(accountID string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{Subject: accountID}
}

// VerifyAny accepts either token type, for operations like logout where
// the caller may present an access or a refresh token.
func (c *Codec) VerifyAny(tokenStr string) (*Claims, error) {
	claims, err := c.Verify(tokenStr, TokenTypeAccess)
	if errors.Is(err, ErrTokenTypeMismatch) {
		return c.Verify(tokenStr, TokenTypeRefresh)
	}
	return claims, err
}
