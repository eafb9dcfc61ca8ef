package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestCodec(leeway time.Duration) *Codec {
	return NewCodec(CodecConfig{Secret: []byte(testSecret), Leeway: leeway})
}

func TestCodecRoundTrip(t *testing.T) {
	codec := newTestCodec(0)

	token, err := codec.Issue(Claims{
		Username:         "alice",
		Email:            "alice@example.com",
		Active:           true,
		RegisteredClaims: registeredSubject("account-1"),
	}, TokenTypeAccess, 15*time.Minute)
	require.NoError(t, err)

	claims, err := codec.Verify(token, TokenTypeAccess)
	require.NoError(t, err)
	require.Equal(t, "account-1", claims.Subject)
	require.Equal(t, "alice", claims.Username)
	require.Equal(t, "alice@example.com", claims.Email)
	require.True(t, claims.Active)
	require.Equal(t, TokenTypeAccess, claims.TokenType)
	require.NotEmpty(t, claims.ID)

	// exp - iat always equals the requested lifetime, whole seconds.
	require.Equal(t, 15*time.Minute, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
}

func TestCodecIssueGeneratesUniqueIDs(t *testing.T) {
	codec := newTestCodec(0)

	first, err := codec.Issue(Claims{RegisteredClaims: registeredSubject("account-1")}, TokenTypeAccess, time.Minute)
	require.NoError(t, err)
	second, err := codec.Issue(Claims{RegisteredClaims: registeredSubject("account-1")}, TokenTypeAccess, time.Minute)
	require.NoError(t, err)

	firstClaims, err := codec.Verify(first, TokenTypeAccess)
	require.NoError(t, err)
	secondClaims, err := codec.Verify(second, TokenTypeAccess)
	require.NoError(t, err)
	require.NotEqual(t, firstClaims.ID, secondClaims.ID)
}

func TestCodecRejectsExpired(t *testing.T) {
	codec := newTestCodec(0)

	issued := time.Now().Add(-time.Hour)
	codec.now = func() time.Time { return issued }
	token, err := codec.Issue(Claims{RegisteredClaims: registeredSubject("account-1")}, TokenTypeAccess, time.Minute)
	require.NoError(t, err)

	codec.now = time.Now
	_, err = codec.Verify(token, TokenTypeAccess)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestCodecLeewayAppliesToExpiryOnly(t *testing.T) {
	strict := newTestCodec(0)
	lenient := newTestCodec(time.Minute)

	issued := time.Now().Add(-90 * time.Second)
	strict.now = func() time.Time { return issued }
	token, err := strict.Issue(Claims{RegisteredClaims: registeredSubject("account-1")}, TokenTypeAccess, time.Minute)
	require.NoError(t, err)
	strict.now = time.Now

	// Expired 30s ago: rejected at zero leeway, accepted within 60s leeway.
	_, err = strict.Verify(token, TokenTypeAccess)
	require.ErrorIs(t, err, ErrTokenExpired)

	claims, err := lenient.Verify(token, TokenTypeAccess)
	require.NoError(t, err)
	require.Equal(t, "account-1", claims.Subject)
}

func TestCodecRejectsTypeConfusion(t *testing.T) {
	codec := newTestCodec(0)

	refresh, err := codec.Issue(Claims{RegisteredClaims: registeredSubject("account-1")}, TokenTypeRefresh, time.Hour)
	require.NoError(t, err)
	access, err := codec.Issue(Claims{RegisteredClaims: registeredSubject("account-1")}, TokenTypeAccess, time.Hour)
	require.NoError(t, err)

	_, err = codec.Verify(refresh, TokenTypeAccess)
	require.ErrorIs(t, err, ErrTokenTypeMismatch)

	_, err = codec.Verify(access, TokenTypeRefresh)
	require.ErrorIs(t, err, ErrTokenTypeMismatch)
}

func TestCodecRejectsBadSignature(t *testing.T) {
	codec := newTestCodec(0)
	other := NewCodec(CodecConfig{Secret: []byte("a different secret")})

	token, err := other.Issue(Claims{RegisteredClaims: registeredSubject("account-1")}, TokenTypeAccess, time.Hour)
	require.NoError(t, err)

	_, err = codec.Verify(token, TokenTypeAccess)
	require.ErrorIs(t, err, ErrTokenBadSignature)
}

func TestCodecRejectsMalformed(t *testing.T) {
	codec := newTestCodec(0)

	for _, tokenStr := range []string{"", "garbage", "a.b", "a.b.c"} {
		_, err := codec.Verify(tokenStr, TokenTypeAccess)
		require.ErrorIs(t, err, ErrTokenMalformed, "token %q", tokenStr)
	}
}

func TestCodecRejectsMissingSubject(t *testing.T) {
	codec := newTestCodec(0)

	token, err := codec.Issue(Claims{}, TokenTypeAccess, time.Hour)
	require.NoError(t, err)

	_, err = codec.Verify(token, TokenTypeAccess)
	require.ErrorIs(t, err, ErrTokenMalformed)
}

func TestCodecVerifyAny(t *testing.T) {
	codec := newTestCodec(0)

	access, err := codec.Issue(Claims{RegisteredClaims: registeredSubject("account-1")}, TokenTypeAccess, time.Hour)
	require.NoError(t, err)
	refresh, err := codec.Issue(Claims{RegisteredClaims: registeredSubject("account-1")}, TokenTypeRefresh, time.Hour)
	require.NoError(t, err)

	accessClaims, err := codec.VerifyAny(access)
	require.NoError(t, err)
	require.Equal(t, TokenTypeAccess, accessClaims.TokenType)

	refreshClaims, err := codec.VerifyAny(refresh)
	require.NoError(t, err)
	require.Equal(t, TokenTypeRefresh, refreshClaims.TokenType)

	_, err = codec.VerifyAny("garbage")
	require.ErrorIs(t, err, ErrTokenMalformed)
}
