package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-lms-auth"
)

func newTokenService(t *testing.T, clock *testClock) *auth.TokenService {
	t.Helper()
	ts, err := auth.NewTokenService([]byte(testSigningKey), time.Hour, "lms-auth", []string{"lms"})
	require.NoError(t, err)
	return ts.WithClock(clock.Now)
}

func TestNewTokenServiceRejectsShortKey(t *testing.T) {
	for _, key := range []string{"", "short", strings.Repeat("k", auth.MinSigningKeyLength-1)} {
		ts, err := auth.NewTokenService([]byte(key), time.Hour, "", nil)
		assert.Nil(t, ts)
		assert.True(t, errors.Is(err, auth.ErrConfiguration), "key length %d", len(key))
	}
}

func TestTokenServiceGenerateAndValidate(t *testing.T) {
	clock := newTestClock()
	ts := newTokenService(t, clock)

	token, claims, err := ts.Generate(42, 3)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, clock.Now().Add(time.Hour), claims.Expires())
	assert.Equal(t, clock.Now(), claims.Issued())
	assert.NotEmpty(t, claims.ID)

	validated, err := ts.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), validated.AccountID)
	assert.Equal(t, int64(3), validated.RoleID)
	assert.Equal(t, "42", validated.Subject)
}

func TestTokenServiceDistinctTokensPerCall(t *testing.T) {
	ts := newTokenService(t, newTestClock())

	first, _, err := ts.Generate(1, 1)
	require.NoError(t, err)
	second, _, err := ts.Generate(1, 1)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestTokenServiceExpiry(t *testing.T) {
	clock := newTestClock()
	ts := newTokenService(t, clock)

	token, _, err := ts.Generate(1, 1)
	require.NoError(t, err)

	clock.Advance(time.Hour - time.Second)
	_, err = ts.Validate(token)
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, err = ts.Validate(token)
	assert.True(t, errors.Is(err, auth.ErrTokenExpired))
}

func TestTokenServiceRejectsTampering(t *testing.T) {
	clock := newTestClock()
	ts := newTokenService(t, clock)

	token, _, err := ts.Generate(1, 1)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = ts.Validate(tampered)
	assert.True(t, errors.Is(err, auth.ErrTokenMalformed))

	_, err = ts.Validate("not-a-token")
	assert.True(t, errors.Is(err, auth.ErrTokenMalformed))
}

func TestTokenServiceRejectsOtherKeyAndIssuer(t *testing.T) {
	clock := newTestClock()
	ts := newTokenService(t, clock)

	other, err := auth.NewTokenService([]byte(strings.Repeat("x", 40)), time.Hour, "lms-auth", []string{"lms"})
	require.NoError(t, err)
	foreign, _, err := other.WithClock(clock.Now).Generate(1, 1)
	require.NoError(t, err)
	_, err = ts.Validate(foreign)
	assert.True(t, errors.Is(err, auth.ErrTokenMalformed))

	wrongIssuer, err := auth.NewTokenService([]byte(testSigningKey), time.Hour, "someone-else", []string{"lms"})
	require.NoError(t, err)
	token, _, err := wrongIssuer.WithClock(clock.Now).Generate(1, 1)
	require.NoError(t, err)
	_, err = ts.Validate(token)
	assert.True(t, errors.Is(err, auth.ErrTokenMalformed))
}

func TestTokenServiceAudience(t *testing.T) {
	clock := newTestClock()
	ts, err := auth.NewTokenService([]byte(testSigningKey), time.Hour, "lms-auth", []string{"lms", "lms-admin"})
	require.NoError(t, err)
	ts = ts.WithClock(clock.Now)

	cases := []struct {
		name     string
		audience []string
		valid    bool
	}{
		{name: "first configured audience", audience: []string{"lms"}, valid: true},
		{name: "second configured audience", audience: []string{"lms-admin"}, valid: true},
		{name: "one of many", audience: []string{"billing", "lms-admin"}, valid: true},
		{name: "foreign audience", audience: []string{"billing"}, valid: false},
		{name: "no audience", audience: nil, valid: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			minter, err := auth.NewTokenService([]byte(testSigningKey), time.Hour, "lms-auth", tc.audience)
			require.NoError(t, err)
			token, _, err := minter.WithClock(clock.Now).Generate(5, 1)
			require.NoError(t, err)

			claims, err := ts.Validate(token)
			if tc.valid {
				require.NoError(t, err)
				assert.Equal(t, int64(5), claims.AccountID)
				return
			}
			assert.True(t, errors.Is(err, auth.ErrTokenMalformed))
		})
	}
}

func TestTokenServiceDefaultTTL(t *testing.T) {
	ts, err := auth.NewTokenService([]byte(testSigningKey), 0, "", nil)
	require.NoError(t, err)
	assert.Equal(t, auth.DefaultTokenTTL, ts.TTL())
}
