package auth_test

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-auth-tokens"
)

var resetTokenShape = regexp.MustCompile(`^[0-9a-f]{64}\.[0-9a-f]{32}$`)

func userWithReset(rt *auth.ResetToken) *auth.User {
	u := testUser()
	digest := rt.Digest
	expiry := rt.ExpiresAt
	u.ResetTokenHash = &digest
	u.ResetTokenExpiry = &expiry
	return u
}

func TestGenerateResetToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rt, err := auth.GenerateResetToken(now, time.Hour)
	require.NoError(t, err)

	assert.Regexp(t, resetTokenShape, rt.Token)
	assert.Equal(t, now.Add(time.Hour), rt.ExpiresAt)

	value, secret, _ := strings.Cut(rt.Token, ".")
	assert.Equal(t, auth.HMACDigest(secret, value), rt.Digest)
	assert.NotContains(t, rt.Digest, value)

	other, err := auth.GenerateResetToken(now, time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, rt.Token, other.Token)
}

func TestVerifyResetTokenWindow(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	window := 30 * time.Minute
	epsilon := time.Millisecond

	rt, err := auth.GenerateResetToken(issued, window)
	require.NoError(t, err)
	user := userWithReset(rt)

	assert.NoError(t, auth.VerifyResetToken(user, rt.Token, issued))
	assert.NoError(t, auth.VerifyResetToken(user, rt.Token, issued.Add(window-epsilon)))

	err = auth.VerifyResetToken(user, rt.Token, issued.Add(window))
	assert.Equal(t, auth.KindResetTokenExpired, auth.KindOf(err))

	err = auth.VerifyResetToken(user, rt.Token, issued.Add(window+epsilon))
	assert.Equal(t, auth.KindResetTokenExpired, auth.KindOf(err))
}

func TestVerifyResetTokenRejects(t *testing.T) {
	now := time.Now()
	rt, err := auth.GenerateResetToken(now, time.Hour)
	require.NoError(t, err)

	value, secret, _ := strings.Cut(rt.Token, ".")
	otherSecret := strings.Repeat("0", 32)
	if otherSecret == secret {
		otherSecret = strings.Repeat("1", 32)
	}

	tests := map[string]string{
		"empty":         "",
		"no separator":  value + secret,
		"value only":    value,
		"swapped parts": secret + "." + value,
		"wrong secret":  value + "." + otherSecret,
		"not hex":       strings.Repeat("z", 64) + "." + secret,
		"trailing junk": rt.Token + ".x",
		"stored digest": rt.Digest,
	}

	user := userWithReset(rt)
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			err := auth.VerifyResetToken(user, token, now)
			assert.Equal(t, auth.KindResetTokenInvalid, auth.KindOf(err))
		})
	}

	t.Run("no pending reset", func(t *testing.T) {
		err := auth.VerifyResetToken(testUser(), rt.Token, now)
		assert.Equal(t, auth.KindResetTokenInvalid, auth.KindOf(err))
	})
}
