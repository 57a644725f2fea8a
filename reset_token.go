package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
)

const (
	resetTokenValueBytes  = 32
	resetTokenSecretBytes = 16
	resetTokenSeparator   = "."
)

// ResetToken is a freshly generated password reset token. Token is handed to
// the user, Digest and ExpiresAt are what gets stored.
type ResetToken struct {
	Token     string
	Digest    string
	ExpiresAt time.Time
}

// GenerateResetToken creates a split secret token of the form value.secret,
// both hex encoded. The stored digest is HMAC-SHA256 of value keyed by secret.
func GenerateResetToken(now time.Time, ttl time.Duration) (*ResetToken, error) {
	value, err := randomHex(resetTokenValueBytes)
	if err != nil {
		return nil, err
	}
	secret, err := randomHex(resetTokenSecretBytes)
	if err != nil {
		return nil, err
	}

	return &ResetToken{
		Token:     value + resetTokenSeparator + secret,
		Digest:    HMACDigest(secret, value),
		ExpiresAt: now.Add(ttl),
	}, nil
}

// ResetTokenDigest recomputes the stored digest for token.
func ResetTokenDigest(token string) (string, error) {
	value, secret, ok := splitResetToken(token)
	if !ok {
		return "", ErrResetTokenInvalid
	}
	return HMACDigest(secret, value), nil
}

// VerifyResetToken checks token against the reset fields stored on user.
// The token is expired once now reaches the stored expiry.
func VerifyResetToken(user *User, token string, now time.Time) error {
	if user == nil || !user.HasPendingReset() {
		return ErrResetTokenInvalid
	}

	digest, err := ResetTokenDigest(token)
	if err != nil {
		return err
	}

	if !digestEqual(digest, *user.ResetTokenHash) {
		return ErrResetTokenInvalid
	}

	if !now.Before(*user.ResetTokenExpiry) {
		return ErrResetTokenExpired
	}
	return nil
}

// IssueResetToken generates a reset token for user and stores its digest and
// expiry in a single update.
func (ts *TokenService) IssueResetToken(ctx context.Context, user *User) (*ResetToken, error) {
	if user == nil {
		return nil, errors.New("user must not be nil", errors.CategoryInternal)
	}

	rt, err := GenerateResetToken(ts.cfg.now(), ts.cfg.ResetTokenTTL)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to generate reset token")
	}

	if err := ts.users.SetResetToken(ctx, user.ID, rt.Digest, rt.ExpiresAt); err != nil {
		return nil, err
	}

	digest := rt.Digest
	expiresAt := rt.ExpiresAt.UTC()
	user.ResetTokenHash = &digest
	user.ResetTokenExpiry = &expiresAt

	return rt, nil
}

func splitResetToken(token string) (string, string, bool) {
	value, secret, found := strings.Cut(token, resetTokenSeparator)
	if !found || len(value) != resetTokenValueBytes*2 || len(secret) != resetTokenSecretBytes*2 {
		return "", "", false
	}
	if _, err := hex.DecodeString(value); err != nil {
		return "", "", false
	}
	if _, err := hex.DecodeString(secret); err != nil {
		return "", "", false
	}
	return value, secret, true
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
