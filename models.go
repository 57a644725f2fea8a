package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the identity and credential record.
type User struct {
	bun.BaseModel    `bun:"table:users,alias:usr"`
	ID               uuid.UUID       `bun:"id,pk,type:uuid" json:"id"`
	FirstName        string          `bun:"first_name,notnull" json:"first_name"`
	LastName         string          `bun:"last_name,notnull" json:"last_name"`
	Email            string          `bun:"email,notnull,unique" json:"email"`
	PasswordHash     string          `bun:"password_hash,notnull" json:"-"`
	ResetTokenHash   *string         `bun:"reset_token_hash" json:"-"`
	ResetTokenExpiry *time.Time      `bun:"reset_token_expiry" json:"-"`
	RefreshTokens    []*RefreshToken `bun:"rel:has-many,join:id=user_id" json:"-"`
	CreatedAt        time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt        time.Time       `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// RefreshToken is one entry of a user's refresh token digest list. Only the
// HMAC digest of the token is stored.
type RefreshToken struct {
	bun.BaseModel `bun:"table:user_refresh_tokens,alias:urt"`
	ID            uuid.UUID `bun:"id,pk,type:uuid"`
	UserID        uuid.UUID `bun:"user_id,notnull,type:uuid"`
	TokenHash     string    `bun:"token_hash,notnull,unique"`
	ExpiresAt     time.Time `bun:"expires_at,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// SetPassword hashes password and stores the result. It is the only place
// a password hash is computed, so saving other fields never re-hashes.
func (u *User) SetPassword(password string, hasher PasswordAuthenticator) error {
	hash, err := hasher.HashPassword(password)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

// RefreshTokenHashes returns the stored digests in issuance order.
func (u *User) RefreshTokenHashes() []string {
	out := make([]string, 0, len(u.RefreshTokens))
	for _, rt := range u.RefreshTokens {
		if rt != nil {
			out = append(out, rt.TokenHash)
		}
	}
	return out
}

// HasRefreshTokenHash reports whether digest is in the user's list.
func (u *User) HasRefreshTokenHash(digest string) bool {
	for _, h := range u.RefreshTokenHashes() {
		if digestEqual(h, digest) {
			return true
		}
	}
	return false
}

// HasPendingReset reports whether a reset token hash and expiry are stored.
func (u *User) HasPendingReset() bool {
	return u.ResetTokenHash != nil && u.ResetTokenExpiry != nil
}

// PublicProfile is the only user shape written to API responses.
type PublicProfile struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// ToPublicProfile projects a user onto its public fields.
func ToPublicProfile(u *User) PublicProfile {
	if u == nil {
		return PublicProfile{}
	}
	return PublicProfile{
		ID:        u.ID.String(),
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
	}
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
