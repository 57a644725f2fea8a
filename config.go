package auth

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/hashid/pkg/hashid"
)

const (
	DefaultAccessTokenTTL   = 15 * time.Minute
	DefaultRefreshTokenTTL  = 24 * time.Hour
	DefaultResetTokenTTL    = 60 * time.Minute
	DefaultOperationTimeout = 10 * time.Second
	DefaultAccessKeyID      = "current"
)

// Config holds every setting consumed by the credential store, the token
// issuer and the middleware. It is built once at startup and shared by
// reference.
type Config struct {
	AccessSecret    string
	RefreshSecret   string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	ResetTokenTTL   time.Duration
	Issuer          string

	// AccessKeyID is written to the kid header of access tokens.
	AccessKeyID string
	// PreviousAccessSecrets maps retired key ids to secrets that are still
	// accepted when verifying access tokens.
	PreviousAccessSecrets map[string]string

	// BcryptCost overrides the adaptive hash cost, zero uses the package default.
	BcryptCost int

	EmailFrom string
	// ResetURL is the base link mailed to users, the reset token is appended
	// as the last path segment.
	ResetURL string

	OperationTimeout time.Duration
	// MaxSessions caps stored refresh token digests per user, zero means no cap.
	MaxSessions int
	// DeterministicIDs derives user ids from the email address.
	DeterministicIDs bool
	// IDOptions configures the hashid derivation used by DeterministicIDs.
	IDOptions []hashid.Option

	// Now is the clock used for token issuance and expiry checks.
	Now func() time.Time
}

// DefaultConfig returns a Config with default lifetimes. Secrets must be set
// by the caller.
func DefaultConfig() *Config {
	return &Config{
		AccessTokenTTL:   DefaultAccessTokenTTL,
		RefreshTokenTTL:  DefaultRefreshTokenTTL,
		ResetTokenTTL:    DefaultResetTokenTTL,
		OperationTimeout: DefaultOperationTimeout,
		AccessKeyID:      DefaultAccessKeyID,
	}
}

// Validate fails fast on missing secrets or non positive lifetimes.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.AccessSecret, validation.Required, validation.Length(16, 0)),
		validation.Field(&c.RefreshSecret,
			validation.Required,
			validation.Length(16, 0),
			validation.By(notEqualTo(c.AccessSecret, "must differ from the access token secret")),
		),
		validation.Field(&c.AccessTokenTTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.RefreshTokenTTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.ResetTokenTTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.BcryptCost, validation.Min(0), validation.Max(31)),
		validation.Field(&c.MaxSessions, validation.Min(0)),
		validation.Field(&c.EmailFrom, is.Email),
		validation.Field(&c.ResetURL, is.URL),
	)
}

// MustValidate panics if the configuration is invalid.
func (c *Config) MustValidate() {
	if err := c.Validate(); err != nil {
		panic("AUTH: invalid configuration: " + err.Error())
	}
}

func (c *Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Config) operationTimeout() time.Duration {
	if c.OperationTimeout > 0 {
		return c.OperationTimeout
	}
	return DefaultOperationTimeout
}

func (c *Config) accessKeyID() string {
	if c.AccessKeyID != "" {
		return c.AccessKeyID
	}
	return DefaultAccessKeyID
}

func (c *Config) bcryptCost() int {
	if c.BcryptCost > 0 {
		return c.BcryptCost
	}
	return passwordHashCost()
}

func notEqualTo(other, message string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if s != "" && s == other {
			return errors.New(message)
		}
		return nil
	}
}
