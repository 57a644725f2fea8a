package auth

import (
	"context"
	"strings"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

// CredentialStore verifies and creates email/password credentials.
type CredentialStore struct {
	repo      RepositoryManager
	cfg       *Config
	logger    Logger
	passwords PasswordAuthenticator

	// dummyHash is compared against when an email is unknown so that a failed
	// lookup costs the same as a failed password comparison.
	dummyHash     string
	dummyHashOnce sync.Once
}

// NewCredentialStore returns a CredentialStore backed by repo. Passwords are
// bcrypt hashed at the configured cost unless WithPasswordAuthenticator
// replaces the hasher.
func NewCredentialStore(repo RepositoryManager, cfg *Config, logger Logger) *CredentialStore {
	return &CredentialStore{
		repo:      repo,
		cfg:       cfg,
		logger:    normalizeLogger(logger),
		passwords: NewPasswordAuthenticator(cfg.bcryptCost()),
	}
}

func (s *CredentialStore) WithPasswordAuthenticator(passwords PasswordAuthenticator) *CredentialStore {
	if passwords != nil {
		s.passwords = passwords
	}
	return s
}

// HashPassword hashes password with the store's PasswordAuthenticator.
func (s *CredentialStore) HashPassword(password string) (string, error) {
	return s.passwords.HashPassword(password)
}

func (s *CredentialStore) burnPasswordComparison(password string) {
	s.dummyHashOnce.Do(func() {
		s.dummyHash, _ = s.passwords.HashPassword("unknown-account-placeholder")
	})
	_ = s.passwords.ComparePasswordAndHash(password, s.dummyHash)
}

// FindByCredentials returns the user owning email if password matches.
// Unknown emails and wrong passwords fail with the same error value, and
// both pay for one bcrypt comparison.
func (s *CredentialStore) FindByCredentials(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.Users().GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if !IsKind(err, KindNotFound) {
			return nil, err
		}
		s.burnPasswordComparison(password)
		return nil, ErrInvalidCredentials
	}

	if err := s.passwords.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if !IsKind(err, KindInvalidCredentials) {
			s.logger.Error("password comparison failed", "user_id", user.ID, "error", err)
		}
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// Create registers a new user. Nothing is written when the email is
// already taken.
func (s *CredentialStore) Create(ctx context.Context, firstName, lastName, email, password string) (*User, error) {
	email = NormalizeEmail(email)

	user := &User{
		FirstName: strings.TrimSpace(firstName),
		LastName:  strings.TrimSpace(lastName),
		Email:     email,
	}

	if err := user.SetPassword(password, s.passwords); err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, err
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	if s.cfg.DeterministicIDs {
		id, err := hashid.NewUUID(email, s.cfg.IDOptions...)
		if err != nil {
			s.logger.Error("failed to derive user id", "email", email, "error", err)
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to derive user id")
		}
		user.ID = id
	}

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.repo.Users().GetByEmailTx(ctx, tx, email); err == nil {
			return ErrDuplicateEmail
		} else if !IsKind(err, KindNotFound) {
			return err
		}

		_, err := s.repo.Users().RegisterTx(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

// ChangePassword re-hashes newPassword and writes only the hash column.
func (s *CredentialStore) ChangePassword(ctx context.Context, user *User, newPassword string) error {
	if user == nil {
		return ErrNotFound
	}

	if err := user.SetPassword(newPassword, s.passwords); err != nil {
		return err
	}

	return s.repo.Users().UpdatePassword(ctx, user.ID, user.PasswordHash)
}
