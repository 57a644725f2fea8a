package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// TokenPair is returned by login and refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// Auther runs the account flows: signup, login, token refresh, logout and
// the forgot/reset password exchange.
type Auther struct {
	cfg          *Config
	repo         RepositoryManager
	store        *CredentialStore
	passwords    PasswordAuthenticator
	tokens       *TokenService
	mailer       Mailer
	logger       Logger
	activitySink ActivitySink
}

// NewAuthenticator returns a new Authenticator. cfg is validated and the
// call panics if it is not usable.
func NewAuthenticator(repo RepositoryManager, cfg *Config) *Auther {
	cfg.MustValidate()
	repo.MustValidate()

	logger := defLogger{}
	passwords := NewPasswordAuthenticator(cfg.bcryptCost())
	return &Auther{
		cfg:          cfg,
		repo:         repo,
		store:        NewCredentialStore(repo, cfg, logger).WithPasswordAuthenticator(passwords),
		passwords:    passwords,
		tokens:       NewTokenService(cfg, repo.Users(), logger),
		logger:       logger,
		activitySink: noopActivitySink{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = normalizeLogger(logger)
	s.store = NewCredentialStore(s.repo, s.cfg, s.logger).WithPasswordAuthenticator(s.passwords)
	s.tokens = NewTokenService(s.cfg, s.repo.Users(), s.logger)
	return s
}

// WithPasswordAuthenticator replaces the bcrypt hasher used for signup,
// login and password reset.
func (s *Auther) WithPasswordAuthenticator(passwords PasswordAuthenticator) *Auther {
	if passwords == nil {
		return s
	}
	s.passwords = passwords
	s.store = NewCredentialStore(s.repo, s.cfg, s.logger).WithPasswordAuthenticator(passwords)
	return s
}

// WithMailer sets the mailer used to deliver password reset emails.
func (s *Auther) WithMailer(mailer Mailer) *Auther {
	s.mailer = mailer
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() *TokenService {
	return s.tokens
}

// Credentials returns the credential store
func (s *Auther) Credentials() *CredentialStore {
	return s.store
}

// Signup validates input and creates the user.
func (s *Auther) Signup(ctx context.Context, input SignupRequest) (*User, error) {
	if err := input.Validate(); err != nil {
		return nil, validationError(err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.operationTimeout())
	defer cancel()

	user, err := s.store.Create(ctx, input.FirstName, input.LastName, input.Email, input.Password)
	if err != nil {
		s.logger.Warn("Signup failed", "email", NormalizeEmail(input.Email), "error", err)
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventSignup, user.ID.String(), map[string]any{
		"email": user.Email,
	})

	return user, nil
}

// Login verifies the credentials and issues an access and refresh token.
func (s *Auther) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.operationTimeout())
	defer cancel()

	user, err := s.store.FindByCredentials(ctx, email, password)
	if err != nil {
		s.logger.Warn("Login verify credentials error", "error", err)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, "", map[string]any{
			"email": NormalizeEmail(email),
			"error": string(KindOf(err)),
		})
		return nil, err
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, user.ID.String(), map[string]any{
			"email": user.Email,
			"error": string(KindOf(err)),
		})
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, user.ID.String(), map[string]any{
		"email": user.Email,
	})

	return pair, nil
}

// Refresh exchanges a stored refresh token for a new pair. The presented
// token is removed, so each refresh token can be used once.
func (s *Auther) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.operationTimeout())
	defer cancel()

	user, digest, err := s.tokens.VerifyRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	// removal of the old digest and the new digest commit together
	var pair *TokenPair
	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		removed, err := s.repo.Users().RemoveRefreshTokenTx(ctx, tx, user.ID, digest)
		if err != nil {
			return err
		}
		if !removed {
			return ErrRefreshTokenRevoked
		}

		access, err := s.tokens.IssueAccessToken(user)
		if err != nil {
			return err
		}

		refresh, err := s.tokens.IssueRefreshTokenTx(ctx, tx, user)
		if err != nil {
			return err
		}

		pair = s.newPair(access, refresh)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.tokens.PruneRefreshTokens(ctx, user.ID)

	s.emitAuthEvent(ctx, ActivityEventTokenRefreshed, user.ID.String(), nil)

	return pair, nil
}

// Logout revokes the presented refresh token. Other sessions stay valid.
func (s *Auther) Logout(ctx context.Context, refreshToken string) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.operationTimeout())
	defer cancel()

	user, digest, err := s.tokens.VerifyRefreshToken(ctx, refreshToken)
	if err != nil {
		return err
	}

	if _, err := s.repo.Users().RemoveRefreshToken(ctx, user.ID, digest); err != nil {
		return err
	}

	s.emitAuthEvent(ctx, ActivityEventLogout, user.ID.String(), nil)
	return nil
}

// ForgotPassword issues a reset token and emails it. Unknown emails succeed
// without doing anything so the response does not reveal registration.
func (s *Auther) ForgotPassword(ctx context.Context, email string) error {
	if s.mailer == nil {
		return wrapKind(ErrEmailDeliveryFailure, goerrors.New("no mailer configured", goerrors.CategoryInternal), nil)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.operationTimeout())
	defer cancel()

	user, err := s.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if IsKind(err, KindNotFound) {
			s.logger.Debug("ForgotPassword unknown email", "email", NormalizeEmail(email))
			return nil
		}
		return err
	}

	rt, err := s.tokens.IssueResetToken(ctx, user)
	if err != nil {
		return err
	}

	if err := s.mailer.SendPasswordReset(ctx, user, rt.Token, rt.ExpiresAt); err != nil {
		s.logger.Error("ForgotPassword send email error", "user_id", user.ID, "error", err)
		if cerr := s.repo.Users().ClearResetToken(ctx, user.ID); cerr != nil {
			s.logger.Error("ForgotPassword clear reset token error", "user_id", user.ID, "error", cerr)
		}
		if IsKind(err, KindEmailDeliveryFailure) {
			return err
		}
		return wrapKind(ErrEmailDeliveryFailure, err, nil)
	}

	s.emitAuthEvent(ctx, ActivityEventPasswordResetRequest, user.ID.String(), map[string]any{
		"expires_at": rt.ExpiresAt.UTC().Format(time.RFC3339),
	})
	return nil
}

// ResetPassword sets a new password using a reset token. The token is
// consumed and every refresh token of the user is revoked.
func (s *Auther) ResetPassword(ctx context.Context, input ResetPasswordRequest) error {
	if err := input.Validate(); err != nil {
		return validationError(err)
	}

	digest, err := ResetTokenDigest(input.ResetToken)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.operationTimeout())
	defer cancel()

	user, err := s.repo.Users().GetByResetTokenHash(ctx, digest)
	if err != nil {
		if IsKind(err, KindNotFound) {
			return ErrResetTokenInvalid
		}
		return err
	}

	now := s.cfg.now()
	if err := VerifyResetToken(user, input.ResetToken, now); err != nil {
		return err
	}

	hash, err := s.store.HashPassword(input.Password)
	if err != nil {
		return err
	}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.repo.Users().ConsumeResetTokenTx(ctx, tx, user.ID, digest, hash, now); err != nil {
			return err
		}
		return s.repo.Users().RemoveAllRefreshTokensTx(ctx, tx, user.ID)
	})
	if err != nil {
		s.logger.Error("ResetPassword persist error", "user_id", user.ID, "error", err)
		return err
	}

	s.emitAuthEvent(ctx, ActivityEventPasswordResetSuccess, user.ID.String(), nil)
	return nil
}

// Profile returns the user with the given id.
func (s *Auther) Profile(ctx context.Context, userID string) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.operationTimeout())
	defer cancel()

	return s.repo.Users().GetByID(ctx, userID)
}

// Validate implements AccessTokenValidator so the Auther can be handed to
// the bearer middleware directly.
func (s *Auther) Validate(tokenString string) (*AccessClaims, error) {
	return s.tokens.Validate(tokenString)
}

func (s *Auther) issuePair(ctx context.Context, user *User) (*TokenPair, error) {
	access, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}

	refresh, err := s.tokens.IssueRefreshToken(ctx, user)
	if err != nil {
		return nil, err
	}

	return s.newPair(access, refresh), nil
}

func (s *Auther) newPair(access, refresh string) *TokenPair {
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.cfg.AccessTokenTTL / time.Second),
	}
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, userID string, metadata map[string]any) {
	sink := normalizeActivitySink(s.activitySink)
	event := ActivityEvent{
		EventType:  eventType,
		UserID:     userID,
		Metadata:   metadata,
		OccurredAt: s.cfg.now(),
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error", "error", err)
	}
}
