package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// IssueRefreshToken signs a refresh token for user and records its digest.
// The raw token is returned only once the digest has been saved.
func (ts *TokenService) IssueRefreshToken(ctx context.Context, user *User) (string, error) {
	signed, record, err := ts.signRefreshToken(user)
	if err != nil {
		return "", err
	}

	if err := ts.users.AppendRefreshToken(ctx, record); err != nil {
		ts.logger.Error("failed to store refresh token digest", "user_id", user.ID, "error", err)
		return "", err
	}

	ts.PruneRefreshTokens(ctx, user.ID)

	return signed, nil
}

// IssueRefreshTokenTx is IssueRefreshToken inside tx. Pruning is left to the
// caller once tx has committed.
func (ts *TokenService) IssueRefreshTokenTx(ctx context.Context, tx bun.IDB, user *User) (string, error) {
	signed, record, err := ts.signRefreshToken(user)
	if err != nil {
		return "", err
	}

	if err := ts.users.AppendRefreshTokenTx(ctx, tx, record); err != nil {
		ts.logger.Error("failed to store refresh token digest", "user_id", user.ID, "error", err)
		return "", err
	}

	return signed, nil
}

// PruneRefreshTokens drops expired digests of userID and enforces
// MaxSessions. Failures are only logged.
func (ts *TokenService) PruneRefreshTokens(ctx context.Context, userID uuid.UUID) {
	if ts.users == nil {
		return
	}
	if err := ts.users.PruneRefreshTokens(ctx, userID, ts.cfg.now(), ts.cfg.MaxSessions); err != nil {
		ts.logger.Warn("failed to prune refresh tokens", "user_id", userID, "error", err)
	}
}

func (ts *TokenService) signRefreshToken(user *User) (string, *RefreshToken, error) {
	if user == nil {
		return "", nil, errors.New("user must not be nil", errors.CategoryInternal)
	}
	if ts.users == nil {
		return "", nil, errors.New("token service has no users repository", errors.CategoryInternal)
	}

	now := ts.cfg.now()
	expiresAt := now.Add(ts.cfg.RefreshTokenTTL)
	claims := &RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.cfg.Issuer,
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
		UID: user.ID.String(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(ts.cfg.RefreshSecret))
	if err != nil {
		return "", nil, errors.Wrap(err, errors.CategoryInternal, "failed to sign refresh token")
	}

	return signed, &RefreshToken{
		UserID:    user.ID,
		TokenHash: HMACDigest(ts.cfg.RefreshSecret, signed),
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: now.UTC(),
	}, nil
}

// VerifyRefreshToken checks signature and expiry of token and that its digest
// is still stored for the user it names. It returns the user with its
// refresh tokens loaded, together with the digest of token.
func (ts *TokenService) VerifyRefreshToken(ctx context.Context, token string) (*User, string, error) {
	if token == "" {
		return nil, "", ErrRefreshTokenInvalid
	}

	claims := &RefreshClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, hmacSecret(ts.cfg.RefreshSecret), ts.refreshParserOptions()...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, "", wrapKind(ErrRefreshTokenExpired, err, nil)
		}
		return nil, "", wrapKind(ErrRefreshTokenInvalid, err, nil)
	}
	if !parsed.Valid || claims.UserID() == "" {
		return nil, "", ErrRefreshTokenInvalid
	}

	user, err := ts.users.GetByID(ctx, claims.UserID())
	if err != nil {
		if IsKind(err, KindNotFound) {
			return nil, "", wrapKind(ErrRefreshTokenInvalid, err, nil)
		}
		return nil, "", err
	}

	if err := ts.users.LoadRefreshTokens(ctx, user); err != nil {
		return nil, "", err
	}

	digest := HMACDigest(ts.cfg.RefreshSecret, token)
	if !user.HasRefreshTokenHash(digest) {
		return nil, "", ErrRefreshTokenRevoked
	}

	return user, digest, nil
}

func (ts *TokenService) refreshParserOptions() []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ts.cfg.now),
	}
	if ts.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(ts.cfg.Issuer))
	}
	return opts
}
