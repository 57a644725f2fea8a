package auth

import (
	"fmt"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenService issues and verifies access and refresh tokens.
type TokenService struct {
	cfg     *Config
	users   Users
	logger  Logger
	keyfunc jwt.Keyfunc
}

var _ AccessTokenValidator = (*TokenService)(nil)

// NewTokenService creates a new TokenService instance. users may be nil when
// the service is only used to verify access tokens.
func NewTokenService(cfg *Config, users Users, logger Logger) *TokenService {
	return &TokenService{
		cfg:     cfg,
		users:   users,
		logger:  normalizeLogger(logger),
		keyfunc: accessKeyfunc(cfg),
	}
}

// accessKeyfunc resolves the signing secret from the kid header. The current
// secret and every retired secret still accepted are registered as HS256 keys.
func accessKeyfunc(cfg *Config) jwt.Keyfunc {
	givenKeys := make(map[string]keyfunc.GivenKey, len(cfg.PreviousAccessSecrets)+1)
	for kid, secret := range cfg.PreviousAccessSecrets {
		if kid == "" || secret == "" {
			continue
		}
		givenKeys[kid] = keyfunc.NewGivenCustom([]byte(secret), keyfunc.GivenKeyOptions{
			Algorithm: jwt.SigningMethodHS256.Alg(),
		})
	}
	givenKeys[cfg.accessKeyID()] = keyfunc.NewGivenCustom([]byte(cfg.AccessSecret), keyfunc.GivenKeyOptions{
		Algorithm: jwt.SigningMethodHS256.Alg(),
	})
	return keyfunc.NewGiven(givenKeys).Keyfunc
}

// IssueAccessToken signs a short lived access token for user.
func (ts *TokenService) IssueAccessToken(user *User) (string, error) {
	if user == nil {
		return "", errors.New("user must not be nil", errors.CategoryInternal)
	}

	now := ts.cfg.now()
	claims := &AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.cfg.Issuer,
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.cfg.AccessTokenTTL)),
			ID:        uuid.NewString(),
		},
		UID:      user.ID.String(),
		FullName: user.FullName(),
		Email:    user.Email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = ts.cfg.accessKeyID()

	signed, err := token.SignedString([]byte(ts.cfg.AccessSecret))
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign access token")
	}
	return signed, nil
}

// Validate verifies signature and expiry of an access token. An expired token
// with a valid signature reports ErrTokenExpired, anything else that fails
// reports ErrTokenInvalid.
func (ts *TokenService) Validate(tokenString string) (*AccessClaims, error) {
	if tokenString == "" {
		return nil, ErrTokenInvalid
	}

	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, ts.keyfunc, ts.parserOptions()...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, wrapKind(ErrTokenExpired, err, nil)
		}
		ts.logger.Debug("access token rejected", "error", err)
		return nil, wrapKind(ErrTokenInvalid, err, nil)
	}

	if !token.Valid || claims.UserID() == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func (ts *TokenService) parserOptions() []jwt.ParserOption {
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

func hmacSecret(secret string) jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}
}
