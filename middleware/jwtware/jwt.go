package jwtware

import (
	"strings"

	auth "github.com/goliatone/go-auth-tokens"
	"github.com/goliatone/go-router"
)

var defaultTokenLookup = "header:" + router.HeaderAuthorization

// TokenValidator verifies a raw access token. auth.TokenService and
// auth.Auther both satisfy it.
type TokenValidator = auth.AccessTokenValidator

type Config struct {
	// Filter skips the middleware when it returns true.
	Filter func(router.Context) bool
	// SuccessHandler runs after the identity is stored, the default calls next.
	SuccessHandler func(ctx router.Context, next router.HandlerFunc) error
	// ErrorHandler receives every authentication failure. The default renders
	// it with auth.NewErrorHandler.
	ErrorHandler router.ErrorHandler
	ContextKey   string
	TokenLookup  string
	AuthScheme   string
	// TokenValidator is required for token validation
	TokenValidator TokenValidator
}

// New returns the bearer token middleware. On success the verified
// auth.Identity is stored in ctx.Locals(ContextKey) and in ctx.Context().
func New(config ...Config) router.MiddlewareFunc {
	cfg := GetDefaultConfig(config...)
	extractors := cfg.getExtractors()

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return next(ctx)
			}

			raw, err := ExtractRawTokenFromContext(ctx, extractors)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			claims, err := cfg.TokenValidator.Validate(raw)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			identity := auth.Identity{
				UserID: claims.UserID(),
				Token:  raw,
				Claims: claims,
			}

			ctx.Locals(cfg.ContextKey, identity)
			ctx.SetContext(auth.WithIdentity(ctx.Context(), identity))

			return cfg.SuccessHandler(ctx, next)
		}
	}
}

// IdentityFromLocals returns the identity stored by the middleware under key.
func IdentityFromLocals(ctx router.Context, key string) (auth.Identity, bool) {
	if key == "" {
		key = "user"
	}
	identity, ok := ctx.Locals(key).(auth.Identity)
	return identity, ok
}

func ExtractRawTokenFromContext(ctx router.Context, extractors []JWTExtractor) (string, error) {
	var raw string
	err := error(auth.ErrUnsupportedScheme)

	for _, extractor := range extractors {
		raw, err = extractor(ctx)
		if err == nil {
			break
		}
	}

	return raw, err
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(ctx router.Context, next router.HandlerFunc) error {
			return next(ctx)
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = auth.NewErrorHandler(nil)
	}

	if cfg.TokenValidator == nil {
		panic("AUTH: JWT middleware configuration: TokenValidator is required.")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "user"
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	return cfg
}

func (cfg *Config) getExtractors() []JWTExtractor {
	return GetExtractors(cfg.TokenLookup, cfg.AuthScheme)
}

func GetExtractors(tokenLookup string, authSchemes ...string) []JWTExtractor {
	extractors := make([]JWTExtractor, 0)

	authScheme := "Bearer"
	if len(authSchemes) > 0 && strings.TrimSpace(authSchemes[0]) != "" {
		authScheme = strings.TrimSpace(authSchemes[0])
	}

	// header:Authorization,cookie:jwt,query:access_token
	rootParts := strings.Split(tokenLookup, ",")
	for _, rootPart := range rootParts {
		parts := strings.Split(strings.TrimSpace(rootPart), ":")
		if len(parts) != 2 {
			continue
		}

		for i, el := range parts {
			parts[i] = strings.TrimSpace(el)
		}

		switch parts[0] {
		case "header":
			extractors = append(extractors, jwtFromHeader(parts[1], authScheme))
		case "query":
			extractors = append(extractors, jwtFromQuery(parts[1]))
		case "cookie":
			extractors = append(extractors, jwtFromCookie(parts[1]))
		}
	}

	return extractors
}

type JWTExtractor func(ctx router.Context) (string, error)

// jwtFromHeader accepts only "<scheme> <token>". Anything else, including a
// missing header, is an unsupported scheme.
func jwtFromHeader(header string, authScheme string) JWTExtractor {
	return func(ctx router.Context) (string, error) {
		a := ctx.GetString(header, "")
		l := len(authScheme)
		if len(a) > l+1 && a[l] == ' ' && strings.EqualFold(a[:l], authScheme) {
			return strings.TrimSpace(a[l+1:]), nil
		}
		return "", auth.ErrUnsupportedScheme
	}
}

func jwtFromQuery(param string) JWTExtractor {
	return func(ctx router.Context) (string, error) {
		token := ctx.Query(param, "")
		if token == "" {
			return "", auth.ErrUnsupportedScheme
		}
		return token, nil
	}
}

func jwtFromCookie(name string) JWTExtractor {
	return func(ctx router.Context) (string, error) {
		token := ctx.Cookies(name)
		if token == "" {
			return "", auth.ErrUnsupportedScheme
		}
		return token, nil
	}
}
