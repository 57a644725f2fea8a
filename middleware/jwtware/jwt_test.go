package jwtware_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-auth-tokens"
	"github.com/goliatone/go-auth-tokens/middleware/jwtware"
)

func testConfig(now func() time.Time) *auth.Config {
	cfg := auth.DefaultConfig()
	cfg.AccessSecret = "access-secret-for-tests-0001"
	cfg.RefreshSecret = "refresh-secret-for-tests-0001"
	cfg.Now = now
	return cfg
}

func testUser() *auth.User {
	return &auth.User{
		ID:        uuid.New(),
		FirstName: "Ana",
		LastName:  "Lee",
		Email:     "ana@x.com",
	}
}

// newServer mounts handler behind mw on a fiber backed router and returns
// the underlying app for app.Test.
func newServer(t *testing.T, path string, handler router.HandlerFunc, mw router.MiddlewareFunc) *fiber.App {
	t.Helper()

	var app *fiber.App
	srv := router.NewFiberAdapter(func(*fiber.App) *fiber.App {
		app = fiber.New(fiber.Config{
			ErrorHandler: auth.NewFiberErrorHandler(nil),
		})
		return app
	})
	srv.Router().Get(path, handler, mw)

	require.NotNil(t, app)
	return app
}

func newApp(t *testing.T, validator jwtware.TokenValidator, reached *bool) *fiber.App {
	t.Helper()

	return newServer(t, "/protected", func(ctx router.Context) error {
		*reached = true
		identity, ok := auth.IdentityFromContext(ctx.Context())
		if !ok {
			return ctx.Status(http.StatusInternalServerError).SendString("")
		}
		local, ok := jwtware.IdentityFromLocals(ctx, "")
		if !ok || local.UserID != identity.UserID {
			return ctx.Status(http.StatusInternalServerError).SendString("")
		}
		return ctx.JSON(http.StatusOK, map[string]any{"uid": identity.UserID, "token": identity.Token})
	}, jwtware.New(jwtware.Config{
		TokenValidator: validator,
	}))
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestJWTWare_HeaderCases(t *testing.T) {
	cfg := testConfig(nil)
	tokens := auth.NewTokenService(cfg, nil, nil)
	user := testUser()

	valid, err := tokens.IssueAccessToken(user)
	require.NoError(t, err)

	past := testConfig(func() time.Time { return time.Now().Add(-2 * time.Hour) })
	expired, err := auth.NewTokenService(past, nil, nil).IssueAccessToken(user)
	require.NoError(t, err)

	other := testConfig(nil)
	other.AccessSecret = "some-other-access-secret-0001"
	foreign, err := auth.NewTokenService(other, nil, nil).IssueAccessToken(user)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantError  string
		wantReach  bool
	}{
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized, wantError: "unsupported_scheme"},
		{name: "basic scheme", header: "Basic xyz", wantStatus: http.StatusUnauthorized, wantError: "unsupported_scheme"},
		{name: "scheme without token", header: "Bearer", wantStatus: http.StatusUnauthorized, wantError: "unsupported_scheme"},
		{name: "scheme glued to token", header: "Bearer" + valid, wantStatus: http.StatusUnauthorized, wantError: "unsupported_scheme"},
		{name: "garbage token", header: "Bearer not-a-jwt", wantStatus: http.StatusUnauthorized, wantError: "access_token_invalid"},
		{name: "foreign signature", header: "Bearer " + foreign, wantStatus: http.StatusUnauthorized, wantError: "access_token_invalid"},
		{name: "expired token", header: "Bearer " + expired, wantStatus: http.StatusUnauthorized, wantError: "access_token_expired"},
		{name: "valid token", header: "Bearer " + valid, wantStatus: http.StatusOK, wantReach: true},
		{name: "lowercase scheme", header: "bearer " + valid, wantStatus: http.StatusOK, wantReach: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached := false
			app := newApp(t, tokens, &reached)

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.header)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantReach, reached)

			body := decodeBody(t, resp)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, body["error"])
				assert.NotEmpty(t, body["error_description"])
				return
			}
			assert.Equal(t, user.ID.String(), body["uid"])
			assert.Equal(t, valid, body["token"])
		})
	}
}

func TestJWTWare_CustomErrorHandler(t *testing.T) {
	cfg := testConfig(nil)
	var got error

	app := newServer(t, "/protected", func(ctx router.Context) error {
		t.Fatal("handler must not be reached")
		return nil
	}, jwtware.New(jwtware.Config{
		TokenValidator: auth.NewTokenService(cfg, nil, nil),
		ErrorHandler: func(ctx router.Context, err error) error {
			got = err
			return ctx.Status(http.StatusTeapot).SendString("")
		},
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Basic xyz")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.True(t, auth.IsKind(got, auth.KindUnsupportedScheme))
}

func TestJWTWare_Filter(t *testing.T) {
	cfg := testConfig(nil)

	app := newServer(t, "/public", func(ctx router.Context) error {
		return ctx.Status(http.StatusOK).SendString("ok")
	}, jwtware.New(jwtware.Config{
		TokenValidator: auth.NewTokenService(cfg, nil, nil),
		Filter: func(ctx router.Context) bool {
			return ctx.Path() == "/public"
		},
	}))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/public", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestJWTWare_CookieLookup(t *testing.T) {
	cfg := testConfig(nil)
	tokens := auth.NewTokenService(cfg, nil, nil)
	token, err := tokens.IssueAccessToken(testUser())
	require.NoError(t, err)

	app := newServer(t, "/protected", func(ctx router.Context) error {
		return ctx.Status(http.StatusOK).SendString("ok")
	}, jwtware.New(jwtware.Config{
		TokenValidator: tokens,
		TokenLookup:    "header:Authorization,cookie:jwt",
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: "jwt", Value: token})

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestJWTWare_QueryLookup(t *testing.T) {
	cfg := testConfig(nil)
	tokens := auth.NewTokenService(cfg, nil, nil)
	token, err := tokens.IssueAccessToken(testUser())
	require.NoError(t, err)

	app := newServer(t, "/protected", func(ctx router.Context) error {
		return ctx.Status(http.StatusOK).SendString("ok")
	}, jwtware.New(jwtware.Config{
		TokenValidator: tokens,
		TokenLookup:    "query:access_token",
	}))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/protected?access_token="+token, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/protected", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
