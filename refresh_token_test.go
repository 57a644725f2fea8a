package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	auth "github.com/goliatone/go-auth-tokens"
)

func registerUser(t *testing.T, repo auth.RepositoryManager, cfg *auth.Config, email string) *auth.User {
	t.Helper()
	store := auth.NewCredentialStore(repo, cfg, nopLogger{})
	user, err := store.Create(context.Background(), "Ana", "Lee", email, "pw1234")
	require.NoError(t, err)
	return user
}

func TestRefreshTokenDigestRoundTrip(t *testing.T) {
	db := setupDB(t)
	cfg := newTestConfig()
	repo := auth.NewRepositoryManager(db)
	ts := auth.NewTokenService(cfg, repo.Users(), nopLogger{})
	ctx := context.Background()

	user := registerUser(t, repo, cfg, "ana@x.com")

	token, err := ts.IssueRefreshToken(ctx, user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	stored, err := repo.Users().GetByID(ctx, user.ID.String())
	require.NoError(t, err)
	require.NoError(t, repo.Users().LoadRefreshTokens(ctx, stored))

	digest := auth.HMACDigest(testRefreshSecret, token)
	assert.Contains(t, stored.RefreshTokenHashes(), digest)
	assert.True(t, stored.HasRefreshTokenHash(digest))
	assert.NotContains(t, stored.RefreshTokenHashes(), token)

	var leaked int
	err = db.NewRaw(
		"SELECT COUNT(*) FROM user_refresh_tokens WHERE token_hash = ? OR id = ? OR user_id = ?",
		token, token, token,
	).Scan(ctx, &leaked)
	require.NoError(t, err)
	assert.Zero(t, leaked, "raw refresh token must never be persisted")

	var userRows int
	err = db.NewRaw(
		"SELECT COUNT(*) FROM users WHERE password_hash = ? OR reset_token_hash = ? OR email = ?",
		token, token, token,
	).Scan(ctx, &userRows)
	require.NoError(t, err)
	assert.Zero(t, userRows)

	verified, gotDigest, err := ts.VerifyRefreshToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, verified.ID)
	assert.Equal(t, digest, gotDigest)
}

func TestRefreshTokenRevokedWhenDigestRemoved(t *testing.T) {
	db := setupDB(t)
	cfg := newTestConfig()
	repo := auth.NewRepositoryManager(db)
	ts := auth.NewTokenService(cfg, repo.Users(), nopLogger{})
	ctx := context.Background()

	user := registerUser(t, repo, cfg, "ana@x.com")
	token, err := ts.IssueRefreshToken(ctx, user)
	require.NoError(t, err)

	removed, err := repo.Users().RemoveRefreshToken(ctx, user.ID, auth.HMACDigest(testRefreshSecret, token))
	require.NoError(t, err)
	assert.True(t, removed)

	_, _, err = ts.VerifyRefreshToken(ctx, token)
	assert.Equal(t, auth.KindRefreshTokenRevoked, auth.KindOf(err))
}

func TestRefreshTokenExpiredAndInvalid(t *testing.T) {
	db := setupDB(t)
	cfg := newTestConfig()
	clock := newFixedClock(time.Now())
	cfg.Now = clock.Now
	repo := auth.NewRepositoryManager(db)
	ts := auth.NewTokenService(cfg, repo.Users(), nopLogger{})
	ctx := context.Background()

	user := registerUser(t, repo, cfg, "ana@x.com")
	token, err := ts.IssueRefreshToken(ctx, user)
	require.NoError(t, err)

	access, err := ts.IssueAccessToken(user)
	require.NoError(t, err)
	_, _, err = ts.VerifyRefreshToken(ctx, access)
	assert.Equal(t, auth.KindRefreshTokenInvalid, auth.KindOf(err), "access tokens are not refresh tokens")

	_, _, err = ts.VerifyRefreshToken(ctx, "")
	assert.Equal(t, auth.KindRefreshTokenInvalid, auth.KindOf(err))

	clock.Set(clock.Now().Add(cfg.RefreshTokenTTL + time.Minute))
	_, _, err = ts.VerifyRefreshToken(ctx, token)
	assert.Equal(t, auth.KindRefreshTokenExpired, auth.KindOf(err))
	assert.True(t, auth.IsTokenExpiredError(err))
}

func TestConcurrentRefreshIssuanceKeepsBothDigests(t *testing.T) {
	db := setupDB(t)
	cfg := newTestConfig()
	repo := auth.NewRepositoryManager(db)
	ts := auth.NewTokenService(cfg, repo.Users(), nopLogger{})
	ctx := context.Background()

	user := registerUser(t, repo, cfg, "ana@x.com")

	const sessions = 2
	var wg sync.WaitGroup
	tokens := make([]string, sessions)
	errs := make([]error, sessions)

	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// each request works on its own copy of the record
			u := *user
			tokens[i], errs[i] = ts.IssueRefreshToken(ctx, &u)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	stored, err := repo.Users().GetByID(ctx, user.ID.String())
	require.NoError(t, err)
	require.NoError(t, repo.Users().LoadRefreshTokens(ctx, stored))

	require.Len(t, stored.RefreshTokenHashes(), sessions)
	for _, token := range tokens {
		assert.True(t, stored.HasRefreshTokenHash(auth.HMACDigest(testRefreshSecret, token)))
	}
}

func TestRefreshTokenMaxSessions(t *testing.T) {
	db := setupDB(t)
	cfg := newTestConfig()
	cfg.MaxSessions = 2
	clock := newFixedClock(time.Now())
	cfg.Now = clock.Now
	repo := auth.NewRepositoryManager(db)
	ts := auth.NewTokenService(cfg, repo.Users(), nopLogger{})
	ctx := context.Background()

	user := registerUser(t, repo, cfg, "ana@x.com")

	var tokens []string
	for i := 0; i < 3; i++ {
		clock.Set(clock.Now().Add(time.Second))
		token, err := ts.IssueRefreshToken(ctx, user)
		require.NoError(t, err)
		tokens = append(tokens, token)
	}

	assert.Equal(t, 2, countRows(t, db, "user_refresh_tokens"))

	_, _, err := ts.VerifyRefreshToken(ctx, tokens[0])
	assert.Equal(t, auth.KindRefreshTokenRevoked, auth.KindOf(err), "oldest session is evicted")

	for _, token := range tokens[1:] {
		_, _, err := ts.VerifyRefreshToken(ctx, token)
		assert.NoError(t, err)
	}
}

func TestRefreshTokenPrunesExpiredDigests(t *testing.T) {
	db := setupDB(t)
	cfg := newTestConfig()
	clock := newFixedClock(time.Now())
	cfg.Now = clock.Now
	repo := auth.NewRepositoryManager(db)
	ts := auth.NewTokenService(cfg, repo.Users(), nopLogger{})
	ctx := context.Background()

	user := registerUser(t, repo, cfg, "ana@x.com")

	_, err := ts.IssueRefreshToken(ctx, user)
	require.NoError(t, err)

	clock.Set(clock.Now().Add(cfg.RefreshTokenTTL + time.Hour))
	fresh, err := ts.IssueRefreshToken(ctx, user)
	require.NoError(t, err)

	require.NoError(t, repo.Users().LoadRefreshTokens(ctx, user))
	assert.Equal(t, []string{auth.HMACDigest(testRefreshSecret, fresh)}, user.RefreshTokenHashes())
}

type failingUsers struct {
	auth.Users
}

func (failingUsers) AppendRefreshToken(context.Context, *auth.RefreshToken) error {
	return auth.ErrPersistenceFailure.Clone()
}

func TestRefreshTokenNotReturnedWhenSaveFails(t *testing.T) {
	db := setupDB(t)
	cfg := newTestConfig()
	repo := auth.NewRepositoryManager(db)
	user := registerUser(t, repo, cfg, "ana@x.com")

	ts := auth.NewTokenService(cfg, failingUsers{Users: repo.Users()}, nopLogger{})

	token, err := ts.IssueRefreshToken(context.Background(), user)
	assert.Empty(t, token)
	assert.Equal(t, auth.KindPersistenceFailure, auth.KindOf(err))
	assert.Zero(t, countRows(t, db, "user_refresh_tokens"))
}

func TestRunInTxRollsBack(t *testing.T) {
	db := setupDB(t)
	repo := auth.NewRepositoryManager(db)
	ctx := context.Background()

	boom := errors.New("boom")
	err := repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := repo.Users().RegisterTx(ctx, tx, &auth.User{
			FirstName:    "Ana",
			LastName:     "Lee",
			Email:        "ana@x.com",
			PasswordHash: "hash",
		})
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, countRows(t, db, "users"))
}
