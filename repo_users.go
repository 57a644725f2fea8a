package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"
)

// Users persists user records and their refresh token digests.
type Users interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	GetByResetTokenHash(ctx context.Context, digest string) (*User, error)

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	UpdateProfile(ctx context.Context, user *User) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error

	LoadRefreshTokens(ctx context.Context, user *User) error
	AppendRefreshToken(ctx context.Context, token *RefreshToken) error
	AppendRefreshTokenTx(ctx context.Context, tx bun.IDB, token *RefreshToken) error
	RemoveRefreshToken(ctx context.Context, userID uuid.UUID, digest string) (bool, error)
	RemoveRefreshTokenTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, digest string) (bool, error)
	RemoveAllRefreshTokensTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error
	PruneRefreshTokens(ctx context.Context, userID uuid.UUID, now time.Time, keep int) error

	SetResetToken(ctx context.Context, id uuid.UUID, digest string, expiresAt time.Time) error
	ClearResetToken(ctx context.Context, id uuid.UUID) error
	ConsumeResetTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, digest, passwordHash string, now time.Time) error
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var _ Users = (*users)(nil)

// NewUsersRepository returns the bun backed Users repository.
func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) GetByID(ctx context.Context, id string) (*User, error) {
	user, err := a.Repository.GetByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err, "id", id)
	}
	return user, nil
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	user, err := a.Repository.GetByIdentifier(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, mapLookupError(err, "email", email)
	}
	return user, nil
}

func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", NormalizeEmail(email)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, mapLookupError(err, "email", email)
	}
	return record, nil
}

func (a *users) GetByResetTokenHash(ctx context.Context, digest string) (*User, error) {
	record := &User{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.reset_token_hash = ?", digest).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, mapLookupError(err, "reset_token_hash", "<redacted>")
	}
	return record, nil
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	prepareUserDefaults(user)

	if _, err := tx.NewInsert().Model(user).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, wrapKind(ErrDuplicateEmail, err, nil)
		}
		return nil, wrapKind(ErrPersistenceFailure, err, map[string]any{"op": "register"})
	}
	return user, nil
}

// UpdateProfile writes name and email only. The password hash column is
// never part of this update.
func (a *users) UpdateProfile(ctx context.Context, user *User) error {
	user.Email = NormalizeEmail(user.Email)
	user.UpdatedAt = time.Now().UTC()
	res, err := a.db.NewUpdate().
		Model(user).
		Column("first_name", "last_name", "email", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return wrapKind(ErrDuplicateEmail, err, nil)
		}
		return wrapKind(ErrPersistenceFailure, err, map[string]any{"op": "update_profile"})
	}
	return expectAffected(res, user.ID)
}

func (a *users) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	res, err := a.db.NewUpdate().
		Model((*User)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return wrapKind(ErrPersistenceFailure, err, map[string]any{"op": "update_password"})
	}
	return expectAffected(res, id)
}

func (a *users) LoadRefreshTokens(ctx context.Context, user *User) error {
	var tokens []*RefreshToken
	err := a.db.NewSelect().
		Model(&tokens).
		Where("user_id = ?", user.ID).
		OrderExpr("created_at ASC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return wrapKind(ErrPersistenceFailure, err, map[string]any{"op": "load_refresh_tokens"})
	}
	user.RefreshTokens = tokens
	return nil
}

// AppendRefreshToken adds one digest with a single INSERT, so concurrent
// issuances for the same user never overwrite each other.
func (a *users) AppendRefreshToken(ctx context.Context, token *RefreshToken) error {
	return a.AppendRefreshTokenTx(ctx, a.db, token)
}

func (a *users) AppendRefreshTokenTx(ctx context.Context, tx bun.IDB, token *RefreshToken) error {
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	if _, err := tx.NewInsert().Model(token).Exec(ctx); err != nil {
		return wrapKind(ErrPersistenceFailure, err, map[string]any{"op": "append_refresh_token"})
	}
	return nil
}

func (a *users) RemoveRefreshToken(ctx context.Context, userID uuid.UUID, digest string) (bool, error) {
	return a.RemoveRefreshTokenTx(ctx, a.db, userID, digest)
}

// RemoveRefreshTokenTx reports false when no digest matched, which is how a
// second use of the same refresh token is detected.
func (a *users) RemoveRefreshTokenTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, digest string) (bool, error) {
	res, err := tx.NewDelete().
		Model((*RefreshToken)(nil)).
		Where("user_id = ?", userID).
		Where("token_hash = ?", digest).
		Exec(ctx)
	if err != nil {
		return false, wrapKind(ErrPersistenceFailure, err, map[string]any{"op": "remove_refresh_token"})
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapKind(ErrPersistenceFailure, err, nil)
	}
	return n > 0, nil
}

func (a *users) RemoveAllRefreshTokensTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error {
	_, err := tx.NewDelete().
		Model((*RefreshToken)(nil)).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return wrapKind(ErrPersistenceFailure, err, map[string]any{"op": "remove_all_refresh_tokens"})
	}
	return nil
}

// PruneRefreshTokens drops expired digests and, when keep is positive, all
// but the keep most recent ones.
func (a *users) PruneRefreshTokens(ctx context.Context, userID uuid.UUID, now time.Time, keep int) error {
	_, err := a.db.NewDelete().
		Model((*RefreshToken)(nil)).
		Where("user_id = ?", userID).
		Where("expires_at <= ?", now.UTC()).
		Exec(ctx)
	if err != nil {
		return wrapKind(ErrPersistenceFailure, err, map[string]any{"op": "prune_refresh_tokens"})
	}

	if keep <= 0 {
		return nil
	}

	newest := a.db.NewSelect().
		Model((*RefreshToken)(nil)).
		Column("id").
		Where("user_id = ?", userID).
		OrderExpr("created_at DESC").
		Limit(keep)

	_, err = a.db.NewDelete().
		Model((*RefreshToken)(nil)).
		Where("user_id = ?", userID).
		Where("id NOT IN (?)", newest).
		Exec(ctx)
	if err != nil {
		return wrapKind(ErrPersistenceFailure, err, map[string]any{"op": "cap_refresh_tokens"})
	}
	return nil
}

// SetResetToken stores digest and expiry together in one statement.
func (a *users) SetResetToken(ctx context.Context, id uuid.UUID, digest string, expiresAt time.Time) error {
	res, err := a.db.NewUpdate().
		Model((*User)(nil)).
		Set("reset_token_hash = ?", digest).
		Set("reset_token_expiry = ?", expiresAt.UTC()).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return wrapKind(ErrPersistenceFailure, err, map[string]any{"op": "set_reset_token"})
	}
	return expectAffected(res, id)
}

// ClearResetToken drops an outstanding reset token, both fields at once.
func (a *users) ClearResetToken(ctx context.Context, id uuid.UUID) error {
	_, err := a.db.NewUpdate().
		Model((*User)(nil)).
		Set("reset_token_hash = NULL").
		Set("reset_token_expiry = NULL").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return wrapKind(ErrPersistenceFailure, err, map[string]any{"op": "clear_reset_token"})
	}
	return nil
}

// ConsumeResetTokenTx swaps the password hash and clears both reset fields,
// guarded on the digest still being the stored one so a token is used once.
func (a *users) ConsumeResetTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, digest, passwordHash string, now time.Time) error {
	res, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("reset_token_hash = NULL").
		Set("reset_token_expiry = NULL").
		Set("updated_at = ?", now.UTC()).
		Where("id = ?", id).
		Where("reset_token_hash = ?", digest).
		Exec(ctx)
	if err != nil {
		return wrapKind(ErrPersistenceFailure, err, map[string]any{"op": "consume_reset_token"})
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapKind(ErrPersistenceFailure, err, nil)
	}
	if n == 0 {
		return ErrResetTokenInvalid
	}
	return nil
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	record.Email = NormalizeEmail(record.Email)
	record.FirstName = strings.TrimSpace(record.FirstName)
	record.LastName = strings.TrimSpace(record.LastName)

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = now
	}
}

func expectAffected(res sql.Result, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return wrapKind(ErrPersistenceFailure, err, nil)
	}
	if n == 0 {
		return ErrNotFound.Clone().WithMetadata(map[string]any{"id": id.String()})
	}
	return nil
}

func mapLookupError(err error, field, value string) error {
	if isNotFound(err) {
		return ErrNotFound.Clone().WithMetadata(map[string]any{field: value})
	}
	return wrapKind(ErrPersistenceFailure, err, map[string]any{"lookup": field})
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
