package auth

import (
	"context"

	"github.com/uptrace/bun"
)

// CreateSchema creates the users and user_refresh_tokens tables and their
// indexes when they do not exist yet.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	if _, err := db.NewCreateTable().
		Model((*User)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return err
	}

	if _, err := db.NewCreateTable().
		Model((*RefreshToken)(nil)).
		IfNotExists().
		ForeignKey(`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`).
		Exec(ctx); err != nil {
		return err
	}

	indexes := []struct {
		model  any
		name   string
		column string
	}{
		{(*User)(nil), "idx_users_reset_token_hash", "reset_token_hash"},
		{(*RefreshToken)(nil), "idx_user_refresh_tokens_user_id", "user_id"},
	}

	for _, idx := range indexes {
		if _, err := db.NewCreateIndex().
			Model(idx.model).
			Index(idx.name).
			Column(idx.column).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
	}

	return nil
}
