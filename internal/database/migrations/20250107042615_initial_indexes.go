package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			-- Audit log indexes
			CREATE INDEX IF NOT EXISTS idx_audit_logs_time
			ON audit_logs (activity_timestamp DESC, sequence DESC);

			CREATE INDEX IF NOT EXISTS idx_audit_logs_user_time
			ON audit_logs (user_id, activity_timestamp DESC, sequence DESC);

			-- User indexes
			CREATE INDEX IF NOT EXISTS idx_users_banned
			ON users (banned) WHERE banned;
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			DROP INDEX IF EXISTS idx_audit_logs_time;
			DROP INDEX IF EXISTS idx_audit_logs_user_time;
			DROP INDEX IF EXISTS idx_users_banned;
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to drop indexes: %w", err)
		}

		return nil
	})
}
