package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		// Clean up audit logs that reference non-existent users
		_, err := db.NewRaw(`
			DELETE FROM audit_logs al
			WHERE NOT EXISTS (
				SELECT 1 FROM users u
				WHERE u.id = al.user_id
			)
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to clean up orphaned audit_logs: %w", err)
		}

		_, err = db.NewRaw(`
			ALTER TABLE audit_logs
			ADD CONSTRAINT fk_audit_logs_user
			FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to add audit_logs foreign key: %w", err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			ALTER TABLE audit_logs DROP CONSTRAINT IF EXISTS fk_audit_logs_user
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to drop audit_logs foreign key: %w", err)
		}

		return nil
	})
}
