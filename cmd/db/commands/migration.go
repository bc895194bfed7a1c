package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// MigrationCommands returns the schema migration commands.
func MigrationCommands(deps *CLIDependencies) []*cli.Command {
	return []*cli.Command{
		{
			Name:   "init",
			Usage:  "Create the migration bookkeeping tables",
			Action: handleInit(deps),
		},
		{
			Name:   "migrate",
			Usage:  "Apply pending migrations",
			Action: handleMigrate(deps),
		},
		{
			Name:   "rollback",
			Usage:  "Roll back the last migration group",
			Action: handleRollback(deps),
		},
		{
			Name:   "status",
			Usage:  "List applied and pending migrations",
			Action: handleStatus(deps),
		},
		{
			Name:      "create",
			Usage:     "Create a new Go migration file",
			ArgsUsage: "NAME",
			Action:    handleCreate(deps),
		},
	}
}

// handleInit handles the 'init' command.
func handleInit(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, _ *cli.Command) error {
		if err := deps.Migrator.Init(ctx); err != nil {
			return fmt.Errorf("failed to initialize migrations: %w", err)
		}

		deps.Logger.Info("Migration tables ready")
		return nil
	}
}

// withLock runs fn while holding the migration lock.
func withLock(ctx context.Context, deps *CLIDependencies, fn func() error) error {
	if err := deps.Migrator.Lock(ctx); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer func() {
		if err := deps.Migrator.Unlock(ctx); err != nil {
			deps.Logger.Warn("Failed to release migration lock", zap.Error(err))
		}
	}()

	return fn()
}

// handleMigrate handles the 'migrate' command.
func handleMigrate(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, _ *cli.Command) error {
		if err := deps.Migrator.Init(ctx); err != nil {
			return fmt.Errorf("failed to initialize migrations: %w", err)
		}

		return withLock(ctx, deps, func() error {
			group, err := deps.Migrator.Migrate(ctx)
			if err != nil {
				return err
			}

			if group.IsZero() {
				deps.Logger.Info("No new migrations to run (database is up to date)")
				return nil
			}

			for _, m := range group.Migrations {
				deps.Logger.Info("Applied migration", zap.String("name", m.Name))
			}
			deps.Logger.Info("Successfully migrated", zap.String("group", group.String()))

			return nil
		})
	}
}

// handleRollback handles the 'rollback' command.
func handleRollback(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, _ *cli.Command) error {
		return withLock(ctx, deps, func() error {
			group, err := deps.Migrator.Rollback(ctx)
			if err != nil {
				return err
			}

			if group.IsZero() {
				deps.Logger.Info("No groups to roll back")
				return nil
			}

			deps.Logger.Info("Successfully rolled back", zap.String("group", group.String()))
			return nil
		})
	}
}

// handleStatus handles the 'status' command.
func handleStatus(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, _ *cli.Command) error {
		ms, err := deps.Migrator.MigrationsWithStatus(ctx)
		if err != nil {
			return err
		}

		for _, m := range ms {
			deps.Logger.Info("Migration",
				zap.String("name", m.Name),
				zap.Bool("applied", m.IsApplied()),
				zap.Int64("group", m.GroupID))
		}

		deps.Logger.Info("Migration status",
			zap.Int("total", len(ms)),
			zap.Int("unapplied", len(ms.Unapplied())),
			zap.String("last_group", ms.LastGroup().String()),
		)

		return nil
	}
}

// handleCreate handles the 'create' command.
func handleCreate(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		if c.Args().Len() != 1 {
			return ErrNameRequired
		}

		mf, err := deps.Migrator.CreateGoMigration(ctx, c.Args().First())
		if err != nil {
			return err
		}

		deps.Logger.Info("Created Go migration",
			zap.String("name", mf.Name),
			zap.String("path", mf.Path),
		)

		return nil
	}
}
