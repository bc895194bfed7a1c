package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/robalyx/guardian/cmd/db/commands"
	"github.com/robalyx/guardian/internal/database"
	"github.com/robalyx/guardian/internal/database/dbretry"
	"github.com/robalyx/guardian/internal/database/migrations"
	"github.com/robalyx/guardian/internal/setup/config"
	"github.com/robalyx/guardian/internal/setup/telemetry"
	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v3"
)

// DBLogDir specifies where database tool log files are stored.
const DBLogDir = "logs/db_logs"

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Setup dependencies
	deps, cleanup, err := setupDependencies(ctx)
	if err != nil {
		return fmt.Errorf("failed to setup dependencies: %w", err)
	}
	defer cleanup()

	app := &cli.Command{
		Name:     "db",
		Usage:    "Database management tool",
		Commands: append(commands.MigrationCommands(deps), commands.UserCommands(deps)...),
	}

	return app.Run(ctx, os.Args)
}

// setupDependencies connects to the database without the pending migration
// check that the server enforces, since this tool is what applies them.
func setupDependencies(ctx context.Context) (*commands.CLIDependencies, func(), error) {
	cfg, _, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logManager := telemetry.NewManager(
		telemetry.ServiceDB, DBLogDir, config.RepositoryVersion, &cfg.Common.Debug, &cfg.Common.Telemetry,
	)

	logger, dbLogger, err := logManager.GetLoggers()
	if err != nil {
		return nil, nil, err
	}

	dbretry.Configure(&cfg.Common.Retry)

	db, err := database.NewConnection(ctx, &cfg.Common.PostgreSQL, dbLogger, false)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	cleanup := func() {
		_ = db.Close()
		_ = logger.Sync()
		_ = logManager.Stop(context.Background())
	}

	return &commands.CLIDependencies{
		DB:       db,
		Migrator: migrate.NewMigrator(db.DB(), migrations.Migrations),
		Logger:   logger,
	}, cleanup, nil
}
