package setup

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/robalyx/guardian/internal/database"
	"github.com/robalyx/guardian/internal/database/dbretry"
	"github.com/robalyx/guardian/internal/database/migrations"
	"github.com/robalyx/guardian/internal/redis"
	"github.com/robalyx/guardian/internal/setup/config"
	"github.com/robalyx/guardian/internal/setup/telemetry"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
)

// ErrPendingMigrations is returned when the schema is behind the binary.
var ErrPendingMigrations = errors.New("database migrations are pending, run the db migrate command")

// App bundles all core dependencies and services needed by the application.
// Each field represents a major subsystem that needs initialization and cleanup.
type App struct {
	Config       *config.Config     // Application configuration
	Logger       *zap.Logger        // Main application logger
	DBLogger     *zap.Logger        // Database-specific logger
	DB           database.Client    // Database connection pool
	RedisManager *redis.Manager     // Redis connection manager
	LogManager   *telemetry.Manager // Log management system
}

// InitializeApp bootstraps all application dependencies in the correct order,
// ensuring each component has its required dependencies available.
func InitializeApp(ctx context.Context, serviceType telemetry.ServiceType, logDir string) (*App, error) {
	// Load app configuration
	cfg, _, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	// Logging system is initialized next to capture setup issues
	logManager := telemetry.NewManager(
		serviceType, logDir, config.RepositoryVersion, &cfg.Common.Debug, &cfg.Common.Telemetry,
	)

	logger, dbLogger, err := logManager.GetLoggers()
	if err != nil {
		return nil, err
	}

	// Database retries follow the configured backoff
	dbretry.Configure(&cfg.Common.Retry)

	// Redis manager provides connection pools for various subsystems
	redisManager := redis.NewManager(&cfg.Common.Redis, logger)

	// Initialize database with migration check
	db, err := checkMigrations(ctx, &cfg.Common.PostgreSQL, dbLogger)
	if err != nil {
		return nil, err
	}

	logger.Info("Application initialized",
		zap.String("service", serviceType.String()),
		zap.String("sessionDir", logManager.GetCurrentSessionDir()))

	// Bundle all initialized components
	return &App{
		Config:       cfg,
		Logger:       logger,
		DBLogger:     dbLogger.Named("database"),
		DB:           db,
		RedisManager: redisManager,
		LogManager:   logManager,
	}, nil
}

// Cleanup ensures graceful shutdown of all components in reverse initialization order.
// Logs but does not fail on cleanup errors to ensure all components get cleanup attempts.
func (s *App) Cleanup(ctx context.Context) {
	// Close database connections
	if err := s.DB.Close(); err != nil {
		log.Printf("Failed to close database connection: %v", err)
	}

	// Close Redis connections once nothing else needs them
	s.RedisManager.Close()

	// Sync buffered logs before the log files are closed
	if err := s.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	if err := s.DBLogger.Sync(); err != nil {
		log.Printf("Failed to sync DB logger: %v", err)
	}

	// Close log files and flush pending spans
	if err := s.LogManager.Stop(ctx); err != nil {
		log.Printf("Failed to stop telemetry: %v", err)
	}
}

// checkMigrations opens the database and refuses to continue while migrations are pending.
func checkMigrations(ctx context.Context, cfg *config.PostgreSQL, dbLogger *zap.Logger) (database.Client, error) {
	db, err := database.NewConnection(ctx, cfg, dbLogger, false)
	if err != nil {
		return nil, err
	}

	migrator := migrate.NewMigrator(db.DB(), migrations.Migrations)

	ms, err := migrator.MigrationsWithStatus(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to check migration status: %w", err)
	}

	if unapplied := ms.Unapplied(); len(unapplied) > 0 {
		db.Close()
		return nil, fmt.Errorf("%w (%d unapplied)", ErrPendingMigrations, len(unapplied))
	}

	return db, nil
}
