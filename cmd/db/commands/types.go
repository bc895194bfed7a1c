package commands

import (
	"errors"

	"github.com/robalyx/guardian/internal/database"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
)

var (
	ErrNameRequired     = errors.New("NAME argument required")
	ErrUsernameRequired = errors.New("USERNAME argument required")
	ErrUserIDRequired   = errors.New("USER_ID argument required")
)

// CLIDependencies holds the common dependencies needed by CLI commands.
type CLIDependencies struct {
	DB       database.Client
	Migrator *migrate.Migrator
	Logger   *zap.Logger
}
