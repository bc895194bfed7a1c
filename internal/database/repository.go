package database

import (
	"github.com/robalyx/guardian/internal/database/models"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Repository provides access to all database models.
type Repository struct {
	user     *models.UserModel
	activity *models.ActivityModel
}

// NewRepository creates a new repository instance with all models.
func NewRepository(db *bun.DB, logger *zap.Logger) *Repository {
	return &Repository{
		user:     models.NewUser(db, logger),
		activity: models.NewActivity(db, logger),
	}
}

// User returns the user model repository.
func (r *Repository) User() *models.UserModel {
	return r.user
}

// Activity returns the audit log model repository.
func (r *Repository) Activity() *models.ActivityModel {
	return r.activity
}
