package database

import (
	"github.com/robalyx/guardian/internal/database/service"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Service provides access to all business logic services.
type Service struct {
	user  *service.UserService
	trust *service.TrustService
}

// NewService creates a new service instance with all services.
func NewService(db *bun.DB, repository *Repository, logger *zap.Logger) *Service {
	userModel := repository.User()
	activityModel := repository.Activity()

	return &Service{
		user:  service.NewUser(userModel, logger),
		trust: service.NewTrust(db, userModel, activityModel, logger),
	}
}

// User returns the user service.
func (s *Service) User() *service.UserService {
	return s.user
}

// Trust returns the trust service.
func (s *Service) Trust() *service.TrustService {
	return s.trust
}
