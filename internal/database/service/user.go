package service

import (
	"context"
	"strings"

	"github.com/robalyx/guardian/internal/database/models"
	"github.com/robalyx/guardian/internal/database/types"
	"go.uber.org/zap"
)

// UserService handles user-related business logic.
type UserService struct {
	model  *models.UserModel
	logger *zap.Logger
}

// NewUser creates a new user service.
func NewUser(model *models.UserModel, logger *zap.Logger) *UserService {
	return &UserService{
		model:  model,
		logger: logger.Named("user_service"),
	}
}

// GetUser returns the user with the given ID.
func (s *UserService) GetUser(ctx context.Context, userID int64) (*types.User, error) {
	if userID <= 0 {
		return nil, types.ErrInvalidUserID
	}
	return s.model.GetUserByID(ctx, userID)
}

// CreateUser registers a new user under a trimmed, non-empty username.
func (s *UserService) CreateUser(ctx context.Context, username string) (*types.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, types.ErrInvalidUsername
	}

	user, err := s.model.CreateUser(ctx, username)
	if err != nil {
		return nil, err
	}

	s.logger.Info("User created",
		zap.Int64("userID", user.ID),
		zap.String("username", user.Username))

	return user, nil
}
