package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/robalyx/guardian/internal/database/dbretry"
	"github.com/robalyx/guardian/internal/database/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.uber.org/zap"
)

// UserModel handles database operations for user records.
type UserModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewUser creates a UserModel.
func NewUser(db *bun.DB, logger *zap.Logger) *UserModel {
	return &UserModel{
		db:     db,
		logger: logger.Named("db_user"),
	}
}

// CreateUser inserts a new user with a clean trust state.
func (r *UserModel) CreateUser(ctx context.Context, username string) (*types.User, error) {
	user := &types.User{
		Username:  username,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := r.db.NewInsert().Model(user).Returning("*").Exec(ctx)
		return err
	})
	if err != nil {
		var pgerr pgdriver.Error
		if errors.As(err, &pgerr) && pgerr.IntegrityViolation() {
			return nil, fmt.Errorf("%w: %s", types.ErrUserExists, username)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	r.logger.Debug("Created user",
		zap.Int64("userID", user.ID),
		zap.String("username", username))

	return user, nil
}

// GetUserByID retrieves a user by ID.
func (r *UserModel) GetUserByID(ctx context.Context, userID int64) (*types.User, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.User, error) {
		var user types.User
		err := r.db.NewSelect().
			Model(&user).
			Where("id = ?", userID).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, types.ErrUserNotFound
			}
			return nil, fmt.Errorf("failed to get user: %w", err)
		}
		return &user, nil
	})
}

// GetUserForUpdate reads a user and locks the row until the transaction ends.
func (r *UserModel) GetUserForUpdate(ctx context.Context, tx bun.Tx, userID int64) (*types.User, error) {
	var user types.User
	err := tx.NewSelect().
		Model(&user).
		Where("id = ?", userID).
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to lock user: %w", err)
	}
	return &user, nil
}

// UpdateTrustWithTx persists the flag count and ban status of a user.
func (r *UserModel) UpdateTrustWithTx(ctx context.Context, tx bun.Tx, user *types.User) error {
	user.UpdatedAt = time.Now()

	_, err := tx.NewUpdate().
		Model(user).
		Column("flag_count", "banned", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update user trust: %w", err)
	}
	return nil
}

// GetUserCounts returns the number of users, flagged users and banned users.
func (r *UserModel) GetUserCounts(ctx context.Context) (*types.UserCounts, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.UserCounts, error) {
		var counts types.UserCounts
		err := r.db.NewSelect().
			Model((*types.User)(nil)).
			ColumnExpr("COUNT(*) AS total").
			ColumnExpr("COUNT(*) FILTER (WHERE flag_count > 0 AND NOT banned) AS flagged").
			ColumnExpr("COUNT(*) FILTER (WHERE banned) AS banned").
			Scan(ctx, &counts)
		if err != nil {
			return nil, fmt.Errorf("failed to get user counts: %w", err)
		}
		return &counts, nil
	})
}
