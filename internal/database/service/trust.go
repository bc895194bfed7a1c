package service

import (
	"context"

	"github.com/robalyx/guardian/internal/database/dbretry"
	"github.com/robalyx/guardian/internal/database/models"
	"github.com/robalyx/guardian/internal/database/types"
	"github.com/robalyx/guardian/internal/trust"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// TrustService persists user trust transitions. It implements trust.Store.
type TrustService struct {
	db       *bun.DB
	user     *models.UserModel
	activity *models.ActivityModel
	logger   *zap.Logger
}

// NewTrust creates a new trust service.
func NewTrust(
	db *bun.DB, user *models.UserModel, activity *models.ActivityModel, logger *zap.Logger,
) *TrustService {
	return &TrustService{
		db:       db,
		user:     user,
		activity: activity,
		logger:   logger.Named("trust_service"),
	}
}

// ApplyTransition locks the user row, computes the next trust state and writes
// the updated user together with its audit log entry in one transaction.
func (s *TrustService) ApplyTransition(
	ctx context.Context, userID int64, fn trust.TransitionFunc,
) (trust.Record, trust.AuditEntry, error) {
	var (
		next  trust.Record
		entry trust.AuditEntry
	)

	err := dbretry.Transaction(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		user, err := s.user.GetUserForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}

		next, entry, err = fn(trust.Record{
			UserID:    user.ID,
			FlagCount: user.FlagCount,
			Banned:    user.Banned,
		})
		if err != nil {
			return err
		}

		user.FlagCount = next.FlagCount
		user.Banned = next.Banned
		if err := s.user.UpdateTrustWithTx(ctx, tx, user); err != nil {
			return err
		}

		return s.activity.Append(ctx, tx, &types.AuditLog{
			UserID:            entry.UserID,
			ActivityType:      entry.Activity,
			ActivityTimestamp: entry.Timestamp,
		})
	})
	if err != nil {
		return trust.Record{}, trust.AuditEntry{}, err
	}

	s.logger.Debug("Applied trust transition",
		zap.Int64("userID", userID),
		zap.Int("flagCount", next.FlagCount),
		zap.Bool("banned", next.Banned),
		zap.String("activity", entry.Activity.String()))

	return next, entry, nil
}
