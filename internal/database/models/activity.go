package models

import (
	"context"
	"fmt"

	"github.com/robalyx/guardian/internal/database/dbretry"
	"github.com/robalyx/guardian/internal/database/types"
	"github.com/robalyx/guardian/internal/database/types/enum"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// ActivityModel handles database operations for the trust audit log.
type ActivityModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewActivity creates a repository with database access for
// appending and listing audit log entries.
func NewActivity(db *bun.DB, logger *zap.Logger) *ActivityModel {
	return &ActivityModel{
		db:     db,
		logger: logger.Named("db_activity"),
	}
}

// Append stores an audit log entry using the given query runner.
// Callers pass a transaction so the entry commits with the user update.
func (r *ActivityModel) Append(ctx context.Context, db bun.IDB, log *types.AuditLog) error {
	_, err := db.NewInsert().Model(log).Returning("sequence").Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to append audit log: %w", err)
	}

	r.logger.Debug("Appended audit log",
		zap.Int64("userID", log.UserID),
		zap.String("activityType", log.ActivityType.String()))

	return nil
}

// GetLogs retrieves audit logs newest first. A nil cursor starts from the most recent entry.
func (r *ActivityModel) GetLogs(
	ctx context.Context, filter types.ActivityFilter, cursor *types.LogCursor, limit int,
) ([]*types.AuditLog, *types.LogCursor, error) {
	var logs []*types.AuditLog
	var nextCursor *types.LogCursor

	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		logs = nil
		nextCursor = nil

		// Build base query conditions
		query := r.db.NewSelect().Model(&logs)

		if filter.UserID != 0 {
			query = query.Where("user_id = ?", filter.UserID)
		}
		if filter.ActivityType != enum.ActivityTypeAll {
			query = query.Where("activity_type = ?", filter.ActivityType)
		}
		if !filter.StartDate.IsZero() && !filter.EndDate.IsZero() {
			query = query.Where("activity_timestamp BETWEEN ? AND ?", filter.StartDate, filter.EndDate)
		}

		// Apply cursor conditions if cursor exists
		if cursor != nil {
			query = query.Where("(activity_timestamp, sequence) <= (?, ?)", cursor.Timestamp, cursor.Sequence)
		}

		// Order by timestamp and sequence for stable pagination
		query = query.Order("activity_timestamp DESC", "sequence DESC").
			Limit(limit + 1) // Get one extra to determine if there are more results

		if err := query.Scan(ctx); err != nil {
			return fmt.Errorf("failed to get logs: %w", err)
		}

		if len(logs) > limit {
			extra := logs[limit]
			nextCursor = &types.LogCursor{
				Timestamp: extra.ActivityTimestamp,
				Sequence:  extra.Sequence,
			}
			logs = logs[:limit]
		}

		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return logs, nextCursor, nil
}

// GetAllLogs streams every audit log entry in chronological order to fn in batches.
func (r *ActivityModel) GetAllLogs(
	ctx context.Context, batchSize int, fn func([]*types.AuditLog) error,
) error {
	var lastSequence int64

	for {
		logs, err := dbretry.Operation(ctx, func(ctx context.Context) ([]*types.AuditLog, error) {
			var batch []*types.AuditLog
			err := r.db.NewSelect().Model(&batch).
				Where("sequence > ?", lastSequence).
				Order("sequence ASC").
				Limit(batchSize).
				Scan(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to get log batch: %w", err)
			}
			return batch, nil
		})
		if err != nil {
			return err
		}

		if len(logs) == 0 {
			return nil
		}

		if err := fn(logs); err != nil {
			return err
		}

		lastSequence = logs[len(logs)-1].Sequence

		if len(logs) < batchSize {
			return nil
		}
	}
}
