package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/robalyx/guardian/internal/database/types"
	"github.com/robalyx/guardian/internal/database/types/enum"
	restTypes "github.com/robalyx/guardian/internal/rest/types"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

// DefaultLogsPageSize is the page size used when no limit is given.
const DefaultLogsPageSize = 50

var errInvalidCursor = errors.New("invalid cursor")

// LogLister pages through the audit log.
type LogLister interface {
	GetLogs(
		ctx context.Context, filter types.ActivityFilter, cursor *types.LogCursor, limit int,
	) ([]*types.AuditLog, *types.LogCursor, error)
}

// LogHandler handles audit log endpoints.
type LogHandler struct {
	lister  LogLister
	maxSize int
	logger  *zap.Logger
}

// NewLogHandler creates a new log handler.
func NewLogHandler(lister LogLister, maxPageSize int, logger *zap.Logger) *LogHandler {
	if maxPageSize < 1 {
		maxPageSize = DefaultLogsPageSize
	}
	return &LogHandler{
		lister:  lister,
		maxSize: maxPageSize,
		logger:  logger.Named("log_handler"),
	}
}

// GetLogs handles GET /v1/moderate/logs.
func (h *LogHandler) GetLogs(w http.ResponseWriter, req bunrouter.Request) error {
	query := req.URL.Query()

	// Parse page size
	limit := min(DefaultLogsPageSize, h.maxSize)
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return writeError(w, http.StatusBadRequest, "limit must be a positive integer.")
		}
		limit = min(parsed, h.maxSize)
	}

	// Parse filters
	filter := types.ActivityFilter{ActivityType: enum.ActivityTypeAll}
	if raw := query.Get("userId"); raw != "" {
		userID, err := parseUserID(raw)
		if err != nil {
			return writeError(w, http.StatusBadRequest, "userId must be a positive integer.")
		}
		filter.UserID = userID
	}
	if raw := query.Get("activity"); raw != "" {
		activity, err := enum.ActivityTypeString(raw)
		if err != nil || activity == enum.ActivityTypeAll {
			return writeError(w, http.StatusBadRequest, "Unknown activity type.")
		}
		filter.ActivityType = activity
	}

	var cursor *types.LogCursor
	if raw := query.Get("cursor"); raw != "" {
		parsed, err := DecodeCursor(raw)
		if err != nil {
			return writeError(w, http.StatusBadRequest, "Invalid cursor.")
		}
		cursor = parsed
	}

	logs, next, err := h.lister.GetLogs(req.Context(), filter, cursor, limit)
	if err != nil {
		if errors.Is(err, context.Canceled) && req.Context().Err() != nil {
			return nil
		}
		h.logger.Error("Failed to get logs", zap.Error(err))
		return writeError(w, http.StatusInternalServerError, "Failed to retrieve logs.")
	}

	response := restTypes.GetLogsResponse{
		Logs: make([]restTypes.AuditLog, 0, len(logs)),
	}
	for _, log := range logs {
		response.Logs = append(response.Logs, restTypes.AuditLog{
			ID:        log.Sequence,
			UserID:    log.UserID,
			Activity:  log.ActivityType.String(),
			Timestamp: log.ActivityTimestamp,
		})
	}
	if next != nil {
		response.NextCursor = EncodeCursor(next)
	}

	return writeJSON(w, http.StatusOK, response)
}

// EncodeCursor formats a cursor as "<unix nanos>_<sequence>".
func EncodeCursor(c *types.LogCursor) string {
	return fmt.Sprintf("%d_%d", c.Timestamp.UnixNano(), c.Sequence)
}

// DecodeCursor parses a cursor produced by EncodeCursor.
func DecodeCursor(raw string) (*types.LogCursor, error) {
	nanos, seq, ok := strings.Cut(raw, "_")
	if !ok {
		return nil, errInvalidCursor
	}

	ts, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidCursor, err)
	}
	sequence, err := strconv.ParseInt(seq, 10, 64)
	if err != nil || sequence < 0 {
		return nil, errInvalidCursor
	}

	return &types.LogCursor{
		Timestamp: time.Unix(0, ts).UTC(),
		Sequence:  sequence,
	}, nil
}
