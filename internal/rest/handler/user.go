package handler

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/robalyx/guardian/internal/database/types"
	restTypes "github.com/robalyx/guardian/internal/rest/types"
	"github.com/robalyx/guardian/internal/trust"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

const (
	messageBanned  = "User has been banned"
	messageFlagged = "User flagged successfully"
)

var errInvalidUserID = errors.New("userId must be a positive integer")

// Flagger records violations against users.
type Flagger interface {
	Flag(ctx context.Context, userID int64) (*trust.FlagResult, error)
}

// UserGetter loads users by ID.
type UserGetter interface {
	GetUser(ctx context.Context, userID int64) (*types.User, error)
}

// UserHandler handles user-related REST endpoints.
type UserHandler struct {
	flagger Flagger
	users   UserGetter
	logger  *zap.Logger
}

// NewUserHandler creates a new user handler.
func NewUserHandler(flagger Flagger, users UserGetter, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		flagger: flagger,
		users:   users,
		logger:  logger.Named("user_handler"),
	}
}

// FlagUser handles PUT /v1/moderate/flag.
func (h *UserHandler) FlagUser(w http.ResponseWriter, req bunrouter.Request) error {
	var body restTypes.FlagUserRequest
	if err := decodeJSON(w, req.Request, &body); err != nil {
		return writeError(w, http.StatusBadRequest, "Invalid request body.")
	}

	userID, err := parseUserID(body.UserID)
	if err != nil {
		return writeError(w, http.StatusBadRequest, "A valid userId is required.")
	}

	// Apply the flag event
	result, err := h.flagger.Flag(req.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrUserNotFound):
			return writeError(w, http.StatusNotFound, "User not found.")
		case errors.Is(err, trust.ErrInvalidUserID):
			return writeError(w, http.StatusBadRequest, "A valid userId is required.")
		case errors.Is(err, context.Canceled) && req.Context().Err() != nil:
			return nil
		default:
			h.logger.Error("Failed to flag user", zap.Error(err), zap.Int64("userID", userID))
			return writeError(w, http.StatusInternalServerError, "Failed to flag the user.")
		}
	}

	// Load the updated user for the response
	user, err := h.users.GetUser(req.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to load flagged user", zap.Error(err), zap.Int64("userID", userID))
		return writeError(w, http.StatusInternalServerError, "Failed to flag the user.")
	}

	message := messageFlagged
	if result.Banned() {
		message = messageBanned
	}

	return writeJSON(w, http.StatusOK, restTypes.FlagUserResponse{
		Message: message,
		User: &restTypes.User{
			ID:        user.ID,
			Username:  user.Username,
			FlagCount: result.Record.FlagCount,
			Banned:    result.Record.Banned,
			UpdatedAt: user.UpdatedAt,
		},
	})
}

// parseUserID accepts a JSON number or a numeric string.
func parseUserID(raw any) (int64, error) {
	var id int64

	switch v := raw.(type) {
	case int64:
		id = v
	case float64:
		if v != math.Trunc(v) || v > math.MaxInt64 || v < math.MinInt64 {
			return 0, errInvalidUserID
		}
		id = int64(v)
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, errInvalidUserID
		}
		id = parsed
	default:
		return 0, errInvalidUserID
	}

	if id <= 0 {
		return 0, errInvalidUserID
	}
	return id, nil
}
