package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/robalyx/guardian/internal/moderation"
	restTypes "github.com/robalyx/guardian/internal/rest/types"
	"github.com/robalyx/guardian/internal/setup/config"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

// AllowedVideoTypes lists the accepted video MIME types.
var AllowedVideoTypes = []string{"video/mp4", "video/x-matroska", "video/avi", "video/x-msvideo"}

// Moderator runs content through the moderation pipeline.
type Moderator interface {
	ModerateText(ctx context.Context, text string) (*moderation.Result, error)
	ModerateImage(ctx context.Context, data []byte) (*moderation.Result, error)
	ModerateVideo(ctx context.Context, data []byte, filename string) (*moderation.Result, error)
}

// ModerationHandler handles content moderation endpoints.
type ModerationHandler struct {
	moderator    Moderator
	maxImageSize int64
	maxVideoSize int64
	logger       *zap.Logger
}

// NewModerationHandler creates a new moderation handler.
func NewModerationHandler(moderator Moderator, cfg *config.ServerConfig, logger *zap.Logger) *ModerationHandler {
	return &ModerationHandler{
		moderator:    moderator,
		maxImageSize: cfg.MaxImageSize,
		maxVideoSize: cfg.MaxVideoSize,
		logger:       logger.Named("moderation_handler"),
	}
}

// ModerateText handles POST /v1/moderate/text.
func (h *ModerationHandler) ModerateText(w http.ResponseWriter, req bunrouter.Request) error {
	var body restTypes.ModerateTextRequest
	if err := decodeJSON(w, req.Request, &body); err != nil || body.Text == "" {
		return writeError(w, http.StatusBadRequest, "Text is required for moderation.")
	}

	result, err := h.moderator.ModerateText(req.Context(), body.Text)
	if err != nil {
		return h.writeFailure(w, req, "text", err)
	}

	return writeJSON(w, http.StatusOK, moderationResponse(result))
}

// ModerateImage handles POST /v1/moderate/image.
func (h *ModerationHandler) ModerateImage(w http.ResponseWriter, req bunrouter.Request) error {
	file, err := readUpload(w, req.Request, "image", h.maxImageSize)
	if err != nil {
		return h.writeUploadError(w, "image", err)
	}

	result, err := h.moderator.ModerateImage(req.Context(), file.data)
	if err != nil {
		return h.writeFailure(w, req, "image", err)
	}

	return writeJSON(w, http.StatusOK, moderationResponse(result))
}

// ModerateVideo handles POST /v1/moderate/video.
func (h *ModerationHandler) ModerateVideo(w http.ResponseWriter, req bunrouter.Request) error {
	file, err := readUpload(w, req.Request, "video", h.maxVideoSize)
	if err != nil {
		return h.writeUploadError(w, "video", err)
	}

	if !isAllowedVideo(file) {
		h.logger.Debug("Rejected video upload",
			zap.String("filename", file.filename),
			zap.String("contentType", file.contentType))
		return writeError(w, http.StatusUnsupportedMediaType, "Invalid file type. Only video files are allowed.")
	}

	result, err := h.moderator.ModerateVideo(req.Context(), file.data, file.filename)
	if err != nil {
		return h.writeFailure(w, req, "video", err)
	}

	details := make([]restTypes.FrameDetail, 0, len(result.FrameDetails))
	for _, v := range result.FrameDetails {
		details = append(details, restTypes.FrameDetail{
			Flagged: v.Flagged,
			Reason:  v.Reason,
			Frame:   v.UnitRef,
		})
	}

	response := restTypes.VideoModerationResponse{
		Flagged:      result.Flagged,
		FrameDetails: details,
	}
	if result.Flagged {
		response.Reason = &result.Reason
	}

	return writeJSON(w, http.StatusOK, response)
}

// writeUploadError maps upload read failures to responses.
func (h *ModerationHandler) writeUploadError(w http.ResponseWriter, kind string, err error) error {
	switch {
	case errors.Is(err, errTooLarge):
		return writeError(w, http.StatusRequestEntityTooLarge, "The "+kind+" file is too large.")
	case errors.Is(err, errMissingFile):
		return writeError(w, http.StatusBadRequest, "No "+kind+" file uploaded.")
	default:
		h.logger.Debug("Malformed upload", zap.String("kind", kind), zap.Error(err))
		return writeError(w, http.StatusBadRequest, "Malformed "+kind+" upload.")
	}
}

// writeFailure maps pipeline errors to responses.
func (h *ModerationHandler) writeFailure(w http.ResponseWriter, req bunrouter.Request, kind string, err error) error {
	switch {
	case errors.Is(err, moderation.ErrInput):
		return writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		h.logger.Warn("Moderation timed out", zap.String("kind", kind), zap.Error(err))
		return writeError(w, http.StatusGatewayTimeout, "Timed out processing the "+kind+".")
	case errors.Is(err, context.Canceled) && req.Context().Err() != nil:
		h.logger.Debug("Client went away", zap.String("kind", kind))
		return nil
	default:
		h.logger.Error("Failed to moderate content", zap.String("kind", kind), zap.Error(err))
		return writeError(w, http.StatusInternalServerError, "Failed to process the "+kind+".")
	}
}

// isAllowedVideo checks the sniffed type, falling back to the declared type
// when the content is not recognized.
func isAllowedVideo(file *upload) bool {
	detected := mimetype.Detect(file.data)
	for _, allowed := range AllowedVideoTypes {
		if detected.Is(allowed) {
			return true
		}
	}
	if !detected.Is("application/octet-stream") {
		return false
	}
	return mimetype.EqualsAny(file.contentType, AllowedVideoTypes...)
}

func moderationResponse(result *moderation.Result) restTypes.ModerationResponse {
	reason := result.Reason
	if reason == "" {
		reason = restTypes.ReasonNone
	}
	return restTypes.ModerationResponse{
		Flagged: result.Flagged,
		Reason:  reason,
	}
}
