package types

import "time"

// ReasonNone is reported when content was not flagged.
const ReasonNone = "None"

// ErrorResponse is returned for rejected requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ModerateTextRequest is the body of the text moderation endpoint.
type ModerateTextRequest struct {
	Text string `json:"text"`
}

// ModerationResponse is the outcome of moderating text or an image.
type ModerationResponse struct {
	Flagged bool   `json:"flagged"`
	Reason  string `json:"reason"`
}

// FrameDetail describes a flagged video frame.
type FrameDetail struct {
	Flagged bool   `json:"flagged"`
	Reason  string `json:"reason,omitempty"`
	Frame   string `json:"frame"`
}

// VideoModerationResponse is the outcome of moderating a video.
type VideoModerationResponse struct {
	Flagged      bool          `json:"flagged"`
	Reason       *string       `json:"reason"`
	FrameDetails []FrameDetail `json:"frameDetails"`
}

// FlagUserRequest is the body of the flag endpoint. The ID may be sent as a
// number or a numeric string.
type FlagUserRequest struct {
	UserID any `json:"userId"`
}

// User represents a user's trust state.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	FlagCount int       `json:"flagCount"`
	Banned    bool      `json:"banned"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FlagUserResponse is returned after a flag event was recorded.
type FlagUserResponse struct {
	Message string `json:"message"`
	User    *User  `json:"user"`
}

// AuditLog is a single trust escalation event.
type AuditLog struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Activity  string    `json:"activity"`
	Timestamp time.Time `json:"timestamp"`
}

// GetLogsResponse is a page of audit log entries, newest first.
type GetLogsResponse struct {
	Logs       []AuditLog `json:"logs"`
	NextCursor string     `json:"nextCursor,omitempty"`
}
