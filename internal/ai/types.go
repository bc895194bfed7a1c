package ai

import "errors"

const (
	// ApplicationJSON is the MIME type for JSON content.
	ApplicationJSON = "application/json"
	// ApplicationOctetStream is the MIME type sent when an image type cannot be detected.
	ApplicationOctetStream = "application/octet-stream"
)

var (
	// ErrModelResponse indicates the model returned no usable content.
	ErrModelResponse = errors.New("model response error")
	// ErrContentBlocked indicates the model refused to process the content.
	ErrContentBlocked = errors.New("content blocked by model safety filters")
)

// ReasonBlocked is the verdict reason used when the model blocks the content itself.
const ReasonBlocked = "Content blocked by safety filters"

// verdictResponse is the minimal verdict contract returned by analysis backends.
type verdictResponse struct {
	Flagged *bool  `json:"flagged"`
	Reason  string `json:"reason"`
}

// labelScore is one entry of an image classifier label/score response.
type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}
