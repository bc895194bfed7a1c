package moderation

import "fmt"

// ReasonVideoFrames is the reason reported when enough sampled frames are flagged.
const ReasonVideoFrames = "Inappropriate content in video frames"

// ContentUnit is a single item submitted for analysis.
// Units are created per invocation and never mutated after creation.
type ContentUnit struct {
	Kind      ContentKind
	Payload   []byte
	SourceRef string
}

// Verdict is the judgment produced for one ContentUnit.
// An empty Reason means no reason was given.
type Verdict struct {
	Flagged       bool   `json:"flagged"`
	Reason        string `json:"reason,omitempty"`
	UnitRef       string `json:"frame"`
	Indeterminate bool   `json:"-"`
}

// AggregateResult is the decision derived from a sequence of verdicts.
// Details holds the flagged verdicts in the order they were received.
type AggregateResult struct {
	Flagged bool
	Reason  string
	Details []*Verdict
}

// Result is the outcome returned to callers of the pipeline.
type Result struct {
	Flagged      bool
	Reason       string
	FrameDetails []*Verdict
	// Degraded is set when the analysis backend could not be reached and the
	// result is a fail-open placeholder.
	Degraded bool
}

// NewTextUnit creates a text content unit.
func NewTextUnit(text string) *ContentUnit {
	return &ContentUnit{Kind: ContentKindText, Payload: []byte(text), SourceRef: "text"}
}

// NewImageUnit creates an image content unit.
func NewImageUnit(data []byte, ref string) *ContentUnit {
	if ref == "" {
		ref = "image"
	}
	return &ContentUnit{Kind: ContentKindImage, Payload: data, SourceRef: ref}
}

// NewFrameUnit creates a video frame content unit for the frame at the given offset.
func NewFrameUnit(data []byte, index int, offsetSeconds float64) *ContentUnit {
	return &ContentUnit{
		Kind:      ContentKindVideoFrame,
		Payload:   data,
		SourceRef: fmt.Sprintf("frame-%06d.png@%.2fs", index, offsetSeconds),
	}
}

// degradedReason returns the explanatory reason for a fail-open result.
func degradedReason(kind ContentKind) string {
	name := "content"
	switch kind {
	case ContentKindText:
		name = "text"
	case ContentKindImage:
		name = "image"
	case ContentKindVideoFrame:
		name = "video"
	}
	return fmt.Sprintf("Unable to process the %s at the moment.", name)
}
