package ai

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/robalyx/guardian/internal/moderation"
)

var codeFencePattern = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\\n?(.*?)\\s*```$")

// noneReasons are reason values that mean no reason was given.
var noneReasons = map[string]struct{}{
	"":     {},
	"none": {},
	"null": {},
	"n/a":  {},
}

// stripCodeFences removes a surrounding markdown code fence, if any.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if match := codeFencePattern.FindStringSubmatch(s); match != nil {
		return strings.TrimSpace(match[1])
	}
	return s
}

// normalizeReason maps placeholder reasons to the empty string.
func normalizeReason(reason string) string {
	reason = strings.TrimSpace(reason)
	if _, ok := noneReasons[strings.ToLower(reason)]; ok {
		return ""
	}
	return reason
}

// decodeVerdict parses a {flagged, reason} response, optionally wrapped in code fences.
func decodeVerdict(raw string) (*moderation.Verdict, error) {
	cleaned := stripCodeFences(raw)

	var resp verdictResponse
	if err := sonic.UnmarshalString(cleaned, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", moderation.ErrBackendFormat, err)
	}
	if resp.Flagged == nil {
		return nil, fmt.Errorf("%w: missing flagged field", moderation.ErrBackendFormat)
	}

	return &moderation.Verdict{
		Flagged: *resp.Flagged,
		Reason:  normalizeReason(resp.Reason),
	}, nil
}

// decodeImageVerdict parses either the {flagged, reason} contract or a
// label/score array. A label/score response is flagged when the nsfw label
// scores at least threshold.
func decodeImageVerdict(body []byte, threshold float64) (*moderation.Verdict, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty response", moderation.ErrBackendFormat)
	}

	if trimmed[0] == '{' {
		return decodeVerdict(string(trimmed))
	}

	// Classifiers return either a flat list or a list per input
	var labels []labelScore
	if err := sonic.Unmarshal(trimmed, &labels); err != nil {
		var nested [][]labelScore
		if nestedErr := sonic.Unmarshal(trimmed, &nested); nestedErr != nil || len(nested) == 0 {
			return nil, fmt.Errorf("%w: %w", moderation.ErrBackendFormat, err)
		}
		labels = nested[0]
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("%w: no labels", moderation.ErrBackendFormat)
	}

	for _, ls := range labels {
		if strings.EqualFold(ls.Label, "nsfw") && ls.Score >= threshold {
			return &moderation.Verdict{
				Flagged: true,
				Reason:  fmt.Sprintf("NSFW content detected (score %.2f)", ls.Score),
			}, nil
		}
	}

	return &moderation.Verdict{}, nil
}
