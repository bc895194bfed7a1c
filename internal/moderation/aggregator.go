package moderation

// DefaultVideoFlagThreshold is the share of determinate frames that must be
// flagged, exclusively, before a video is flagged.
const DefaultVideoFlagThreshold = 0.2

// Aggregator reduces per-frame verdicts into a single decision.
type Aggregator struct {
	threshold float64
}

// NewAggregator creates an Aggregator using the given flag ratio threshold.
// Values outside [0, 1) fall back to DefaultVideoFlagThreshold.
func NewAggregator(threshold float64) *Aggregator {
	if threshold < 0 || threshold >= 1 {
		threshold = DefaultVideoFlagThreshold
	}
	return &Aggregator{threshold: threshold}
}

// Threshold returns the configured flag ratio threshold.
func (a *Aggregator) Threshold() float64 {
	return a.threshold
}

// Aggregate computes the flagged ratio over all determinate verdicts.
// Indeterminate verdicts do not count toward the denominator. An input with no
// determinate verdicts produces an unflagged result.
func (a *Aggregator) Aggregate(verdicts []*Verdict) *AggregateResult {
	details := make([]*Verdict, 0)
	determinate := 0

	for _, v := range verdicts {
		if v == nil || v.Indeterminate {
			continue
		}
		determinate++
		if v.Flagged {
			details = append(details, v)
		}
	}

	result := &AggregateResult{Details: details}
	if determinate == 0 {
		return result
	}

	if float64(len(details))/float64(determinate) > a.threshold {
		result.Flagged = true
		result.Reason = ReasonVideoFrames
	}

	return result
}
