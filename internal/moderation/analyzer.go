package moderation

import "context"

// Analyzer classifies a single content unit.
//
// Implementations return errors wrapping ErrBackendUnavailable for transport
// failures and ErrBackendFormat for responses that cannot be decoded.
type Analyzer interface {
	Analyze(ctx context.Context, unit *ContentUnit) (*Verdict, error)
}

// FrameSampler extracts still frames from a video file at a fixed rate.
//
// Frames are returned in ascending timestamp order. Implementations must
// release all temporary storage before returning, on every path.
type FrameSampler interface {
	Sample(ctx context.Context, videoPath string, fps float64) ([]*ContentUnit, error)
}

// VerdictCache stores definitive text verdicts.
type VerdictCache interface {
	Get(ctx context.Context, text string) (*Verdict, bool, error)
	Set(ctx context.Context, text string, verdict *Verdict) error
}

// AnalyzerFunc adapts a function into an Analyzer.
type AnalyzerFunc func(ctx context.Context, unit *ContentUnit) (*Verdict, error)

// Analyze calls f(ctx, unit).
func (f AnalyzerFunc) Analyze(ctx context.Context, unit *ContentUnit) (*Verdict, error) {
	return f(ctx, unit)
}
