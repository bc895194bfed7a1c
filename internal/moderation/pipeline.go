package moderation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	// DefaultFrameRate is the sampling rate used when none is configured.
	DefaultFrameRate = 1.0
	// DefaultMaxConcurrentFrames bounds per-request frame analysis fan-out.
	DefaultMaxConcurrentFrames = 4
)

// Options configures a Pipeline.
type Options struct {
	FrameRate           float64
	MaxConcurrentFrames int
	TempDir             string
	Cache               VerdictCache
}

// Pipeline dispatches content to the matching analyzer and turns verdicts
// into results.
type Pipeline struct {
	text       Analyzer
	image      Analyzer
	sampler    FrameSampler
	aggregator *Aggregator
	cache      VerdictCache
	tracer     trace.Tracer
	logger     *zap.Logger
	frameRate  float64
	maxFrames  int
	tempDir    string
}

// NewPipeline creates a Pipeline from its analyzers and sampler.
func NewPipeline(
	text, image Analyzer, sampler FrameSampler, aggregator *Aggregator, opts Options, logger *zap.Logger,
) *Pipeline {
	if opts.FrameRate <= 0 {
		opts.FrameRate = DefaultFrameRate
	}
	if opts.MaxConcurrentFrames <= 0 {
		opts.MaxConcurrentFrames = DefaultMaxConcurrentFrames
	}
	if aggregator == nil {
		aggregator = NewAggregator(DefaultVideoFlagThreshold)
	}

	return &Pipeline{
		text:       text,
		image:      image,
		sampler:    sampler,
		aggregator: aggregator,
		cache:      opts.Cache,
		tracer:     otel.Tracer("github.com/robalyx/guardian/internal/moderation"),
		logger:     logger.Named("pipeline"),
		frameRate:  opts.FrameRate,
		maxFrames:  opts.MaxConcurrentFrames,
		tempDir:    opts.TempDir,
	}
}

// ModerateText analyzes a piece of text.
func (p *Pipeline) ModerateText(ctx context.Context, text string) (*Result, error) {
	return p.Run(ctx, NewTextUnit(text))
}

// ModerateImage analyzes a single image.
func (p *Pipeline) ModerateImage(ctx context.Context, data []byte) (*Result, error) {
	return p.Run(ctx, NewImageUnit(data, ""))
}

// Run dispatches a single content unit to its analyzer.
func (p *Pipeline) Run(ctx context.Context, unit *ContentUnit) (result *Result, err error) {
	if unit == nil {
		return nil, fmt.Errorf("%w: missing content", ErrInput)
	}

	kind := strings.ToLower(unit.Kind.String())
	ctx, span := p.tracer.Start(ctx, "moderation."+kind)
	start := time.Now()
	defer func() {
		p.finish(span, kind, start, result, err)
	}()

	switch unit.Kind {
	case ContentKindText:
		if strings.TrimSpace(string(unit.Payload)) == "" {
			return nil, fmt.Errorf("%w: text is required", ErrInput)
		}
		return p.runText(ctx, unit)
	case ContentKindImage, ContentKindVideoFrame:
		if len(unit.Payload) == 0 {
			return nil, fmt.Errorf("%w: image is required", ErrInput)
		}
		return p.runSingle(ctx, p.image, unit)
	default:
		return nil, fmt.Errorf("%w: unsupported content kind %s", ErrInput, unit.Kind)
	}
}

// ModerateVideo samples frames from the uploaded video, analyzes them
// concurrently and aggregates the verdicts.
func (p *Pipeline) ModerateVideo(ctx context.Context, data []byte, filename string) (result *Result, err error) {
	ctx, span := p.tracer.Start(ctx, "moderation.video",
		trace.WithAttributes(attribute.Int("video.bytes", len(data))))
	start := time.Now()
	defer func() {
		p.finish(span, "video", start, result, err)
	}()

	if len(data) == 0 {
		return nil, fmt.Errorf("%w: video is required", ErrInput)
	}

	// Stage upload in an invocation-scoped file
	videoPath, cleanup, err := p.stageUpload(data, filename)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	// Extract frames
	frames, err := p.sampler.Sample(ctx, videoPath, p.frameRate)
	if err != nil {
		return nil, fmt.Errorf("failed to sample video: %w", err)
	}
	span.SetAttributes(attribute.Int("video.frames", len(frames)))

	// Analyze frames and wait for every call to settle
	verdicts := p.analyzeFrames(ctx, frames)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	aggregate := p.aggregator.Aggregate(verdicts)

	p.logger.Debug("Video moderated",
		zap.String("filename", filename),
		zap.Int("frames", len(frames)),
		zap.Int("flaggedFrames", len(aggregate.Details)),
		zap.Bool("flagged", aggregate.Flagged))

	return &Result{
		Flagged:      aggregate.Flagged,
		Reason:       aggregate.Reason,
		FrameDetails: aggregate.Details,
	}, nil
}

// runText consults the verdict cache before calling the text analyzer.
func (p *Pipeline) runText(ctx context.Context, unit *ContentUnit) (*Result, error) {
	text := string(unit.Payload)

	if p.cache != nil {
		verdict, ok, err := p.cache.Get(ctx, text)
		switch {
		case err != nil:
			verdictCacheLookups.WithLabelValues("error").Inc()
			p.logger.Warn("Failed to read verdict cache", zap.Error(err))
		case ok:
			verdictCacheLookups.WithLabelValues("hit").Inc()
			return &Result{Flagged: verdict.Flagged, Reason: verdict.Reason}, nil
		default:
			verdictCacheLookups.WithLabelValues("miss").Inc()
		}
	}

	result, err := p.runSingle(ctx, p.text, unit)
	if err != nil || result.Degraded || p.cache == nil {
		return result, err
	}

	verdict := &Verdict{Flagged: result.Flagged, Reason: result.Reason, UnitRef: unit.SourceRef}
	if err := p.cache.Set(ctx, text, verdict); err != nil {
		p.logger.Warn("Failed to write verdict cache", zap.Error(err))
	}

	return result, nil
}

// runSingle performs one analyzer call. Backend failures degrade to an
// unflagged result instead of failing the request.
func (p *Pipeline) runSingle(ctx context.Context, analyzer Analyzer, unit *ContentUnit) (*Result, error) {
	verdict, err := analyzer.Analyze(ctx, unit)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		p.logger.Error("Analysis backend failed",
			zap.Error(err),
			zap.String("kind", unit.Kind.String()),
			zap.String("unit", unit.SourceRef))

		return &Result{
			Flagged:  false,
			Reason:   degradedReason(unit.Kind),
			Degraded: true,
		}, nil
	}

	return &Result{Flagged: verdict.Flagged, Reason: verdict.Reason}, nil
}

// analyzeFrames fans frame analysis out over a bounded pool. Failures are
// recorded as indeterminate verdicts so the output always has one entry per
// frame, in frame order.
func (p *Pipeline) analyzeFrames(ctx context.Context, frames []*ContentUnit) []*Verdict {
	verdicts := make([]*Verdict, len(frames))
	wp := pool.New().WithMaxGoroutines(p.maxFrames)

	for i, frame := range frames {
		wp.Go(func() {
			verdicts[i] = p.analyzeFrame(ctx, frame)
		})
	}
	wp.Wait()

	return verdicts
}

func (p *Pipeline) analyzeFrame(ctx context.Context, frame *ContentUnit) *Verdict {
	indeterminate := &Verdict{UnitRef: frame.SourceRef, Indeterminate: true}

	// Abandon frames still queued after cancellation
	if ctx.Err() != nil {
		frameVerdicts.WithLabelValues("abandoned").Inc()
		return indeterminate
	}

	verdict, err := p.image.Analyze(ctx, frame)
	if err != nil {
		frameVerdicts.WithLabelValues("indeterminate").Inc()
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			p.logger.Warn("Frame analysis failed",
				zap.Error(err),
				zap.String("frame", frame.SourceRef))
		}
		return indeterminate
	}

	out := *verdict
	out.UnitRef = frame.SourceRef
	out.Indeterminate = false

	if out.Flagged {
		frameVerdicts.WithLabelValues("flagged").Inc()
	} else {
		frameVerdicts.WithLabelValues("clean").Inc()
	}

	return &out
}

// stageUpload writes the upload into a temporary file. The returned cleanup
// function removes it.
func (p *Pipeline) stageUpload(data []byte, filename string) (string, func(), error) {
	ext := filepath.Ext(filepath.Base(filename))
	if len(ext) > 10 {
		ext = ""
	}

	file, err := os.CreateTemp(p.tempDir, "upload-*"+ext)
	if err != nil {
		return "", nil, fmt.Errorf("%w: failed to create upload file: %w", ErrIO, err)
	}

	cleanup := func() {
		if err := os.Remove(file.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
			p.logger.Warn("Failed to remove staged upload",
				zap.Error(err),
				zap.String("path", file.Name()))
		}
	}

	_, writeErr := file.Write(data)
	closeErr := file.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("%w: failed to write upload file: %w", ErrIO, err)
	}

	return file.Name(), cleanup, nil
}

// finish closes the span and records metrics for one invocation.
func (p *Pipeline) finish(span trace.Span, kind string, start time.Time, result *Result, err error) {
	moderationDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	recordOutcome(kind, result, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(
			attribute.Bool("moderation.flagged", result.Flagged),
			attribute.Bool("moderation.degraded", result.Degraded))
	}
	span.End()
}
