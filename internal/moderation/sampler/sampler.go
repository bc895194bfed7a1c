package sampler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/robalyx/guardian/internal/moderation"
	"go.uber.org/zap"
)

// Sampler turns a video file into an ordered sequence of frame units.
// Each call works in its own temporary directory which is removed before
// the call returns.
type Sampler struct {
	extractor Extractor
	tempRoot  string
	maxFrames int
	logger    *zap.Logger
}

// New creates a Sampler. Frame directories are created under tempRoot, or
// the system temporary directory when tempRoot is empty. A positive
// maxFrames caps the number of frames extracted per video.
func New(extractor Extractor, tempRoot string, maxFrames int, logger *zap.Logger) *Sampler {
	return &Sampler{
		extractor: extractor,
		tempRoot:  tempRoot,
		maxFrames: maxFrames,
		logger:    logger.Named("sampler"),
	}
}

// Sample extracts frames at fps frames per second. A non-positive fps uses
// moderation.DefaultFrameRate.
func (s *Sampler) Sample(ctx context.Context, videoPath string, fps float64) ([]*moderation.ContentUnit, error) {
	if fps <= 0 {
		fps = moderation.DefaultFrameRate
	}

	dir, err := os.MkdirTemp(s.tempRoot, "frames-*")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create frame directory: %w", moderation.ErrIO, err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			s.logger.Error("Failed to remove frame directory",
				zap.Error(err),
				zap.String("dir", dir))
		}
	}()

	if err := s.extractor.Extract(ctx, videoPath, dir, fps, s.maxFrames); err != nil {
		return nil, err
	}

	// os.ReadDir sorts by name so zero-padded frames come back in timestamp order
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list frames: %w", moderation.ErrIO, err)
	}

	units := make([]*moderation.ContentUnit, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".png") {
			continue
		}
		if s.maxFrames > 0 && len(units) >= s.maxFrames {
			break
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read frame %s: %w", moderation.ErrIO, entry.Name(), err)
		}

		index := len(units)
		units = append(units, moderation.NewFrameUnit(data, index+1, float64(index)/fps))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.logger.Debug("Sampled video",
		zap.String("video", filepath.Base(videoPath)),
		zap.Float64("fps", fps),
		zap.Int("frames", len(units)))

	return units, nil
}
