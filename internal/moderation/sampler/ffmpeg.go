package sampler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/robalyx/guardian/internal/moderation"
)

// framePattern is the output naming used for extracted frames.
const framePattern = "%06d.png"

// Extractor writes still frames of a video into a directory.
type Extractor interface {
	Extract(ctx context.Context, videoPath, outputDir string, fps float64, maxFrames int) error
}

// FFmpegExtractor extracts frames by running the ffmpeg binary.
type FFmpegExtractor struct {
	Binary string
}

// NewFFmpegExtractor creates an extractor for the given ffmpeg binary.
// An empty path resolves "ffmpeg" from PATH.
func NewFFmpegExtractor(binary string) *FFmpegExtractor {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpegExtractor{Binary: binary}
}

// Extract runs ffmpeg with a fixed-rate frame filter. The process is killed
// when ctx is cancelled.
func (e *FFmpegExtractor) Extract(ctx context.Context, videoPath, outputDir string, fps float64, maxFrames int) error {
	args := []string{
		"-nostdin",
		"-v", "error",
		"-i", videoPath,
		"-vf", "fps=" + strconv.FormatFloat(fps, 'f', -1, 64),
	}
	if maxFrames > 0 {
		args = append(args, "-frames:v", strconv.Itoa(maxFrames))
	}
	args = append(args, filepath.Join(outputDir, framePattern))

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.Binary, args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("%w: %s", moderation.ErrDecode, strings.TrimSpace(stderr.String()))
		}
		return fmt.Errorf("%w: failed to run ffmpeg: %w", moderation.ErrIO, err)
	}

	return nil
}
