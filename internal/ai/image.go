package ai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/robalyx/guardian/internal/ai/client"
	"github.com/robalyx/guardian/internal/moderation"
	"github.com/robalyx/guardian/internal/setup/config"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// maxResponseSize caps the classifier response body read into memory.
const maxResponseSize = 1 << 20

// ImageAnalyzer classifies images by posting them to an HTTP classifier.
type ImageAnalyzer struct {
	httpClient *http.Client
	url        string
	token      string
	threshold  float64
	guard      *client.Guard
	logger     *zap.Logger
}

// NewImageAnalyzer creates an ImageAnalyzer for the configured classifier endpoint.
func NewImageAnalyzer(cfg *config.ImageBackend, guard *client.Guard, logger *zap.Logger) *ImageAnalyzer {
	httpClient := &http.Client{
		Timeout:   time.Duration(cfg.Timeout) * time.Millisecond,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	return &ImageAnalyzer{
		httpClient: httpClient,
		url:        cfg.URL,
		token:      cfg.Token,
		threshold:  cfg.NSFWScoreThreshold,
		guard:      guard,
		logger:     logger.Named("image_analyzer"),
	}
}

// Analyze implements moderation.Analyzer.
func (a *ImageAnalyzer) Analyze(ctx context.Context, unit *moderation.ContentUnit) (*moderation.Verdict, error) {
	verdict, err := client.Call(ctx, a.guard, func(ctx context.Context) (*moderation.Verdict, error) {
		body, err := a.send(ctx, unit.Payload)
		if err != nil {
			return nil, err
		}
		return decodeImageVerdict(body, a.threshold)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	result := *verdict
	result.UnitRef = unit.SourceRef
	return &result, nil
}

// send posts the image and returns the raw response body.
func (a *ImageAnalyzer) send(ctx context.Context, payload []byte) ([]byte, error) {
	contentType := ApplicationOctetStream
	if mtype := mimetype.Detect(payload); mtype.Is("image/png") || mtype.Is("image/jpeg") ||
		mtype.Is("image/gif") || mtype.Is("image/webp") || mtype.Is("image/bmp") {
		contentType = mtype.String()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build request: %w", moderation.ErrBackendUnavailable, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", ApplicationJSON)
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", moderation.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", moderation.ErrBackendUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		a.logger.Warn("Image classifier returned error status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body))
		return nil, statusError(resp.StatusCode)
	}

	return body, nil
}

// statusError classifies a non-2xx classifier response.
func statusError(status int) error {
	switch {
	case status >= 500,
		status == http.StatusTooManyRequests,
		status == http.StatusRequestTimeout,
		status == http.StatusUnauthorized,
		status == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", moderation.ErrBackendUnavailable, status)
	default:
		return fmt.Errorf("%w: status %d", moderation.ErrBackendFormat, status)
	}
}
