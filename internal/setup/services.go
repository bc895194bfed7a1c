package setup

import (
	"context"
	"fmt"
	"time"

	"github.com/robalyx/guardian/internal/ai"
	"github.com/robalyx/guardian/internal/ai/client"
	"github.com/robalyx/guardian/internal/moderation"
	"github.com/robalyx/guardian/internal/moderation/sampler"
	"github.com/robalyx/guardian/internal/notify"
	"github.com/robalyx/guardian/internal/redis"
	"github.com/robalyx/guardian/internal/trust"
	"go.uber.org/zap"
)

// Services holds the moderation pipeline and trust manager built on top of an App.
type Services struct {
	Pipeline *moderation.Pipeline
	Trust    *trust.Manager
	closers  []func()
}

// NewServices wires the analysis backends, the frame sampler, the verdict
// cache and the ban notifier into the moderation pipeline and trust manager.
func NewServices(ctx context.Context, app *App) (*Services, error) {
	common := &app.Config.Common
	logger := app.Logger
	services := &Services{}

	// Text backend
	genaiClient, err := ai.NewGenAIClient(ctx, &common.TextBackend)
	if err != nil {
		return nil, err
	}
	services.closers = append(services.closers, func() { genaiClient.Close() })

	textGuard := client.NewGuard("text_backend", &common.CircuitBreaker, common.TextBackend.MaxConcurrent, logger)
	textAnalyzer := ai.NewTextAnalyzer(
		ai.NewGeminiGenerator(genaiClient, &common.TextBackend),
		textGuard,
		time.Duration(common.TextBackend.Timeout)*time.Millisecond,
		logger,
	)

	// Image backend, shared by still images and video frames
	imageGuard := client.NewGuard("image_backend", &common.CircuitBreaker, common.ImageBackend.MaxConcurrent, logger)
	imageAnalyzer := ai.NewImageAnalyzer(&common.ImageBackend, imageGuard, logger)

	// Frame sampler
	frameSampler := sampler.New(
		sampler.NewFFmpegExtractor(common.Moderation.FFmpegPath),
		common.Moderation.TempDir,
		common.Moderation.MaxFrames,
		logger,
	)

	// Verdict cache
	var cache moderation.VerdictCache
	if common.Redis.CacheEnabled {
		redisClient, err := app.RedisManager.GetClient(redis.CacheDBIndex)
		if err != nil {
			services.Close()
			return nil, err
		}
		cache = redis.NewVerdictCache(redisClient, time.Duration(common.Redis.CacheTTL)*time.Second, logger)
	}

	services.Pipeline = moderation.NewPipeline(
		textAnalyzer,
		imageAnalyzer,
		frameSampler,
		moderation.NewAggregator(common.Moderation.VideoFlagThreshold),
		moderation.Options{
			FrameRate:           common.Moderation.FrameRate,
			MaxConcurrentFrames: common.Moderation.MaxConcurrentFrames,
			TempDir:             common.Moderation.TempDir,
			Cache:               cache,
		},
		logger,
	)

	// Ban notifier
	var notifier trust.BanNotifier = notify.Noop{}
	if common.Notify.WebhookURL != "" {
		webhook, err := notify.NewWebhook(common.Notify.WebhookURL, logger)
		if err != nil {
			services.Close()
			return nil, fmt.Errorf("failed to create ban notifier: %w", err)
		}
		services.closers = append(services.closers, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			webhook.Close(ctx)
		})
		notifier = webhook
	}

	services.Trust = trust.NewManager(
		app.DB.Service().Trust(), notifier, common.Moderation.BanThreshold, logger,
	)

	logger.Info("Moderation services initialized",
		zap.Bool("verdictCache", cache != nil),
		zap.Bool("banWebhook", common.Notify.WebhookURL != ""),
		zap.Int("banThreshold", services.Trust.Threshold()),
		zap.Float64("videoFlagThreshold", common.Moderation.VideoFlagThreshold))

	return services, nil
}

// Close releases backend clients.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
