package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/rueidis"
	"github.com/robalyx/guardian/internal/moderation"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

const (
	// DefaultVerdictTTL defines how long text verdicts remain cached.
	DefaultVerdictTTL = 24 * time.Hour

	// VerdictKeyPrefix identifies text verdict entries in Redis.
	VerdictKeyPrefix = "verdict:text:"
)

// VerdictCache stores definitive text verdicts in Redis keyed by a digest of the
// normalized text, so identical submissions skip the language model.
type VerdictCache struct {
	client rueidis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewVerdictCache creates a verdict cache on the given client.
func NewVerdictCache(client rueidis.Client, ttl time.Duration, logger *zap.Logger) *VerdictCache {
	if ttl <= 0 {
		ttl = DefaultVerdictTTL
	}

	return &VerdictCache{
		client: client,
		ttl:    ttl,
		logger: logger.Named("verdict_cache"),
	}
}

// Key returns the Redis key for a text submission.
func Key(text string) string {
	sum := sha256.Sum256([]byte(norm.NFC.String(text)))
	return VerdictKeyPrefix + hex.EncodeToString(sum[:])
}

// Get retrieves a cached verdict. Returns false when the text has not been seen.
func (c *VerdictCache) Get(ctx context.Context, text string) (*moderation.Verdict, bool, error) {
	key := Key(text)

	data, err := c.client.Do(ctx, c.client.B().Get().Key(key).Build()).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get cached verdict: %w", err)
	}

	var verdict moderation.Verdict
	if err := sonic.Unmarshal(data, &verdict); err != nil {
		c.logger.Warn("Invalid cached verdict", zap.String("key", key), zap.Error(err))
		return nil, false, nil
	}

	c.logger.Debug("Retrieved verdict from cache", zap.String("key", key))
	return &verdict, true, nil
}

// Set caches a verdict for the text.
func (c *VerdictCache) Set(ctx context.Context, text string, verdict *moderation.Verdict) error {
	key := Key(text)

	data, err := sonic.Marshal(verdict)
	if err != nil {
		return fmt.Errorf("failed to marshal verdict: %w", err)
	}

	err = c.client.Do(ctx, c.client.B().Set().Key(key).Value(rueidis.BinaryString(data)).Ex(c.ttl).Build()).Error()
	if err != nil {
		return fmt.Errorf("failed to set cached verdict: %w", err)
	}

	c.logger.Debug("Stored verdict in cache", zap.String("key", key))
	return nil
}
