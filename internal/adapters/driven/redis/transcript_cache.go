package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/athena-core/internal/core/domain"
	"github.com/custodia-labs/athena-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.TranscriptSource = (*TranscriptCache)(nil)

const (
	transcriptPrefix = "athena:transcript:"

	// unavailableMarker is cached for videos without captions.
	unavailableMarker = "-"

	defaultTranscriptTTL  = 24 * time.Hour
	defaultUnavailableTTL = time.Hour
)

// TranscriptCacheConfig holds configuration for the transcript cache
type TranscriptCacheConfig struct {
	// TTL for cached transcripts. Defaults to 24h.
	TTL time.Duration

	// UnavailableTTL for remembering that a video has no transcript. Defaults to 1h.
	UnavailableTTL time.Duration

	Logger *slog.Logger
}

// TranscriptCache wraps a TranscriptSource and caches results in Redis.
// Redis errors never fail a fetch; the cache is bypassed instead.
type TranscriptCache struct {
	client         *redis.Client
	next           driven.TranscriptSource
	ttl            time.Duration
	unavailableTTL time.Duration
	logger         *slog.Logger
}

// NewTranscriptCache creates a caching decorator around next.
func NewTranscriptCache(client *redis.Client, next driven.TranscriptSource, cfg TranscriptCacheConfig) *TranscriptCache {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTranscriptTTL
	}
	if cfg.UnavailableTTL <= 0 {
		cfg.UnavailableTTL = defaultUnavailableTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &TranscriptCache{
		client:         client,
		next:           next,
		ttl:            cfg.TTL,
		unavailableTTL: cfg.UnavailableTTL,
		logger:         cfg.Logger,
	}
}

// Fetch returns the cached transcript or fetches and caches it.
func (c *TranscriptCache) Fetch(ctx context.Context, videoID string) ([]domain.Snippet, error) {
	key := transcriptPrefix + videoID

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if string(data) == unavailableMarker {
			return nil, domain.ErrNotAvailable
		}
		var snippets []domain.Snippet
		if jerr := json.Unmarshal(data, &snippets); jerr == nil {
			return snippets, nil
		}
		c.logger.Warn("discarding corrupt cached transcript", "video_id", videoID)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("transcript cache read failed", "video_id", videoID, "error", err)
	}

	snippets, err := c.next.Fetch(ctx, videoID)
	if errors.Is(err, domain.ErrNotAvailable) {
		c.store(ctx, key, []byte(unavailableMarker), c.unavailableTTL)
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	if data, jerr := json.Marshal(snippets); jerr == nil {
		c.store(ctx, key, data, c.ttl)
	}
	return snippets, nil
}

// Invalidate drops the cached entry for a video.
func (c *TranscriptCache) Invalidate(ctx context.Context, videoID string) error {
	return c.client.Del(ctx, transcriptPrefix+videoID).Err()
}

func (c *TranscriptCache) store(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.logger.Warn("transcript cache write failed", "key", key, "error", err)
	}
}
