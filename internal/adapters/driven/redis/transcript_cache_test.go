package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/athena-core/internal/core/domain"
	"github.com/custodia-labs/athena-core/internal/core/ports/driven/mocks"
)

func sampleTranscript() []domain.Snippet {
	return []domain.Snippet{
		{Text: "welcome back", Start: 0, Duration: 2.5},
		{Text: "today we talk about rust", Start: 2.5, Duration: 3},
	}
}

func TestTranscriptCache_MissThenHit(t *testing.T) {
	client, mr := setupTestRedis(t)
	source := mocks.NewMockTranscriptSource()
	source.Set("vid", sampleTranscript())
	cache := NewTranscriptCache(client, source, TranscriptCacheConfig{TTL: time.Hour})
	ctx := context.Background()

	first, err := cache.Fetch(ctx, "vid")
	require.NoError(t, err)
	assert.Equal(t, sampleTranscript(), first)
	assert.True(t, mr.Exists(transcriptPrefix+"vid"))
	assert.Equal(t, time.Hour, mr.TTL(transcriptPrefix+"vid"))

	second, err := cache.Fetch(ctx, "vid")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"vid"}, source.Fetched())
}

func TestTranscriptCache_RemembersUnavailable(t *testing.T) {
	client, mr := setupTestRedis(t)
	source := mocks.NewMockTranscriptSource()
	cache := NewTranscriptCache(client, source, TranscriptCacheConfig{})
	ctx := context.Background()

	_, err := cache.Fetch(ctx, "silent")
	assert.ErrorIs(t, err, domain.ErrNotAvailable)
	_, err = cache.Fetch(ctx, "silent")
	assert.ErrorIs(t, err, domain.ErrNotAvailable)

	assert.Len(t, source.Fetched(), 1)
	assert.Equal(t, defaultUnavailableTTL, mr.TTL(transcriptPrefix+"silent"))

	mr.FastForward(defaultUnavailableTTL + time.Second)
	_, _ = cache.Fetch(ctx, "silent")
	assert.Len(t, source.Fetched(), 2)
}

func TestTranscriptCache_ProviderErrorsNotCached(t *testing.T) {
	client, mr := setupTestRedis(t)
	source := mocks.NewMockTranscriptSource()
	source.SetError("vid", domain.ErrProvider)
	cache := NewTranscriptCache(client, source, TranscriptCacheConfig{})

	_, err := cache.Fetch(context.Background(), "vid")
	assert.ErrorIs(t, err, domain.ErrProvider)
	assert.False(t, mr.Exists(transcriptPrefix+"vid"))
}

func TestTranscriptCache_CorruptEntryRefetched(t *testing.T) {
	client, mr := setupTestRedis(t)
	source := mocks.NewMockTranscriptSource()
	source.Set("vid", sampleTranscript())
	require.NoError(t, mr.Set(transcriptPrefix+"vid", "{not json"))
	cache := NewTranscriptCache(client, source, TranscriptCacheConfig{})

	got, err := cache.Fetch(context.Background(), "vid")
	require.NoError(t, err)
	assert.Equal(t, sampleTranscript(), got)
	assert.Len(t, source.Fetched(), 1)
}

func TestTranscriptCache_RedisDownFallsThrough(t *testing.T) {
	client, mr := setupTestRedis(t)
	source := mocks.NewMockTranscriptSource()
	source.Set("vid", sampleTranscript())
	cache := NewTranscriptCache(client, source, TranscriptCacheConfig{})
	mr.Close()

	got, err := cache.Fetch(context.Background(), "vid")
	require.NoError(t, err)
	assert.Equal(t, sampleTranscript(), got)
}

func TestTranscriptCache_Invalidate(t *testing.T) {
	client, mr := setupTestRedis(t)
	source := mocks.NewMockTranscriptSource()
	source.Set("vid", sampleTranscript())
	cache := NewTranscriptCache(client, source, TranscriptCacheConfig{})
	ctx := context.Background()

	_, err := cache.Fetch(ctx, "vid")
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(ctx, "vid"))
	assert.False(t, mr.Exists(transcriptPrefix+"vid"))

	_, err = cache.Fetch(ctx, "vid")
	require.NoError(t, err)
	assert.Len(t, source.Fetched(), 2)
	assert.False(t, errors.Is(err, domain.ErrNotAvailable))
}
