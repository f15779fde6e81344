package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/custodia-labs/athena-core/internal/core/domain"
	"github.com/custodia-labs/athena-core/internal/core/ports/driven"
)

// Segmenter groups a transcript into sentence-bounded segments and scores
// each one against a target query.
//
// A pass over one transcript works as follows:
//  1. Embed the target once
//  2. Seed a builder from the first snippet
//  3. Append each following snippet and, when it has both neighbours, ask the
//     boundary oracle whether it ends a sentence
//  4. Close the builder when the policy says so, then reseed from the snippet
//     that triggered the close
//  5. Flush the trailing builder unless it repeats the last emitted text
type Segmenter struct {
	oracle   driven.BoundaryOracle
	embedder driven.EmbeddingProvider
	policy   domain.SegmentationPolicy
	logger   *slog.Logger
}

// SegmenterConfig holds dependencies for Segmenter.
type SegmenterConfig struct {
	Oracle   driven.BoundaryOracle
	Embedder driven.EmbeddingProvider
	Policy   domain.SegmentationPolicy
	Logger   *slog.Logger
}

// NewSegmenter creates a new segmenter. A zero Policy uses the defaults.
func NewSegmenter(cfg SegmenterConfig) (*Segmenter, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Oracle == nil || cfg.Embedder == nil {
		return nil, fmt.Errorf("%w: segmenter requires an oracle and an embedder", domain.ErrInvalidInput)
	}

	policy := cfg.Policy
	if policy == (domain.SegmentationPolicy{}) {
		policy = domain.DefaultSegmentationPolicy()
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	return &Segmenter{
		oracle:   cfg.Oracle,
		embedder: cfg.Embedder,
		policy:   policy,
		logger:   logger,
	}, nil
}

// Policy returns the thresholds in use.
func (s *Segmenter) Policy() domain.SegmentationPolicy {
	return s.policy
}

// Segment runs one segmentation pass over a video's transcript.
// An empty transcript yields no segments. Chunk IDs start at 1 for every call.
func (s *Segmenter) Segment(ctx context.Context, videoID string, transcript []domain.Snippet, target string) ([]*domain.ClosedSegment, error) {
	if strings.TrimSpace(target) == "" {
		return nil, fmt.Errorf("%w: target is empty", domain.ErrContractViolation)
	}
	if err := domain.ValidateTranscript(transcript); err != nil {
		return nil, err
	}
	if len(transcript) == 0 {
		return nil, nil
	}

	targetEmbedding, err := s.embed(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("embed target: %w", err)
	}

	pass := &segmentPass{
		Segmenter:       s,
		videoID:         videoID,
		target:          strings.TrimSpace(target),
		transcript:      transcript,
		targetEmbedding: targetEmbedding,
	}
	return pass.run(ctx)
}

// segmentPass holds the state of one Segment call.
type segmentPass struct {
	*Segmenter
	videoID         string
	target          string
	transcript      []domain.Snippet
	targetEmbedding []float32

	chunkID  int
	segments []*domain.ClosedSegment
}

func (p *segmentPass) run(ctx context.Context) ([]*domain.ClosedSegment, error) {
	n := len(p.transcript)
	builder := domain.NewSegmentBuilder(p.videoID, p.transcript[0], 0)

	for i := 1; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		snippet := p.transcript[i]
		builder.Append(snippet, i)

		if i == n-1 {
			break
		}

		isEnd, err := p.oracle.IsSentenceEnd(ctx, p.transcript[i-1].Text, snippet.Text, p.transcript[i+1].Text)
		if err != nil {
			return nil, fmt.Errorf("boundary oracle at snippet %d: %w", i, asProviderError(err))
		}

		if !p.policy.ShouldClose(isEnd, builder.Duration()) {
			continue
		}

		if err := p.close(ctx, builder); err != nil {
			return nil, err
		}
		builder = domain.NewSegmentBuilder(p.videoID, snippet, i)
	}

	text := builder.Text()
	if text != "" && (len(p.segments) == 0 || p.segments[len(p.segments)-1].Text != text) {
		if err := p.close(ctx, builder); err != nil {
			return nil, err
		}
	}

	return p.segments, nil
}

// close scores the builder and appends the resulting segment.
func (p *segmentPass) close(ctx context.Context, builder *domain.SegmentBuilder) error {
	embedding, err := p.embed(ctx, builder.Text())
	if err != nil {
		return fmt.Errorf("embed segment %d: %w", p.chunkID+1, err)
	}

	similarity, err := domain.CosineSimilarity(embedding, p.targetEmbedding)
	if err != nil {
		return fmt.Errorf("score segment %d: %w", p.chunkID+1, err)
	}

	download := similarity > p.policy.SimilarityThreshold
	var subtitles []domain.SubtitleEntry
	if download {
		subtitles = domain.ExtractSubtitles(p.transcript, builder.StartTime(), builder.EndTime())
	}

	p.chunkID++
	segment := builder.Close(p.chunkID, embedding, similarity, download, subtitles)
	segment.Target = p.target
	p.segments = append(p.segments, segment)

	p.logger.Debug("segment closed",
		"video_id", p.videoID,
		"chunk_id", segment.ChunkID,
		"start", segment.StartTime,
		"end", segment.EndTime,
		"similarity", similarity,
		"download", download,
	)
	return nil
}

func (s *Segmenter) embed(ctx context.Context, text string) ([]float32, error) {
	v, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, asProviderError(err)
	}
	return v, nil
}

// asProviderError tags collaborator failures so callers can match ErrProvider.
// The original error stays in the chain.
func asProviderError(err error) error {
	if errors.Is(err, domain.ErrProvider) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrProvider, err)
}
