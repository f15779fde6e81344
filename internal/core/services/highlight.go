package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/custodia-labs/athena-core/internal/core/domain"
	"github.com/custodia-labs/athena-core/internal/core/ports/driven"
	"github.com/custodia-labs/athena-core/internal/core/ports/driving"
)

// Verify interface compliance
var _ driving.HighlightService = (*highlightService)(nil)

// searchPageSize is the number of results requested per search page
const searchPageSize = 10

// highlightService implements driving.HighlightService.
//
// A run proceeds as follows:
//  1. Walk search pages collecting distinct video IDs
//  2. Persist the metadata of every candidate
//  3. Orchestrate segmentation and rendering over the candidates
//  4. Persist segments and publish artifacts
type highlightService struct {
	searcher     driven.VideoSearcher
	orchestrator *Orchestrator
	segmenter    *Segmenter
	transcripts  driven.TranscriptSource
	segments     driven.SegmentStore
	runs         driven.RunStore
	queue        driven.TaskQueue
	artifacts    driven.ArtifactStore
	signedURLTTL time.Duration
	defaultLimit int
	logger       *slog.Logger
}

// HighlightServiceConfig holds dependencies for the highlight service.
type HighlightServiceConfig struct {
	Searcher     driven.VideoSearcher
	Orchestrator *Orchestrator
	Segmenter    *Segmenter
	Transcripts  driven.TranscriptSource
	Segments     driven.SegmentStore
	Runs         driven.RunStore
	Queue        driven.TaskQueue     // Optional: required only for Submit
	Artifacts    driven.ArtifactStore // Optional: artifacts keep local paths when nil
	SignedURLTTL time.Duration        // Lifetime of published URLs (default: 1h)
	DefaultLimit int                  // Videos per run when a request names none (default: 10)
	Logger       *slog.Logger
}

// NewHighlightService creates a new highlight service.
func NewHighlightService(cfg HighlightServiceConfig) driving.HighlightService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ttl := cfg.SignedURLTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	limit := cfg.DefaultLimit
	if limit <= 0 {
		limit = domain.DefaultVideoLimit
	}

	return &highlightService{
		searcher:     cfg.Searcher,
		orchestrator: cfg.Orchestrator,
		segmenter:    cfg.Segmenter,
		transcripts:  cfg.Transcripts,
		segments:     cfg.Segments,
		runs:         cfg.Runs,
		queue:        cfg.Queue,
		artifacts:    cfg.Artifacts,
		signedURLTTL: ttl,
		defaultLimit: limit,
		logger:       logger,
	}
}

// Run executes a highlight request synchronously.
func (s *highlightService) Run(ctx context.Context, req domain.HighlightRequest) (*domain.HighlightRun, error) {
	req, err := s.normalize(req)
	if err != nil {
		return nil, err
	}

	run := domain.NewHighlightRun(req)
	if err := s.execute(ctx, run, req); err != nil {
		return run, err
	}
	return run, nil
}

// Submit stores a pending run and enqueues it for a worker.
func (s *highlightService) Submit(ctx context.Context, req domain.HighlightRequest) (*domain.Task, error) {
	req, err := s.normalize(req)
	if err != nil {
		return nil, err
	}
	if s.queue == nil {
		return nil, fmt.Errorf("%w: task queue not configured", domain.ErrServiceUnavailable)
	}

	run := domain.NewHighlightRun(req)
	if err := s.runs.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to save run: %w", err)
	}

	task := domain.NewHighlightTask(run.ID, req)
	if err := s.queue.Enqueue(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	s.logger.Info("highlight run submitted", "run_id", run.ID, "task_id", task.ID, "target", req.Target)
	return task, nil
}

func (s *highlightService) normalize(req domain.HighlightRequest) (domain.HighlightRequest, error) {
	if req.Limit <= 0 {
		req.Limit = s.defaultLimit
	}
	return req.Normalize()
}

// ProcessTask runs a queued highlight task against its stored run.
func (s *highlightService) ProcessTask(ctx context.Context, task *domain.Task) error {
	if task.Type != domain.TaskTypeHighlight {
		return fmt.Errorf("%w: unsupported task type %s", domain.ErrInvalidInput, task.Type)
	}

	req, err := task.HighlightRequest().Normalize()
	if err != nil {
		return err
	}

	run, err := s.runs.GetRun(ctx, task.RunID())
	if errors.Is(err, domain.ErrNotFound) {
		run = domain.NewHighlightRun(req)
		if id := task.RunID(); id != "" {
			run.ID = id
		}
	} else if err != nil {
		return fmt.Errorf("failed to load run: %w", err)
	}

	return s.execute(ctx, run, req)
}

// execute performs one run and persists its final state.
func (s *highlightService) execute(ctx context.Context, run *domain.HighlightRun, req domain.HighlightRequest) error {
	startTime := time.Now()
	logger := s.logger.With("run_id", run.ID, "target", req.Target)
	logger.Info("highlight run starting", "limit", req.Limit, "max_pages", req.MaxPages)

	run.Status = domain.RunStatusRunning
	if err := s.runs.SaveRun(ctx, run); err != nil {
		logger.Warn("failed to mark run running", "error", err)
	}

	candidates, err := s.collectCandidates(ctx, req)
	if err != nil {
		return s.fail(ctx, run, fmt.Errorf("search failed: %w", err))
	}

	result, err := s.orchestrator.Orchestrate(ctx, candidates, req.Target, req.Limit)
	if result != nil {
		s.persistSegments(ctx, req.Target, result)
		s.publish(context.WithoutCancel(ctx), result.Artifacts)
	}
	if err != nil {
		run.Record(result)
		return s.fail(ctx, run, err)
	}

	run.Complete(result)
	if err := s.runs.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	logger.Info("highlight run completed",
		"processed", len(run.ProcessedIDs),
		"segments", run.SegmentCount,
		"downloads", run.DownloadCount,
		"artifacts", len(run.Artifacts),
		"duration", time.Since(startTime),
	)
	return nil
}

// collectCandidates walks search pages until enough distinct videos are
// found, the pages run out, or MaxPages is reached.
func (s *highlightService) collectCandidates(ctx context.Context, req domain.HighlightRequest) ([]string, error) {
	if s.searcher == nil {
		return nil, fmt.Errorf("%w: video search not configured", domain.ErrServiceUnavailable)
	}
	seen := make(map[string]struct{})
	var ids []string
	token := ""

	for page := 0; page < req.MaxPages && len(ids) < req.Limit; page++ {
		results, err := s.searcher.Search(ctx, req.Target, token, searchPageSize)
		if err != nil {
			return nil, err
		}

		for _, r := range results.Results {
			id := strings.TrimSpace(r.VideoID)
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)

			if err := s.segments.SaveVideo(ctx, domain.NewVideoMetadata(r)); err != nil {
				s.logger.Warn("failed to save video metadata", "video_id", id, "error", err)
			}
		}

		if !results.HasNext() {
			break
		}
		token = results.NextPageToken
	}

	s.logger.Debug("search candidates collected", "target", req.Target, "count", len(ids))
	return ids, nil
}

// persistSegments replaces the stored pass of every video that was segmented.
// Videos that failed before or during segmentation keep their previous pass.
func (s *highlightService) persistSegments(ctx context.Context, target string, result *domain.OrchestrationResult) {
	ctx = context.WithoutCancel(ctx)

	unsegmented := make(map[string]struct{})
	for _, f := range result.Failures {
		if f.Stage == domain.FailureStageTranscript || f.Stage == domain.FailureStageSegment {
			unsegmented[f.VideoID] = struct{}{}
		}
	}
	byVideo := make(map[string][]*domain.ClosedSegment)
	for _, seg := range result.Segments {
		byVideo[seg.VideoID] = append(byVideo[seg.VideoID], seg)
	}

	for _, id := range result.ProcessedIDs {
		if _, ok := unsegmented[id]; ok {
			continue
		}
		if err := s.segments.ReplaceSegments(ctx, id, target, byVideo[id]); err != nil {
			s.logger.Error("failed to save segments", "video_id", id, "count", len(byVideo[id]), "error", err)
		}
	}
}

// publish uploads artifacts and fills in their signed URLs in place.
func (s *highlightService) publish(ctx context.Context, artifacts []domain.Artifact) {
	if s.artifacts == nil {
		return
	}
	for i := range artifacts {
		a := &artifacts[i]
		name := a.ObjectName()
		if err := s.artifacts.Upload(ctx, a.Path, name); err != nil {
			s.logger.Warn("failed to upload artifact", "video_id", a.VideoID, "chunk_id", a.ChunkID, "error", err)
			continue
		}
		url, err := s.artifacts.SignedURL(ctx, name, s.signedURLTTL)
		if err != nil {
			s.logger.Warn("failed to sign artifact url", "object", name, "error", err)
			continue
		}
		a.URL = url
	}
}

func (s *highlightService) fail(ctx context.Context, run *domain.HighlightRun, err error) error {
	run.Fail(err)
	if saveErr := s.runs.SaveRun(context.WithoutCancel(ctx), run); saveErr != nil {
		s.logger.Error("failed to save failed run", "run_id", run.ID, "error", saveErr)
	}
	s.logger.Error("highlight run failed", "run_id", run.ID, "error", err)
	return err
}

// GetRun retrieves a run by ID.
func (s *highlightService) GetRun(ctx context.Context, id string) (*domain.HighlightRun, error) {
	return s.runs.GetRun(ctx, id)
}

// GetTask retrieves a queued task by ID.
func (s *highlightService) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	if s.queue == nil {
		return nil, fmt.Errorf("%w: task queue not configured", domain.ErrServiceUnavailable)
	}
	task, err := s.queue.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, domain.ErrNotFound
	}
	return task, nil
}

// QueueStats returns task queue statistics.
func (s *highlightService) QueueStats(ctx context.Context) (*driven.QueueStats, error) {
	if s.queue == nil {
		return nil, fmt.Errorf("%w: task queue not configured", domain.ErrServiceUnavailable)
	}
	return s.queue.Stats(ctx)
}

// GetVideo returns the metadata stored when a video was found by search.
func (s *highlightService) GetVideo(ctx context.Context, videoID string) (*domain.VideoMetadata, error) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return nil, fmt.Errorf("%w: video id is required", domain.ErrInvalidInput)
	}
	return s.segments.GetVideo(ctx, videoID)
}

// ListSegments returns the persisted segments of a video. An empty target
// lists the passes of every target.
func (s *highlightService) ListSegments(ctx context.Context, videoID, target string) ([]*domain.ClosedSegment, error) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return nil, fmt.Errorf("%w: video id is required", domain.ErrInvalidInput)
	}
	return s.segments.ListSegments(ctx, videoID, strings.TrimSpace(target))
}

// SegmentVideo fetches and segments one video without rendering, then
// persists the segments.
func (s *highlightService) SegmentVideo(ctx context.Context, videoID, target string) ([]*domain.ClosedSegment, error) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return nil, fmt.Errorf("%w: video id is required", domain.ErrInvalidInput)
	}

	transcript, err := s.transcripts.Fetch(ctx, videoID)
	if err != nil {
		return nil, err
	}

	segments, err := s.segmenter.Segment(ctx, videoID, transcript, target)
	if err != nil {
		return nil, err
	}
	if err := s.segments.ReplaceSegments(ctx, videoID, strings.TrimSpace(target), segments); err != nil {
		return nil, fmt.Errorf("failed to save segments: %w", err)
	}
	return segments, nil
}
