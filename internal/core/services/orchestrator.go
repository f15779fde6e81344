package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/athena-core/internal/core/domain"
	"github.com/custodia-labs/athena-core/internal/core/ports/driven"
)

// errRenderCoalesced reports that another instance holds the render lock
var errRenderCoalesced = errors.New("render in progress elsewhere")

// Orchestrator drives the segmenter over a batch of candidate videos and
// materializes the segments worth downloading.
//
// Admission is sequential and capped by the video limit, so the cap holds no
// matter how many workers process admitted videos. Per-video failures are
// recorded on the result and never abort the batch.
type Orchestrator struct {
	transcripts  driven.TranscriptSource
	segmenter    *Segmenter
	materializer driven.ChunkMaterializer
	lock         driven.DistributedLock
	logger       *slog.Logger

	workers int
	lockTTL time.Duration

	// renders coalesces concurrent materialization of the same video range
	renders singleflight.Group
}

// OrchestratorConfig holds dependencies for Orchestrator.
type OrchestratorConfig struct {
	Transcripts  driven.TranscriptSource
	Segmenter    *Segmenter
	Materializer driven.ChunkMaterializer
	Lock         driven.DistributedLock // Optional: coalesces renders across instances
	Logger       *slog.Logger
	Workers      int           // Videos processed concurrently (default: 1)
	LockTTL      time.Duration // TTL for the render lock, extended while a render runs (default: 10m)
}

// NewOrchestrator creates a new orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = 10 * time.Minute
	}

	return &Orchestrator{
		transcripts:  cfg.Transcripts,
		segmenter:    cfg.Segmenter,
		materializer: cfg.Materializer,
		lock:         cfg.Lock,
		logger:       logger,
		workers:      workers,
		lockTTL:      lockTTL,
	}
}

// videoOutcome collects what happened to one admitted video.
type videoOutcome struct {
	videoID   string
	segments  []*domain.ClosedSegment
	artifacts []domain.Artifact
	failures  []domain.VideoFailure
}

// visitedSet tracks admitted videos against the limit.
type visitedSet struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	limit int
}

func newVisitedSet(limit int) *visitedSet {
	return &visitedSet{seen: make(map[string]struct{}), limit: limit}
}

// admit reports whether id is new and fits under the limit, recording it if so.
func (v *visitedSet) admit(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if len(v.seen) >= v.limit {
		return false
	}
	if _, ok := v.seen[id]; ok {
		return false
	}
	v.seen[id] = struct{}{}
	return true
}

func (v *visitedSet) full() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.seen) >= v.limit
}

// Orchestrate processes candidates in order until limit distinct videos have
// been visited. A limit of zero or less uses domain.DefaultVideoLimit.
//
// When ctx is cancelled, admission stops, in-flight videos finish, and the
// partial result is returned together with the context error.
func (o *Orchestrator) Orchestrate(ctx context.Context, candidates []string, target string, limit int) (*domain.OrchestrationResult, error) {
	if strings.TrimSpace(target) == "" {
		return nil, fmt.Errorf("%w: target is empty", domain.ErrContractViolation)
	}
	if limit <= 0 {
		limit = domain.DefaultVideoLimit
	}

	startTime := time.Now()
	o.logger.Info("orchestration starting",
		"candidates", len(candidates),
		"limit", limit,
		"workers", o.workers,
	)

	visited := newVisitedSet(limit)
	var outcomes []*videoOutcome

	var g errgroup.Group
	g.SetLimit(o.workers)

	for _, id := range candidates {
		if ctx.Err() != nil || visited.full() {
			break
		}
		id = strings.TrimSpace(id)
		if id == "" || !visited.admit(id) {
			continue
		}

		outcome := &videoOutcome{videoID: id}
		outcomes = append(outcomes, outcome)
		g.Go(func() error {
			o.processVideo(ctx, outcome, target)
			return nil
		})
	}
	_ = g.Wait()

	result := &domain.OrchestrationResult{
		ProcessedIDs: make([]string, 0, len(outcomes)),
		Segments:     []*domain.ClosedSegment{},
		Artifacts:    []domain.Artifact{},
	}
	for _, out := range outcomes {
		result.ProcessedIDs = append(result.ProcessedIDs, out.videoID)
		result.Segments = append(result.Segments, out.segments...)
		result.Artifacts = append(result.Artifacts, out.artifacts...)
		result.Failures = append(result.Failures, out.failures...)
	}

	o.logger.Info("orchestration completed",
		"processed", len(result.ProcessedIDs),
		"segments", len(result.Segments),
		"artifacts", len(result.Artifacts),
		"failures", len(result.Failures),
		"duration", time.Since(startTime),
	)

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// processVideo fetches, segments and renders one video.
func (o *Orchestrator) processVideo(ctx context.Context, out *videoOutcome, target string) {
	logger := o.logger.With("video_id", out.videoID)

	transcript, err := o.transcripts.Fetch(ctx, out.videoID)
	if err != nil {
		if errors.Is(err, domain.ErrNotAvailable) {
			logger.Info("skipping video without transcript")
		} else {
			logger.Warn("failed to fetch transcript", "error", err)
		}
		out.fail(domain.FailureStageTranscript, 0, err)
		return
	}

	segments, err := o.segmenter.Segment(ctx, out.videoID, transcript, target)
	if err != nil {
		logger.Warn("segmentation failed", "error", err)
		out.fail(domain.FailureStageSegment, 0, err)
		return
	}
	out.segments = segments

	for _, seg := range segments {
		if !seg.Download {
			continue
		}

		path, err := o.render(ctx, seg)
		if err != nil {
			if errors.Is(err, errRenderCoalesced) {
				logger.Info("render held by another instance", "chunk_id", seg.ChunkID)
				continue
			}
			logger.Warn("render failed", "chunk_id", seg.ChunkID, "error", err)
			out.fail(domain.FailureStageRender, seg.ChunkID, err)
			continue
		}

		out.artifacts = append(out.artifacts, domain.Artifact{
			VideoID:   seg.VideoID,
			ChunkID:   seg.ChunkID,
			StartTime: seg.StartTime,
			EndTime:   seg.EndTime,
			Path:      path,
		})
	}

	logger.Info("video processed",
		"segments", len(out.segments),
		"artifacts", len(out.artifacts),
	)
}

// render materializes a segment at most once at a time per video range.
func (o *Orchestrator) render(ctx context.Context, seg *domain.ClosedSegment) (string, error) {
	key := renderKey(seg.VideoID, seg.StartTime, seg.EndTime)

	v, err, _ := o.renders.Do(key, func() (interface{}, error) {
		if o.lock != nil {
			lockName := "render:" + key
			acquired, err := o.lock.Acquire(ctx, lockName, o.lockTTL)
			switch {
			case err != nil:
				o.logger.Warn("render lock unavailable, rendering anyway", "key", key, "error", err)
			case !acquired:
				return "", errRenderCoalesced
			default:
				defer func() {
					if err := o.lock.Release(context.WithoutCancel(ctx), lockName); err != nil {
						o.logger.Warn("failed to release render lock", "key", key, "error", err)
					}
				}()
				stop := o.keepLockAlive(ctx, lockName)
				defer stop()
			}
		}

		path, err := o.materializer.Render(ctx, seg.VideoID, seg.StartTime, seg.EndTime, seg.Subtitles)
		if err != nil && !errors.Is(err, domain.ErrRender) {
			err = fmt.Errorf("%w: %w", domain.ErrRender, err)
		}
		return path, err
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// keepLockAlive extends a held lock every third of its TTL until the
// returned stop func is called. A render runs several external commands
// and can outlast one TTL.
func (o *Orchestrator) keepLockAlive(ctx context.Context, name string) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(max(o.lockTTL/3, time.Millisecond))
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := o.lock.Extend(ctx, name, o.lockTTL); err != nil {
					o.logger.Warn("failed to extend render lock", "lock", name, "error", err)
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func renderKey(videoID string, start, end float64) string {
	return fmt.Sprintf("%s:%.3f-%.3f", videoID, start, end)
}

func (out *videoOutcome) fail(stage domain.FailureStage, chunkID int, err error) {
	out.failures = append(out.failures, domain.VideoFailure{
		VideoID: out.videoID,
		Stage:   stage,
		ChunkID: chunkID,
		Error:   err.Error(),
	})
}
