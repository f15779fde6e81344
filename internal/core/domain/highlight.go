package domain

import (
	"fmt"
	"strings"
	"time"
)

// FailureStage names the step at which a video failed.
type FailureStage string

const (
	FailureStageTranscript FailureStage = "transcript"
	FailureStageSegment    FailureStage = "segment"
	FailureStageRender     FailureStage = "render"
)

// VideoFailure records a per-video problem that did not abort the batch.
type VideoFailure struct {
	VideoID string       `json:"video_id"`
	Stage   FailureStage `json:"stage"`
	ChunkID int          `json:"chunk_id,omitempty"`
	Error   string       `json:"error"`
}

// Artifact is a rendered clip for one downloaded segment.
type Artifact struct {
	VideoID   string  `json:"video_id"`
	ChunkID   int     `json:"chunk_id"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Path      string  `json:"path"`
	URL       string  `json:"url,omitempty"`
}

// ObjectName is the storage key used when publishing the artifact.
func (a Artifact) ObjectName() string {
	return fmt.Sprintf("chunks/%s/%d_%.0f_%.0f.mp4", a.VideoID, a.ChunkID, a.StartTime, a.EndTime)
}

// OrchestrationResult aggregates one orchestration run.
type OrchestrationResult struct {
	ProcessedIDs []string         `json:"processed_ids"`
	Segments     []*ClosedSegment `json:"segments"`
	Artifacts    []Artifact       `json:"artifacts"`
	Failures     []VideoFailure   `json:"failures,omitempty"`
}

// DownloadCount returns the number of segments marked for download.
func (r *OrchestrationResult) DownloadCount() int {
	n := 0
	for _, s := range r.Segments {
		if s.Download {
			n++
		}
	}
	return n
}

// HighlightRequest asks for highlight clips about a target.
type HighlightRequest struct {
	Target   string `json:"target"`
	Limit    int    `json:"limit,omitempty"`
	MaxPages int    `json:"max_pages,omitempty"`
}

// DefaultMaxPages bounds how many search pages one request walks.
const DefaultMaxPages = 3

// Normalize trims the target and applies defaults.
func (r HighlightRequest) Normalize() (HighlightRequest, error) {
	r.Target = strings.TrimSpace(r.Target)
	if r.Target == "" {
		return r, fmt.Errorf("%w: target is required", ErrContractViolation)
	}
	if r.Limit <= 0 {
		r.Limit = DefaultVideoLimit
	}
	if r.MaxPages <= 0 {
		r.MaxPages = DefaultMaxPages
	}
	return r, nil
}

// RunStatus is the lifecycle state of a highlight run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// HighlightRun is the persisted outcome of a highlight request.
type HighlightRun struct {
	ID            string         `json:"id"`
	Target        string         `json:"target"`
	Limit         int            `json:"limit"`
	Status        RunStatus      `json:"status"`
	ProcessedIDs  []string       `json:"processed_ids"`
	SegmentCount  int            `json:"segment_count"`
	DownloadCount int            `json:"download_count"`
	Artifacts     []Artifact     `json:"artifacts"`
	Failures      []VideoFailure `json:"failures,omitempty"`
	Error         string         `json:"error,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
}

// NewHighlightRun creates a pending run for the request.
func NewHighlightRun(req HighlightRequest) *HighlightRun {
	return &HighlightRun{
		ID:        GenerateID(),
		Target:    req.Target,
		Limit:     req.Limit,
		Status:    RunStatusPending,
		CreatedAt: time.Now(),
	}
}

// Complete records the orchestration result on the run.
func (r *HighlightRun) Complete(result *OrchestrationResult) {
	now := time.Now()
	r.Status = RunStatusCompleted
	r.Record(result)
	r.CompletedAt = &now
}

// Record copies what an orchestration produced onto the run without changing
// its status. A run that fails part way keeps the videos it got through.
func (r *HighlightRun) Record(result *OrchestrationResult) {
	if result == nil {
		return
	}
	r.ProcessedIDs = result.ProcessedIDs
	r.SegmentCount = len(result.Segments)
	r.DownloadCount = result.DownloadCount()
	r.Artifacts = result.Artifacts
	r.Failures = result.Failures
}

// Fail marks the run failed.
func (r *HighlightRun) Fail(err error) {
	now := time.Now()
	r.Status = RunStatusFailed
	r.Error = err.Error()
	r.CompletedAt = &now
}
