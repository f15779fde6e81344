package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/athena-core/internal/core/domain"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"target is required"`
}

// HealthResponse reports liveness plus the state of optional dependencies.
// @Description Health and readiness response
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
	AI         any               `json:"ai,omitempty"`
}

// CreateHighlightRequest is the body of POST /api/v1/highlights.
// @Description Highlight run request
type CreateHighlightRequest struct {
	Target   string `json:"target" example:"rust ownership"`
	Limit    int    `json:"limit,omitempty" example:"10"`
	MaxPages int    `json:"max_pages,omitempty" example:"3"`
	Async    bool   `json:"async,omitempty"`
}

// SegmentVideoRequest is the body of POST /api/v1/segment.
// @Description Single video segmentation request
type SegmentVideoRequest struct {
	VideoID string `json:"video_id" example:"dQw4w9WgXcQ"`
	Target  string `json:"target" example:"rust ownership"`
}

const healthCheckTimeout = 2 * time.Second

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns liveness along with dependency and AI status. Always 200 while serving.
// @Tags         Health
// @Produce      json
// @Success      200  {object}  HealthResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Components: s.checkComponents(r.Context())}
	if s.aiStatus != nil {
		resp.AI = s.aiStatus.Status()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings postgres, redis and the task queue
// @Tags         Health
// @Produce      json
// @Success      200  {object}  HealthResponse
// @Failure      503  {object}  HealthResponse  "A dependency failed its ping"
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	components := s.checkComponents(r.Context())
	for _, state := range components {
		if state != "ok" {
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "not ready", Components: components})
			return
		}
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ready", Components: components})
}

func (s *Server) checkComponents(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	components := make(map[string]string)
	check := func(name string, p Pinger) {
		if p == nil {
			return
		}
		if err := p.Ping(ctx); err != nil {
			components[name] = "error: " + err.Error()
			return
		}
		components[name] = "ok"
	}
	if s.db != nil {
		check("postgres", s.db)
	}
	if s.redisClient != nil {
		check("redis", s.redisClient)
	}
	if s.taskQueue != nil {
		check("queue", s.taskQueue)
	}
	return components
}

// handleVersion godoc
// @Summary      Get API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// handleAIStatus godoc
// @Summary      AI provider status
// @Description  Reports the configured embedding and boundary providers
// @Tags         AI
// @Produce      json
// @Success      200  {object}  runtime.Status
// @Failure      503  {object}  ErrorResponse
// @Router       /ai/status [get]
func (s *Server) handleAIStatus(w http.ResponseWriter, r *http.Request) {
	if s.aiStatus == nil {
		writeError(w, http.StatusServiceUnavailable, "ai services not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.aiStatus.Status())
}

// Highlight endpoints

// handleCreateHighlight godoc
// @Summary      Start a highlight run
// @Description  Searches for the target, segments each video and renders the relevant chunks.
// @Description  With async set the run is queued and the task is returned with 202.
// @Tags         Highlights
// @Accept       json
// @Produce      json
// @Param        request  body      CreateHighlightRequest  true  "Highlight request"
// @Success      200      {object}  domain.HighlightRun
// @Success      202      {object}  domain.Task
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Failure      502      {object}  ErrorResponse  "Provider or render failure"
// @Failure      503      {object}  ErrorResponse  "Search or queue not configured"
// @Router       /highlights [post]
func (s *Server) handleCreateHighlight(w http.ResponseWriter, r *http.Request) {
	var body CreateHighlightRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(body.Target) == "" {
		writeError(w, http.StatusBadRequest, "target is required")
		return
	}
	if body.Limit < 0 || body.MaxPages < 0 {
		writeError(w, http.StatusBadRequest, "limit and max_pages must not be negative")
		return
	}

	req := domain.HighlightRequest{Target: body.Target, Limit: body.Limit, MaxPages: body.MaxPages}

	if body.Async {
		task, err := s.highlights.Submit(r.Context(), req)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, task)
		return
	}

	run, err := s.highlights.Run(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleGetHighlight godoc
// @Summary      Get a highlight run
// @Tags         Highlights
// @Produce      json
// @Param        id   path      string  true  "Run ID"
// @Success      200  {object}  domain.HighlightRun
// @Failure      404  {object}  ErrorResponse
// @Router       /highlights/{id} [get]
func (s *Server) handleGetHighlight(w http.ResponseWriter, r *http.Request) {
	run, err := s.highlights.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// Task endpoints

// handleGetTask godoc
// @Summary      Get a queued task
// @Tags         Tasks
// @Produce      json
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  domain.Task
// @Failure      404  {object}  ErrorResponse
// @Router       /tasks/{id} [get]
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.highlights.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleQueueStats godoc
// @Summary      Task queue statistics
// @Tags         Tasks
// @Produce      json
// @Success      200  {object}  driven.QueueStats
// @Failure      503  {object}  ErrorResponse
// @Router       /tasks/stats [get]
func (s *Server) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.highlights.QueueStats(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Video endpoints

// handleGetVideo godoc
// @Summary      Get video metadata
// @Description  Returns the metadata stored when the video was found by search
// @Tags         Videos
// @Produce      json
// @Param        id   path      string  true  "YouTube video ID"
// @Success      200  {object}  domain.VideoMetadata
// @Failure      404  {object}  ErrorResponse
// @Router       /videos/{id} [get]
func (s *Server) handleGetVideo(w http.ResponseWriter, r *http.Request) {
	video, err := s.highlights.GetVideo(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, video)
}

// handleListSegments godoc
// @Summary      List stored segments
// @Description  Returns a video's segments ordered by target, then chunk ID
// @Tags         Videos
// @Produce      json
// @Param        id      path      string  true   "YouTube video ID"
// @Param        target  query     string  false  "Only the pass for this target"
// @Success      200     {array}   domain.ClosedSegment
// @Router       /videos/{id}/segments [get]
func (s *Server) handleListSegments(w http.ResponseWriter, r *http.Request) {
	segments, err := s.highlights.ListSegments(r.Context(), r.PathValue("id"), r.URL.Query().Get("target"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if segments == nil {
		segments = []*domain.ClosedSegment{}
	}
	writeJSON(w, http.StatusOK, segments)
}

// handleSegmentVideo godoc
// @Summary      Segment one video
// @Description  Segments a video against a target without rendering and stores the pass
// @Tags         Videos
// @Accept       json
// @Produce      json
// @Param        request  body      SegmentVideoRequest  true  "Segmentation request"
// @Success      200      {array}   domain.ClosedSegment
// @Failure      400      {object}  ErrorResponse
// @Failure      404      {object}  ErrorResponse  "No transcript for the video"
// @Failure      502      {object}  ErrorResponse  "Provider failure"
// @Failure      503      {object}  ErrorResponse  "AI provider not configured"
// @Router       /segment [post]
func (s *Server) handleSegmentVideo(w http.ResponseWriter, r *http.Request) {
	var body SegmentVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.VideoID == "" {
		writeError(w, http.StatusBadRequest, "video_id is required")
		return
	}

	segments, err := s.highlights.SegmentVideo(r.Context(), body.VideoID, body.Target)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if segments == nil {
		segments = []*domain.ClosedSegment{}
	}
	writeJSON(w, http.StatusOK, segments)
}

// Helper functions

// writeServiceError maps domain errors onto HTTP status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "error", err)
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrContractViolation), errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrNotAvailable):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrProvider), errors.Is(err, domain.ErrRender):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
