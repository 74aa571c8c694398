package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/timmy/immiframe/internal/api/middleware"
	"github.com/timmy/immiframe/internal/domain"
	"github.com/timmy/immiframe/internal/service"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 200
)

// FrameStatus exposes the orchestrator to the API.
type FrameStatus interface {
	Status() service.Status
	Current() (*domain.GenerationManifest, error)
}

// Triggerer queues a manual run.
type Triggerer interface {
	Trigger() error
}

// RunHistory reads persisted runs.
type RunHistory interface {
	List(ctx context.Context, limit int) ([]domain.RunRecord, error)
	CountByStatus(ctx context.Context) (map[domain.RunStatus]int64, error)
}

// FileURLs maps a published file name to its mirrored URL.
type FileURLs interface {
	URL(name string) string
}

// RunsHandler serves run status, history, manual triggers and the live Generation.
type RunsHandler struct {
	frame   FrameStatus
	trigger Triggerer
	history RunHistory
	urls    FileURLs
}

// NewRunsHandler creates a runs handler. urls may be nil when mirroring is off.
func NewRunsHandler(frame FrameStatus, trigger Triggerer, history RunHistory, urls FileURLs) *RunsHandler {
	return &RunsHandler{frame: frame, trigger: trigger, history: history, urls: urls}
}

// RunView is the API form of a run outcome.
type RunView struct {
	RunID       string           `json:"run_id"`
	Trigger     string           `json:"trigger"`
	Status      domain.RunStatus `json:"status"`
	Theme       string           `json:"theme"`
	ThemeSource string           `json:"theme_source"`
	FilterSet   string           `json:"filter_set,omitempty"`
	Requested   int              `json:"requested"`
	Cached      int              `json:"cached"`
	Skipped     int              `json:"skipped"`
	Error       string           `json:"error,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	DurationMs  int64            `json:"duration_ms"`
}

func newRunView(o *domain.RunOutcome) *RunView {
	v := &RunView{
		RunID:       o.RunID,
		Trigger:     o.Trigger,
		Status:      o.Status,
		Theme:       o.Theme.Text,
		ThemeSource: o.Theme.Source,
		FilterSet:   o.FilterSet,
		Requested:   o.Requested,
		Cached:      o.Cached,
		Skipped:     o.Skipped,
		StartedAt:   o.StartedAt,
		DurationMs:  o.Duration().Milliseconds(),
	}
	if o.Err != nil {
		v.Error = o.Err.Error()
	}
	return v
}

// StatusResponse is returned by GET /api/v1/status.
type StatusResponse struct {
	State    service.State              `json:"state"`
	Schedule service.ScheduleState      `json:"schedule"`
	LastRun  *RunView                   `json:"last_run,omitempty"`
	Totals   map[domain.RunStatus]int64 `json:"totals,omitempty"`
}

// Status returns the orchestrator state, schedule and last run.
func (h *RunsHandler) Status(c *gin.Context) {
	st := h.frame.Status()
	resp := StatusResponse{State: st.State, Schedule: st.Schedule}
	if st.LastRun != nil {
		resp.LastRun = newRunView(st.LastRun)
	}

	if h.history != nil {
		totals, err := h.history.CountByStatus(c.Request.Context())
		if err != nil {
			middleware.GetLogger(c).WithError(err).Warn("Failed to count runs")
		} else {
			resp.Totals = totals
		}
	}
	c.JSON(http.StatusOK, resp)
}

// ListRuns returns the most recent persisted runs, newest first.
func (h *RunsHandler) ListRuns(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusOK, gin.H{"runs": []domain.RunRecord{}})
		return
	}

	limit := defaultRunsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := h.history.List(c.Request.Context(), limit)
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to list runs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// TriggerRun queues a manual run: 202 when accepted, 409 while one is in flight.
func (h *RunsHandler) TriggerRun(c *gin.Context) {
	if h.trigger == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler is not running"})
		return
	}

	err := h.trigger.Trigger()
	switch {
	case errors.Is(err, domain.ErrRunInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		middleware.GetLogger(c).WithError(err).Error("Failed to trigger run")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		middleware.GetLogger(c).Infof("Manual run queued: client_ip=%s", c.ClientIP())
		c.JSON(http.StatusAccepted, gin.H{"message": "run queued"})
	}
}

// GenerationFile is one published file, with its mirror URL when available.
type GenerationFile struct {
	domain.ManifestEntry
	URL string `json:"url,omitempty"`
}

// GenerationResponse is returned by GET /api/v1/generation.
type GenerationResponse struct {
	ID        string           `json:"id"`
	Theme     domain.Theme     `json:"theme"`
	CreatedAt time.Time        `json:"created_at"`
	Files     []GenerationFile `json:"files"`
}

// Generation returns the live Generation, or 404 before the first commit.
func (h *RunsHandler) Generation(c *gin.Context) {
	m, err := h.frame.Current()
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to read manifest")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read manifest"})
		return
	}
	if m == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "nothing published yet"})
		return
	}

	resp := GenerationResponse{ID: m.ID, Theme: m.Theme, CreatedAt: m.CreatedAt, Files: make([]GenerationFile, len(m.Files))}
	for i, f := range m.Files {
		resp.Files[i] = GenerationFile{ManifestEntry: f}
		if h.urls != nil {
			resp.Files[i].URL = h.urls.URL(f.File)
		}
	}
	c.JSON(http.StatusOK, resp)
}
