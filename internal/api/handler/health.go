package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	frame FrameStatus
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(frame FrameStatus) *HealthHandler {
	return &HealthHandler{frame: frame}
}

// Health reports liveness plus the orchestrator state. A failed last run does
// not make the process unhealthy; the previous Generation is still served.
func (h *HealthHandler) Health(c *gin.Context) {
	st := h.frame.Status()
	resp := gin.H{
		"status": "ok",
		"state":  st.State,
	}
	if st.LastRun != nil {
		resp["last_run_status"] = st.LastRun.Status
	}
	c.JSON(http.StatusOK, resp)
}
