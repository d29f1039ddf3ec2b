package handlers

import (
	"context"
	"sync"

	"gaggiuino_mcp"

	"github.com/gin-gonic/gin"
)

// ---- Status Source Stub ----

type stubStatus struct {
	mu    sync.Mutex
	calls int
	// results are replayed in order; the last one repeats.
	results []statusResult
}

type statusResult struct {
	status gaggiuino_mcp.SystemStatus
	err    error
}

func (s *stubStatus) GetSystemStatus(ctx context.Context) (gaggiuino_mcp.SystemStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	s.calls++
	r := s.results[i]
	return r.status, r.err
}

// ---- Shared Test Helpers ----

func newTestRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}
