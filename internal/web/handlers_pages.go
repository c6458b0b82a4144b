package web

import (
	"context"
	"net/http"
	"time"

	"github.com/JonMunkholm/shipbroker/internal/core"
	"github.com/JonMunkholm/shipbroker/internal/web/templates"
)

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, templates.Home(s.page(r, ""), templates.Newsletter{}))
}

func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, templates.Services(s.page(r, "Services"), templates.Newsletter{}))
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	if wantsJSON(r) {
		writeJSON(w, r, http.StatusNotFound, ErrorResponse{Error: "not found", Message: "not found", Code: "HTTP404"})
		return
	}
	s.render(w, r, http.StatusNotFound, templates.NotFound(s.page(r, "Not found")))
}

// HealthResponse is the body of /healthz.
type HealthResponse struct {
	Status      string                   `json:"status"`
	Store       string                   `json:"store"`
	Sessions    int                      `json:"sessions"`
	Submissions core.SubmitLimiterStatus `json:"submissions"`
}

// handleHealth pings the store with a short deadline. A failing store
// makes the instance unhealthy.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:      "ok",
		Store:       "ok",
		Sessions:    s.forms.ActiveCount(),
		Submissions: s.forms.Limiter().Status(),
	}
	status := http.StatusOK
	if err := s.store.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Store = core.MapError(err).Message
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, r, status, resp)
}
