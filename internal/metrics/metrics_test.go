package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/shipbroker/internal/core"
)

func TestObserver(t *testing.T) {
	m := New(Gauges{})

	m.SubmissionFinished("contact", core.StateSucceeded, "", 120*time.Millisecond)
	m.SubmissionFinished("contact", core.StateFailed, "VER001", 10*time.Millisecond)
	m.SubmissionFinished("contact", core.StateFailed, "VER001", 10*time.Millisecond)
	m.StepChanged("cargo_listing", "advance", false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SubmissionsTotal.WithLabelValues("contact", "succeeded", "")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SubmissionsTotal.WithLabelValues("contact", "failed", "VER001")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StepTransitions.WithLabelValues("cargo_listing", "advance", "rejected")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.SubmissionDuration))
}

func TestGauges(t *testing.T) {
	sessions := 3
	m := New(Gauges{ActiveSessions: func() int { return sessions }})

	assert.Equal(t, 3.0, testutil.ToFloat64(m.ActiveSessions))
	sessions = 5
	assert.Equal(t, 5.0, testutil.ToFloat64(m.ActiveSessions))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.SubmissionsInFlight))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New(Gauges{})

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/drafts/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/drafts/"+id, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/drafts/{id}", "404")))
}

func TestHandler(t *testing.T) {
	m := New(Gauges{})
	m.StepChanged("contact", "goto", true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `shipbroker_form_step_transitions_total{action="goto",form="contact",result="ok"} 1`), body)
	assert.Contains(t, body, "go_goroutines")
}
