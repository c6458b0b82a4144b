package web

// errors.go turns handler errors into responses.
//
// Every error is logged with its technical detail and the request ID, then
// mapped through core.MapError. The client gets the user message and its
// code as JSON (API routes and clients asking for JSON), an HTML fragment
// (HTMX requests), or a full error page.

import (
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/shipbroker/internal/core"
	"github.com/JonMunkholm/shipbroker/internal/logging"
	"github.com/JonMunkholm/shipbroker/internal/web/templates"
)

var errRateLimited = errors.New("rate limit exceeded")

// ErrorResponse is the JSON body of an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	msg := core.MapError(err)

	log := logging.WithFields(r.Context(),
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", msg.Code,
		"error", err.Error(),
	)
	if status >= http.StatusInternalServerError {
		log.Error("request error")
	} else {
		log.Warn("request error")
	}

	switch {
	case wantsJSON(r):
		writeJSON(w, r, status, ErrorResponse{
			Error:   msg.Message,
			Message: msg.Message,
			Action:  msg.Action,
			Code:    msg.Code,
		})
	case isHTMX(r):
		s.render(w, r, status, templates.ErrorAlert(msg.Message, msg.Action, msg.Code))
	default:
		s.render(w, r, status, templates.ErrorPage(s.page(r, "Error"), msg.Message, msg.Action, msg.Code))
	}
}

// statusFor picks the HTTP status for a core error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrUnknownForm), errors.Is(err, core.ErrFormNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrSubmissionPending), errors.Is(err, core.ErrAlreadySubmitted):
		return http.StatusConflict
	case errors.Is(err, core.ErrUnknownField), errors.Is(err, core.ErrInvalidValue),
		errors.Is(err, core.ErrStepLocked), errors.Is(err, core.ErrFirstStep),
		errors.Is(err, core.ErrTerminalStep):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrStepInvalid):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrTooManySubmissions):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON reports whether the client expects a JSON body. API routes
// always do.
func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.Contains(r.Header.Get("Content-Type"), "application/json")
}
