package web

import (
	"net/http"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/shipbroker/internal/auth"
	"github.com/JonMunkholm/shipbroker/internal/logging"
	"github.com/JonMunkholm/shipbroker/internal/notify"
	"github.com/JonMunkholm/shipbroker/internal/web/templates"
)

// currentUser returns the signed-in user, if any.
func currentUser(r *http.Request) (auth.User, bool) {
	sess, ok := auth.SessionFrom(r.Context())
	return sess.User, ok
}

// page builds the chrome data shared by every page.
func (s *Server) page(r *http.Request, title string, notices ...notify.Notice) templates.Page {
	p := templates.Page{
		Title:            title,
		Path:             r.URL.Path,
		RecaptchaSiteKey: s.cfg.Recaptcha.SiteKey,
		Notices:          notices,
	}
	if u, ok := currentUser(r); ok {
		p.UserEmail = u.Email
	}
	return p
}

// notifier collects notices for this response and mirrors them to the log.
func notifier(r *http.Request, attrs ...any) (*notify.Recorder, notify.Sink) {
	rec := &notify.Recorder{}
	return rec, notify.Multi{rec, notify.Log{Logger: logging.FromContext(r.Context()), Attrs: attrs}}
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render failed", "path", r.URL.Path, "error", err)
	}
}
