package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/shipbroker/internal/core"
	"github.com/JonMunkholm/shipbroker/internal/notify"
	"github.com/JonMunkholm/shipbroker/internal/web/templates"
)

// maxFormBody caps urlencoded form posts.
const maxFormBody = 64 << 10

func draftCookie(formKey string) string {
	return "draft_" + formKey
}

func cookieValue(r *http.Request, name string) string {
	if c, err := r.Cookie(name); err == nil {
		return c.Value
	}
	return ""
}

func (s *Server) setDraftCookie(w http.ResponseWriter, def *core.Definition, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     draftCookie(def.Key),
		Value:    id,
		Path:     def.Path,
		MaxAge:   int(s.cfg.Forms.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.cfg.Auth.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// handleFormPage shows the visitor's draft, or a blank form. It never
// creates a session; the first POST does.
func (s *Server) handleFormPage(formKey string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		def, ok := core.Get(formKey)
		if !ok {
			s.respondError(w, r, core.ErrUnknownForm, http.StatusNotFound)
			return
		}
		state, err := s.forms.Peek(formKey, cookieValue(r, draftCookie(formKey)))
		if err != nil {
			s.respondError(w, r, err, statusFor(err))
			return
		}
		s.renderForm(w, r, http.StatusOK, def, state, nil)
	}
}

// handleFormPost applies the fields of the step the page showed, then
// performs the button's action: next, back, goto:<n>, submit or reset.
// The page is rendered directly so notices from the submission show up.
func (s *Server) handleFormPost(formKey string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
		if err := r.ParseForm(); err != nil {
			s.respondError(w, r, core.ErrInvalidValue, http.StatusBadRequest)
			return
		}

		form, err := s.forms.Open(formKey, cookieValue(r, draftCookie(formKey)))
		if err != nil {
			s.respondError(w, r, err, statusFor(err))
			return
		}
		def := form.Definition()
		s.setDraftCookie(w, def, form.ID())

		rec, sink := notifier(r, "form", formKey, "session", form.ID())
		status := http.StatusOK
		action, arg, _ := strings.Cut(r.PostFormValue("action"), ":")

		if action != "reset" {
			if err := form.SetFields(postedStep(def, r)); err != nil {
				status = s.reject(sink, err)
				s.renderForm(w, r, status, def, form.State(), rec.Notices())
				return
			}
		}

		switch action {
		case "next":
			if _, err := form.Advance(); errors.Is(err, core.ErrTerminalStep) {
				status = s.submitForm(r, form, sink)
			} else if err != nil {
				status = s.reject(sink, err)
			}

		case "back":
			if err := form.Retreat(); err != nil && !errors.Is(err, core.ErrFirstStep) {
				status = s.reject(sink, err)
			}

		case "goto":
			step, convErr := strconv.Atoi(arg)
			if convErr != nil {
				status = s.reject(sink, core.ErrStepLocked)
			} else if err := form.GoTo(step); err != nil {
				status = s.reject(sink, err)
			}

		case "submit":
			status = s.submitForm(r, form, sink)

		case "reset":
			if err := form.Reset(); err != nil {
				status = s.reject(sink, err)
			}
		}

		s.renderForm(w, r, status, def, form.State(), rec.Notices())
	}
}

// submitForm runs the pipeline. The pipeline reports its own outcome to
// sink; only errors it never saw are reported here.
func (s *Server) submitForm(r *http.Request, form *core.Form, sink notify.Sink) int {
	out, _, err := form.Submit(r.Context(), core.SubmitOptions{
		Verifier: s.verifier.ForRequest(r),
		Notifier: sink,
	})
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, core.ErrStepInvalid):
		return http.StatusUnprocessableEntity
	case out.State == core.StateFailed:
		return http.StatusOK
	}
	return s.reject(sink, err)
}

// reject notifies the user of an engine error. Validation failures are
// shown inline and never notified.
func (s *Server) reject(sink notify.Sink, err error) int {
	if errors.Is(err, core.ErrStepInvalid) {
		return http.StatusUnprocessableEntity
	}
	sink.Notify(notify.Error, core.MapError(err).Sentence())
	return statusFor(err)
}

// postedStep collects the submitted values of one step. An unchecked
// checkbox is absent from the body and means false; other absent fields
// are left unchanged.
func postedStep(def *core.Definition, r *http.Request) map[string]any {
	step, err := strconv.Atoi(r.PostFormValue("step"))
	if err != nil || step < 0 || step >= def.StepCount() {
		return nil
	}

	values := make(map[string]any)
	for _, f := range def.Steps[step].Fields {
		switch {
		case f.Kind == core.KindBool:
			values[f.Name] = r.PostForm.Has(f.Name) && r.PostFormValue(f.Name) != "false"
		case r.PostForm.Has(f.Name):
			values[f.Name] = r.PostFormValue(f.Name)
		}
	}
	return values
}

func (s *Server) renderForm(w http.ResponseWriter, r *http.Request, status int, def *core.Definition, state core.FormState, notices []notify.Notice) {
	view := templates.FormView{Def: def, State: state, Action: def.Path}
	if isHTMX(r) {
		s.render(w, r, status, templates.Fragment(templates.Notices(notices), templates.Form(view)))
		return
	}
	s.render(w, r, status, templates.FormPage(s.page(r, def.Title, notices...), view))
}
