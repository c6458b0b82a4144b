package web

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/shipbroker/internal/core"
	"github.com/JonMunkholm/shipbroker/internal/web/templates"
)

const newsletterForm = "newsletter"

// handleNewsletter subscribes an address from the landing-page card. Each
// post is a one-shot session: values in, one submission, session dropped.
// The typed email survives a failure so the visitor can retry.
func (s *Server) handleNewsletter(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
	if err := r.ParseForm(); err != nil {
		s.respondError(w, r, core.ErrInvalidValue, http.StatusBadRequest)
		return
	}

	form, err := s.forms.Open(newsletterForm, "")
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	defer s.forms.Discard(form.ID())

	card := templates.Newsletter{
		Email: r.PostFormValue("email"),
		Name:  r.PostFormValue("name"),
	}
	rec, sink := notifier(r, "form", newsletterForm)
	status := http.StatusOK

	if err := form.SetFields(map[string]any{"email": card.Email, "name": card.Name}); err != nil {
		status = s.reject(sink, err)
	} else {
		out, result, err := form.Submit(r.Context(), core.SubmitOptions{Notifier: sink})
		switch {
		case errors.Is(err, core.ErrStepInvalid):
			card.Errors = result.ErrorMap()
			status = http.StatusUnprocessableEntity
		case out.State == core.StateSucceeded:
			card = templates.Newsletter{}
		case out.State != core.StateFailed && err != nil:
			status = s.reject(sink, err)
		}
	}

	if isHTMX(r) {
		s.render(w, r, status, templates.Fragment(templates.Notices(rec.Notices()), templates.NewsletterCard(card)))
		return
	}
	s.render(w, r, status, templates.Home(s.page(r, "", rec.Notices()...), card))
}
