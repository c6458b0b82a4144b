package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/shipbroker/internal/core"
	"github.com/JonMunkholm/shipbroker/internal/notify"
	"github.com/JonMunkholm/shipbroker/internal/store"
)

// FormInfo describes a form definition to API clients.
type FormInfo struct {
	Key                  string      `json:"key"`
	Title                string      `json:"title"`
	Description          string      `json:"description,omitempty"`
	Path                 string      `json:"path,omitempty"`
	RequiresVerification bool        `json:"requires_verification"`
	VerifyAction         string      `json:"verify_action,omitempty"`
	Steps                []core.Step `json:"steps"`
}

// DraftResponse is returned by every draft operation.
type DraftResponse struct {
	State   core.FormState   `json:"state"`
	Result  *core.StepResult `json:"result,omitempty"`
	Outcome *core.Outcome    `json:"outcome,omitempty"`
	Notices []notify.Notice  `json:"notices,omitempty"`
}

// PatchDraftRequest sets several fields at once.
type PatchDraftRequest struct {
	Values map[string]any `json:"values"`
}

func (s *Server) handleAPIListForms(w http.ResponseWriter, r *http.Request) {
	defs := core.All()
	out := make([]FormInfo, 0, len(defs))
	for _, d := range defs {
		out = append(out, FormInfo{
			Key:                  d.Key,
			Title:                d.Title,
			Description:          d.Description,
			Path:                 d.Path,
			RequiresVerification: d.RequiresVerification(),
			VerifyAction:         d.VerifyAction,
			Steps:                d.Steps,
		})
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleAPICreateDraft(w http.ResponseWriter, r *http.Request) {
	form, err := s.forms.Open(chi.URLParam(r, "formKey"), "")
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, r, http.StatusCreated, DraftResponse{State: form.State()})
}

// withDraft resolves {draftID} or answers 404.
func (s *Server) withDraft(fn func(w http.ResponseWriter, r *http.Request, f *core.Form)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, err := s.forms.Lookup(chi.URLParam(r, "draftID"))
		if err != nil {
			s.respondError(w, r, err, statusFor(err))
			return
		}
		fn(w, r, form)
	}
}

func (s *Server) handleAPIGetDraft(w http.ResponseWriter, r *http.Request) {
	s.withDraft(func(w http.ResponseWriter, r *http.Request, f *core.Form) {
		writeJSON(w, r, http.StatusOK, DraftResponse{State: f.State()})
	})(w, r)
}

func (s *Server) handleAPIPatchDraft(w http.ResponseWriter, r *http.Request) {
	s.withDraft(func(w http.ResponseWriter, r *http.Request, f *core.Form) {
		var req PatchDraftRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormBody))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			s.respondError(w, r, core.ErrInvalidValue, http.StatusBadRequest)
			return
		}
		if err := f.SetFields(req.Values); err != nil {
			s.respondError(w, r, err, statusFor(err))
			return
		}
		writeJSON(w, r, http.StatusOK, DraftResponse{State: f.State()})
	})(w, r)
}

func (s *Server) handleAPIAdvance(w http.ResponseWriter, r *http.Request) {
	s.withDraft(func(w http.ResponseWriter, r *http.Request, f *core.Form) {
		result, err := f.Advance()
		if err != nil && !errors.Is(err, core.ErrStepInvalid) {
			s.respondError(w, r, err, statusFor(err))
			return
		}
		writeJSON(w, r, advanceStatus(err), DraftResponse{State: f.State(), Result: &result})
	})(w, r)
}

func (s *Server) handleAPIRetreat(w http.ResponseWriter, r *http.Request) {
	s.withDraft(func(w http.ResponseWriter, r *http.Request, f *core.Form) {
		if err := f.Retreat(); err != nil {
			s.respondError(w, r, err, statusFor(err))
			return
		}
		writeJSON(w, r, http.StatusOK, DraftResponse{State: f.State()})
	})(w, r)
}

// handleAPISubmit runs the pipeline. The verification token comes from
// the X-Recaptcha-Token header.
func (s *Server) handleAPISubmit(w http.ResponseWriter, r *http.Request) {
	s.withDraft(func(w http.ResponseWriter, r *http.Request, f *core.Form) {
		rec, sink := notifier(r, "form", f.Definition().Key, "session", f.ID())
		out, result, err := f.Submit(r.Context(), core.SubmitOptions{
			Verifier: s.verifier.ForRequest(r),
			Notifier: sink,
		})

		resp := DraftResponse{Notices: rec.Notices()}
		var status int
		switch {
		case errors.Is(err, core.ErrStepInvalid):
			resp.Result = &result
			status = http.StatusUnprocessableEntity
		case out.State == core.StateSucceeded:
			resp.Outcome = &out
			status = http.StatusOK
		case out.State == core.StateFailed:
			resp.Outcome = &out
			status = submitFailureStatus(out.Err)
		default:
			s.respondError(w, r, err, statusFor(err))
			return
		}
		resp.State = f.State()
		writeJSON(w, r, status, resp)
	})(w, r)
}

func (s *Server) handleAPIReset(w http.ResponseWriter, r *http.Request) {
	s.withDraft(func(w http.ResponseWriter, r *http.Request, f *core.Form) {
		if err := f.Reset(); err != nil {
			s.respondError(w, r, err, statusFor(err))
			return
		}
		writeJSON(w, r, http.StatusOK, DraftResponse{State: f.State()})
	})(w, r)
}

func (s *Server) handleAPIDiscard(w http.ResponseWriter, r *http.Request) {
	s.withDraft(func(w http.ResponseWriter, r *http.Request, f *core.Form) {
		s.forms.Discard(f.ID())
		w.WriteHeader(http.StatusNoContent)
	})(w, r)
}

func advanceStatus(err error) int {
	if errors.Is(err, core.ErrStepInvalid) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusOK
}

func submitFailureStatus(err error) int {
	switch {
	case errors.Is(err, core.ErrVerificationFailed):
		return http.StatusForbidden
	case store.IsDuplicate(err):
		return http.StatusConflict
	case errors.Is(err, core.ErrTooManySubmissions):
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}
