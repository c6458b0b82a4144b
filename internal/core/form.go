package core

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Form is one visitor's session with a form definition: a draft, the
// step position, and the submission state. All methods are safe for
// concurrent use; events are applied in the order they acquire the lock.
type Form struct {
	id       string
	def      *Definition
	pipeline *Pipeline
	observer Observer

	mu        sync.Mutex
	ctrl      *Controller
	validator *Validator
	seq       *Sequencer
	state     SubmissionState
	outcome   Outcome
	errors    map[string]string
	touched   time.Time
}

// FormState is a read-only view of a form for rendering and the JSON API.
type FormState struct {
	SessionID   string            `json:"session_id"`
	DraftID     string            `json:"draft_id"`
	Form        string            `json:"form"`
	Title       string            `json:"title"`
	Step        int               `json:"step"`
	StepCount   int               `json:"step_count"`
	StepName    string            `json:"step_name"`
	Terminal    bool              `json:"terminal"`
	Progress    []StepStatus      `json:"progress"`
	Values      map[string]any    `json:"values"`
	Inactive    map[string]bool   `json:"inactive,omitempty"`
	Errors      map[string]string `json:"errors,omitempty"`
	Submission  SubmissionState   `json:"submission"`
	Message     string            `json:"message,omitempty"`
	MessageCode string            `json:"message_code,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func newForm(id string, def *Definition, p *Pipeline, obs Observer, now time.Time) *Form {
	v := NewValidator(def)
	return &Form{
		id:        id,
		def:       def,
		pipeline:  p,
		observer:  obs,
		ctrl:      NewController(def),
		validator: v,
		seq:       NewSequencer(def, v),
		state:     StateIdle,
		touched:   now,
	}
}

// ID returns the session identifier.
func (f *Form) ID() string { return f.id }

// Definition returns the form's definition.
func (f *Form) Definition() *Definition { return f.def }

// SetField changes one value. Rejected while a submission is pending or
// after a successful one until Reset.
func (f *Form) SetField(name string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.editableLocked(); err != nil {
		return err
	}
	f.touched = time.Now()
	if err := f.ctrl.SetField(name, value); err != nil {
		return err
	}
	delete(f.errors, name)
	return nil
}

// SetFields applies several values together under one lock. Nothing
// changes unless every value is accepted.
func (f *Form) SetFields(values map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.editableLocked(); err != nil {
		return err
	}
	f.touched = time.Now()
	if err := f.ctrl.SetFields(values); err != nil {
		return err
	}
	for name := range values {
		delete(f.errors, name)
	}
	return nil
}

// Draft returns a snapshot of the current values.
func (f *Form) Draft() Draft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ctrl.Draft()
}

// Advance validates the current step and moves forward. On the last step
// it returns ErrTerminalStep; the caller submits instead.
func (f *Form) Advance() (StepResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.editableLocked(); err != nil {
		return StepResult{}, err
	}
	f.touched = time.Now()
	result, err := f.seq.Advance(f.ctrl.Draft())
	f.errors = result.ErrorMap()
	f.observer.StepChanged(f.def.Key, "advance", err == nil || errors.Is(err, ErrTerminalStep))
	return result, err
}

// Retreat moves back one step.
func (f *Form) Retreat() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.editableLocked(); err != nil {
		return err
	}
	f.touched = time.Now()
	err := f.seq.Retreat()
	if err == nil {
		f.errors = nil
	}
	f.observer.StepChanged(f.def.Key, "retreat", err == nil)
	return err
}

// GoTo jumps to a step from the progress indicator.
func (f *Form) GoTo(step int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.editableLocked(); err != nil {
		return err
	}
	f.touched = time.Now()
	err := f.seq.GoTo(step)
	if err == nil {
		f.errors = nil
	}
	f.observer.StepChanged(f.def.Key, "goto", err == nil)
	return err
}

// Reset discards the draft and returns to step 0 with a new draft ID.
func (f *Form) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == StatePending {
		return ErrSubmissionPending
	}
	f.resetLocked()
	return nil
}

func (f *Form) resetLocked() {
	f.ctrl.Reset()
	f.seq.reset()
	f.state = StateIdle
	f.outcome = Outcome{}
	f.errors = nil
	f.touched = time.Now()
}

// Submit re-validates every step and, if all pass, runs the pipeline. At
// most one submission per draft is in flight; a concurrent call gets
// ErrSubmissionPending. A failed validation moves the form to the first
// failing step and returns ErrStepInvalid without contacting anything.
func (f *Form) Submit(ctx context.Context, opts SubmitOptions) (Outcome, StepResult, error) {
	f.mu.Lock()
	if err := f.editableLocked(); err != nil {
		f.mu.Unlock()
		return Outcome{}, StepResult{}, err
	}

	draft := f.ctrl.Draft()
	if result, ok := f.validator.CanSubmit(draft); !ok {
		f.seq.markFailed(result.Step)
		f.errors = result.ErrorMap()
		f.touched = time.Now()
		f.mu.Unlock()
		return Outcome{}, result, ErrStepInvalid
	}

	f.state = StatePending
	f.outcome = Outcome{State: StatePending}
	f.errors = nil
	f.touched = time.Now()
	f.mu.Unlock()

	var out Outcome
	defer func() {
		f.mu.Lock()
		defer f.mu.Unlock()

		if out.State != StateSucceeded {
			out.State = StateFailed
		}
		f.state = out.State
		f.outcome = out
		f.touched = time.Now()
		if out.State == StateSucceeded && f.def.AfterSubmit == AfterSubmitReset {
			msg := out
			f.resetLocked()
			f.outcome = Outcome{State: StateIdle, Message: msg.Message}
		}
	}()

	out = f.pipeline.Run(ctx, f.def, f.validator, draft, opts)
	return out, StepResult{Step: f.def.StepCount() - 1, Valid: true}, out.Err
}

// State returns a snapshot for rendering.
func (f *Form) State() FormState {
	f.mu.Lock()
	defer f.mu.Unlock()

	draft := f.ctrl.Draft()
	step := f.seq.Current()

	var inactive map[string]bool
	for _, spec := range f.def.Fields() {
		if !f.validator.Active(draft, spec) {
			if inactive == nil {
				inactive = make(map[string]bool)
			}
			inactive[spec.Name] = true
		}
	}

	errs := make(map[string]string, len(f.errors))
	for k, v := range f.errors {
		errs[k] = v
	}

	return FormState{
		SessionID:   f.id,
		DraftID:     draft.ID(),
		Form:        f.def.Key,
		Title:       f.def.Title,
		Step:        step,
		StepCount:   f.def.StepCount(),
		StepName:    f.def.Steps[step].Name,
		Terminal:    f.seq.IsTerminal(),
		Progress:    f.seq.Progress(),
		Values:      draft.Values(),
		Inactive:    inactive,
		Errors:      errs,
		Submission:  f.state,
		Message:     f.outcome.Message,
		MessageCode: f.outcome.Code,
		UpdatedAt:   f.touched,
	}
}

// Submission returns the current submission state.
func (f *Form) Submission() SubmissionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Form) idleSince(now time.Time) (time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return now.Sub(f.touched), f.state == StatePending
}

func (f *Form) editableLocked() error {
	switch f.state {
	case StatePending:
		return ErrSubmissionPending
	case StateSucceeded:
		return ErrAlreadySubmitted
	}
	return nil
}
