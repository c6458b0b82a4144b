package core

import "errors"

var (
	ErrStepInvalid  = errors.New("step has invalid fields")
	ErrTerminalStep = errors.New("already on the last step; submit instead")
	ErrFirstStep    = errors.New("already on the first step")
	ErrStepLocked   = errors.New("earlier steps must be completed first")
)

// StepState is a step's position relative to the current one.
type StepState string

const (
	StepComplete StepState = "complete"
	StepCurrent  StepState = "current"
	StepUpcoming StepState = "upcoming"
)

// StepStatus is one entry of the progress indicator.
type StepStatus struct {
	Index int       `json:"index"`
	Name  string    `json:"name"`
	State StepState `json:"state"`
}

// Sequencer tracks the current step and which steps have passed validation
// in this session. Forward moves are gated by validation; backward moves
// are free.
type Sequencer struct {
	def       *Definition
	validator *Validator
	current   int
	passed    []bool
}

// NewSequencer starts at step 0 with nothing validated.
func NewSequencer(def *Definition, v *Validator) *Sequencer {
	return &Sequencer{def: def, validator: v, passed: make([]bool, def.StepCount())}
}

// Current returns the active step index, always within [0, StepCount-1].
func (s *Sequencer) Current() int { return s.current }

// StepCount returns the number of steps.
func (s *Sequencer) StepCount() int { return len(s.passed) }

// IsTerminal reports whether the active step is the last one.
func (s *Sequencer) IsTerminal() bool { return s.current == len(s.passed)-1 }

// Advance validates the active step against d and moves forward by one if
// it passes. On the last step it returns ErrTerminalStep after validating,
// since the forward action there is a submission.
func (s *Sequencer) Advance(d Draft) (StepResult, error) {
	result := s.validator.ValidateStep(d, s.current)
	if !result.Valid {
		return result, ErrStepInvalid
	}
	s.passed[s.current] = true
	if s.IsTerminal() {
		return result, ErrTerminalStep
	}
	s.current++
	return result, nil
}

// Retreat moves back one step. Values are kept.
func (s *Sequencer) Retreat() error {
	if s.current == 0 {
		return ErrFirstStep
	}
	s.current--
	return nil
}

// GoTo jumps to step k. Backward jumps are always allowed; forward jumps
// need every earlier step to have passed validation.
func (s *Sequencer) GoTo(k int) error {
	if k < 0 || k >= len(s.passed) {
		return ErrStepLocked
	}
	for i := 0; i < k; i++ {
		if !s.passed[i] {
			return ErrStepLocked
		}
	}
	s.current = k
	return nil
}

// Passed reports whether step i has passed validation this session.
func (s *Sequencer) Passed(i int) bool {
	return i >= 0 && i < len(s.passed) && s.passed[i]
}

// Progress reports every step as complete, current, or upcoming.
func (s *Sequencer) Progress() []StepStatus {
	out := make([]StepStatus, len(s.passed))
	for i := range s.passed {
		state := StepUpcoming
		switch {
		case i < s.current:
			state = StepComplete
		case i == s.current:
			state = StepCurrent
		}
		out[i] = StepStatus{Index: i, Name: s.def.Steps[i].Name, State: state}
	}
	return out
}

func (s *Sequencer) reset() {
	s.current = 0
	for i := range s.passed {
		s.passed[i] = false
	}
}

// markFailed rewinds to a step that no longer validates.
func (s *Sequencer) markFailed(step int) {
	if step >= 0 && step < len(s.passed) {
		s.passed[step] = false
		if step < s.current {
			s.current = step
		}
	}
}
