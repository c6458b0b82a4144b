package core

// validation.go checks draft values against field specs.
//
// Validators are pure: the same draft yields the same result, and nothing
// is mutated or fetched. Fields whose depends_on condition is not met are
// inactive and always pass. Errors stay at the field level; they are shown
// inline and never routed to notifications.

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
	"unicode/utf8"
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidationError represents a single validation error for a field.
type ValidationError struct {
	Field   string `json:"field"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// StepResult is the conjunction of a step's field results.
type StepResult struct {
	Step   int               `json:"step"`
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// ErrorFor returns the message for a field, or "".
func (r StepResult) ErrorFor(field string) string {
	for _, e := range r.Errors {
		if e.Field == field {
			return e.Message
		}
	}
	return ""
}

// ErrorMap indexes messages by field name.
func (r StepResult) ErrorMap() map[string]string {
	if len(r.Errors) == 0 {
		return nil
	}
	m := make(map[string]string, len(r.Errors))
	for _, e := range r.Errors {
		m[e.Field] = e.Message
	}
	return m
}

// Validator evaluates a definition's constraints against drafts.
type Validator struct {
	def *Definition
	now func() time.Time
}

// NewValidator creates a validator using the wall clock for year limits.
func NewValidator(def *Definition) *Validator {
	return &Validator{def: def, now: time.Now}
}

// WithClock returns a copy that reads the current time from now.
func (v *Validator) WithClock(now func() time.Time) *Validator {
	cp := *v
	cp.now = now
	return &cp
}

// Active reports whether a field takes part in validation and the record.
func (v *Validator) Active(d Draft, spec FieldSpec) bool {
	if spec.DependsOn == nil {
		return true
	}
	return d.text(spec.DependsOn.Field) == spec.DependsOn.Equals
}

// ValidateField checks one field. A nil result means the field passes.
func (v *Validator) ValidateField(d Draft, name string) *ValidationError {
	spec, ok := v.def.Field(name)
	if !ok {
		return &ValidationError{Field: name, Message: "unknown field"}
	}
	if !v.Active(d, spec) {
		return nil
	}

	msg := v.check(d, spec)
	if msg == "" {
		return nil
	}
	if spec.Message != "" {
		msg = spec.Message
	}
	return &ValidationError{Field: name, Value: d.String(name), Message: msg}
}

// ValidateStep checks every field of a step.
func (v *Validator) ValidateStep(d Draft, step int) StepResult {
	result := StepResult{Step: step, Valid: true}
	if step < 0 || step >= len(v.def.Steps) {
		result.Valid = false
		result.Errors = append(result.Errors, ValidationError{Message: fmt.Sprintf("step %d out of range", step)})
		return result
	}

	for _, f := range v.def.Steps[step].Fields {
		if err := v.ValidateField(d, f.Name); err != nil {
			result.Valid = false
			result.Errors = append(result.Errors, *err)
		}
	}
	return result
}

// CanSubmit validates every step and returns the first failing one.
func (v *Validator) CanSubmit(d Draft) (StepResult, bool) {
	for i := range v.def.Steps {
		if r := v.ValidateStep(d, i); !r.Valid {
			return r, false
		}
	}
	return StepResult{Step: len(v.def.Steps) - 1, Valid: true}, true
}

// check returns the generated message for the first failed constraint.
func (v *Validator) check(d Draft, spec FieldSpec) string {
	if spec.Kind == KindBool {
		if (spec.MustBeTrue || spec.Required) && !d.Bool(spec.Name) {
			return fmt.Sprintf("%s must be accepted", spec.Label)
		}
		return ""
	}

	raw := d.text(spec.Name)
	if raw == "" {
		if spec.Required {
			return fmt.Sprintf("%s is required", spec.Label)
		}
		return ""
	}

	if spec.MinLength > 0 && utf8.RuneCountInString(raw) < spec.MinLength {
		return fmt.Sprintf("%s must be at least %d characters", spec.Label, spec.MinLength)
	}

	switch spec.Kind {
	case KindEmail:
		if !emailRegex.MatchString(raw) {
			return "Invalid email address"
		}

	case KindEnum:
		if !spec.HasOption(raw) {
			return fmt.Sprintf("Please select a valid %s", spec.Label)
		}

	case KindNumber:
		return v.checkNumber(d, spec)

	case KindDate:
		day, ok := ParseDate(raw)
		if !ok {
			return fmt.Sprintf("%s must be a valid date", spec.Label)
		}
		if spec.NotBefore != "" {
			other, _ := v.def.Field(spec.NotBefore)
			if start, ok := ParseDate(d.text(spec.NotBefore)); ok && day.Before(start) {
				return fmt.Sprintf("%s cannot be before %s", spec.Label, other.Label)
			}
		}
	}
	return ""
}

func (v *Validator) checkNumber(d Draft, spec FieldSpec) string {
	var n float64
	switch val := d.Value(spec.Name).(type) {
	case float64:
		n = val
	default:
		parsed, ok := ParseNumber(d.text(spec.Name))
		if !ok {
			return fmt.Sprintf("%s must be a number", spec.Label)
		}
		n = parsed
	}

	if spec.Integer && n != float64(int64(n)) {
		return fmt.Sprintf("%s must be a whole number", spec.Label)
	}
	if spec.Min != nil && n < *spec.Min {
		return fmt.Sprintf("%s must be at least %s", spec.Label, formatNumber(*spec.Min))
	}
	if spec.Max != nil && n > *spec.Max {
		return fmt.Sprintf("%s must be at most %s", spec.Label, formatNumber(*spec.Max))
	}
	if spec.MaxCurrentYear {
		if year := v.now().Year(); n > float64(year) {
			return fmt.Sprintf("%s must be at most %d", spec.Label, year)
		}
	}
	return ""
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
