package core

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// FieldKind is the input type of a form field.
type FieldKind string

const (
	KindText     FieldKind = "text"
	KindTextarea FieldKind = "textarea"
	KindEmail    FieldKind = "email"
	KindTel      FieldKind = "tel"
	KindNumber   FieldKind = "number"
	KindDate     FieldKind = "date"
	KindEnum     FieldKind = "enum"
	KindBool     FieldKind = "bool"
)

func (k FieldKind) valid() bool {
	switch k {
	case KindText, KindTextarea, KindEmail, KindTel, KindNumber, KindDate, KindEnum, KindBool:
		return true
	}
	return false
}

// AfterSubmit decides what a form shows once a submission succeeds.
type AfterSubmit string

const (
	// AfterSubmitComplete shows the completion screen until the user resets.
	AfterSubmitComplete AfterSubmit = "complete"
	// AfterSubmitReset clears the draft and returns to the first step.
	AfterSubmitReset AfterSubmit = "reset"
)

// Option is one choice of an enum field.
type Option struct {
	Value       string `yaml:"value" json:"value"`
	Label       string `yaml:"label" json:"label"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Condition activates a field only while another field holds a value.
type Condition struct {
	Field  string `yaml:"field" json:"field"`
	Equals string `yaml:"equals" json:"equals"`
}

// FieldSpec declares one input and its constraints. Label, Placeholder,
// Widget and option descriptions are rendering hints only.
type FieldSpec struct {
	Name        string    `yaml:"name" json:"name"`
	Label       string    `yaml:"label" json:"label"`
	Kind        FieldKind `yaml:"kind" json:"kind"`
	Placeholder string    `yaml:"placeholder,omitempty" json:"placeholder,omitempty"`
	Widget      string    `yaml:"widget,omitempty" json:"widget,omitempty"`
	Help        string    `yaml:"help,omitempty" json:"help,omitempty"`

	Required       bool       `yaml:"required" json:"required"`
	MinLength      int        `yaml:"min_length,omitempty" json:"min_length,omitempty"`
	Min            *float64   `yaml:"min,omitempty" json:"min,omitempty"`
	Max            *float64   `yaml:"max,omitempty" json:"max,omitempty"`
	MaxCurrentYear bool       `yaml:"max_current_year,omitempty" json:"max_current_year,omitempty"`
	Integer        bool       `yaml:"integer,omitempty" json:"integer,omitempty"`
	MustBeTrue     bool       `yaml:"must_be_true,omitempty" json:"must_be_true,omitempty"`
	Options        []Option   `yaml:"options,omitempty" json:"options,omitempty"`
	DependsOn      *Condition `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	NotBefore      string     `yaml:"not_before,omitempty" json:"not_before,omitempty"`
	Default        string     `yaml:"default,omitempty" json:"default,omitempty"`

	// Message replaces the generated error text for any failure of this field.
	Message string `yaml:"message,omitempty" json:"message,omitempty"`
}

// HasOption reports whether v is one of the field's enum values.
func (f FieldSpec) HasOption(v string) bool {
	for _, o := range f.Options {
		if o.Value == v {
			return true
		}
	}
	return false
}

// Step is a named group of fields shown together.
type Step struct {
	Name        string      `yaml:"name" json:"name"`
	Description string      `yaml:"description,omitempty" json:"description,omitempty"`
	Fields      []FieldSpec `yaml:"fields" json:"fields"`
}

// Messages are the user-facing texts of a form.
type Messages struct {
	Success        string `yaml:"success"`
	Duplicate      string `yaml:"duplicate"`
	Failure        string `yaml:"failure"`
	CompletedTitle string `yaml:"completed_title"`
	CompletedBody  string `yaml:"completed_body"`
	SubmitLabel    string `yaml:"submit_label"`
}

// ColumnSpec maps a draft field onto a table column.
//
// As selects the conversion: text (default), nullable, lower, float, int,
// date, or null for a column that is always written as NULL.
type ColumnSpec struct {
	Column string `yaml:"column"`
	Field  string `yaml:"field"`
	As     string `yaml:"as"`
}

// NoteItem renders "Label: v1<sep>v2" from one or more fields.
type NoteItem struct {
	Label  string   `yaml:"label"`
	Fields []string `yaml:"fields"`
	Sep    string   `yaml:"sep"`
}

// NotesSpec flattens secondary fields into one free-text column.
type NotesSpec struct {
	Column string     `yaml:"column"`
	Items  []NoteItem `yaml:"items"`
}

// RecordSpec describes the flat record written on submission.
type RecordSpec struct {
	Columns []ColumnSpec `yaml:"columns"`
	Notes   *NotesSpec   `yaml:"notes"`
}

// Definition is a complete multi-step form.
type Definition struct {
	Key          string      `yaml:"key"`
	Title        string      `yaml:"title"`
	Description  string      `yaml:"description"`
	Path         string      `yaml:"path"`
	Table        string      `yaml:"table"`
	VerifyAction string      `yaml:"verify_action"`
	AfterSubmit  AfterSubmit `yaml:"after_submit"`
	Messages     Messages    `yaml:"messages"`
	Steps        []Step      `yaml:"steps"`
	Record       RecordSpec  `yaml:"record"`

	index map[string]fieldPos
}

type fieldPos struct {
	step, field int
}

// StepCount returns the number of steps.
func (d *Definition) StepCount() int {
	return len(d.Steps)
}

// Field looks up a field by name.
func (d *Definition) Field(name string) (FieldSpec, bool) {
	pos, ok := d.index[name]
	if !ok {
		return FieldSpec{}, false
	}
	return d.Steps[pos.step].Fields[pos.field], true
}

// StepOf returns the step index that owns the field, or -1.
func (d *Definition) StepOf(name string) int {
	if pos, ok := d.index[name]; ok {
		return pos.step
	}
	return -1
}

// Fields returns every field in step order.
func (d *Definition) Fields() []FieldSpec {
	var out []FieldSpec
	for _, s := range d.Steps {
		out = append(out, s.Fields...)
	}
	return out
}

// RequiresVerification reports whether submissions need a bot-verification token.
func (d *Definition) RequiresVerification() bool {
	return d.VerifyAction != ""
}

// Fallback texts used when a definition leaves a message empty.
const (
	defaultSuccessMessage   = "Submitted successfully!"
	defaultDuplicateMessage = "This record has already been submitted."
	defaultFailureMessage   = "An unexpected error occurred. Please try again."
	VerificationFailedMsg   = "Security verification failed. Please try again."
)

// ParseDefinition decodes and validates a YAML form definition.
// Unknown keys are rejected.
func ParseDefinition(data []byte) (Definition, error) {
	var def Definition

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return Definition{}, fmt.Errorf("decode form definition: %w", err)
	}
	if err := def.normalize(); err != nil {
		return Definition{}, fmt.Errorf("form %q: %w", def.Key, err)
	}
	return def, nil
}

// normalize fills defaults, builds the field index and checks that every
// cross-reference resolves.
func (d *Definition) normalize() error {
	var errs []error

	if d.Key == "" {
		errs = append(errs, errors.New("key is required"))
	}
	if d.Table == "" {
		errs = append(errs, errors.New("table is required"))
	}
	if len(d.Steps) == 0 {
		errs = append(errs, errors.New("at least one step is required"))
	}
	switch d.AfterSubmit {
	case "":
		d.AfterSubmit = AfterSubmitComplete
	case AfterSubmitComplete, AfterSubmitReset:
	default:
		errs = append(errs, fmt.Errorf("after_submit %q must be complete or reset", d.AfterSubmit))
	}
	if d.Messages.Success == "" {
		d.Messages.Success = defaultSuccessMessage
	}
	if d.Messages.Duplicate == "" {
		d.Messages.Duplicate = defaultDuplicateMessage
	}
	if d.Messages.Failure == "" {
		d.Messages.Failure = defaultFailureMessage
	}
	if d.Messages.SubmitLabel == "" {
		d.Messages.SubmitLabel = "Submit"
	}

	d.index = make(map[string]fieldPos)
	for si := range d.Steps {
		step := &d.Steps[si]
		if step.Name == "" {
			errs = append(errs, fmt.Errorf("step %d: name is required", si))
		}
		if len(step.Fields) == 0 {
			errs = append(errs, fmt.Errorf("step %q: no fields", step.Name))
		}
		for fi := range step.Fields {
			f := &step.Fields[fi]
			if f.Name == "" {
				errs = append(errs, fmt.Errorf("step %q field %d: name is required", step.Name, fi))
				continue
			}
			if _, dup := d.index[f.Name]; dup {
				errs = append(errs, fmt.Errorf("field %q declared twice", f.Name))
				continue
			}
			d.index[f.Name] = fieldPos{step: si, field: fi}

			if f.Kind == "" {
				f.Kind = KindText
			}
			if !f.Kind.valid() {
				errs = append(errs, fmt.Errorf("field %q: unknown kind %q", f.Name, f.Kind))
			}
			if f.Label == "" {
				f.Label = f.Name
			}
			if f.Kind == KindEnum && len(f.Options) == 0 {
				errs = append(errs, fmt.Errorf("field %q: enum needs options", f.Name))
			}
			if f.Kind == KindEnum && f.Default != "" && !f.HasOption(f.Default) {
				errs = append(errs, fmt.Errorf("field %q: default %q is not an option", f.Name, f.Default))
			}
			if f.Kind == KindBool && f.Default != "" {
				if _, ok := ParseBool(f.Default); !ok {
					errs = append(errs, fmt.Errorf("field %q: default %q is not a boolean", f.Name, f.Default))
				}
			}
			if f.MustBeTrue && f.Kind != KindBool {
				errs = append(errs, fmt.Errorf("field %q: must_be_true needs kind bool", f.Name))
			}
		}
	}

	// Cross-field references resolve only after the index is complete.
	for _, f := range d.Fields() {
		if f.DependsOn != nil {
			if _, ok := d.index[f.DependsOn.Field]; !ok {
				errs = append(errs, fmt.Errorf("field %q: depends_on unknown field %q", f.Name, f.DependsOn.Field))
			} else if d.StepOf(f.DependsOn.Field) > d.StepOf(f.Name) {
				errs = append(errs, fmt.Errorf("field %q: depends_on a field from a later step", f.Name))
			}
		}
		if f.NotBefore != "" {
			other, ok := d.Field(f.NotBefore)
			if !ok || other.Kind != KindDate || f.Kind != KindDate {
				errs = append(errs, fmt.Errorf("field %q: not_before must name another date field", f.Name))
			}
		}
	}

	for _, c := range d.Record.Columns {
		if c.Column == "" {
			errs = append(errs, errors.New("record column without name"))
		}
		switch c.As {
		case "", "text", "nullable", "lower", "float", "int", "date":
			if _, ok := d.index[c.Field]; !ok {
				errs = append(errs, fmt.Errorf("record column %q: unknown field %q", c.Column, c.Field))
			}
		case "null":
		default:
			errs = append(errs, fmt.Errorf("record column %q: unknown conversion %q", c.Column, c.As))
		}
	}
	if n := d.Record.Notes; n != nil {
		if n.Column == "" {
			errs = append(errs, errors.New("record notes: column is required"))
		}
		for _, item := range n.Items {
			for _, name := range item.Fields {
				if _, ok := d.index[name]; !ok {
					errs = append(errs, fmt.Errorf("record notes %q: unknown field %q", item.Label, name))
				}
			}
		}
	}
	if len(d.Record.Columns) == 0 && d.Record.Notes == nil {
		errs = append(errs, errors.New("record mapping is empty"))
	}

	return errors.Join(errs...)
}

// OptionLabel returns the label of an enum value, or the value itself.
func (f FieldSpec) OptionLabel(v string) string {
	for _, o := range f.Options {
		if o.Value == v {
			return o.Label
		}
	}
	return strings.TrimSpace(v)
}
