package core

import (
	"errors"
	"fmt"
	"maps"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrUnknownField = errors.New("unknown field")
	ErrInvalidValue = errors.New("invalid value")
)

// Draft is an immutable snapshot of a form's values.
type Draft struct {
	id     string
	form   string
	values map[string]any
}

// ID identifies this draft instance. It changes on every reset.
func (d Draft) ID() string { return d.id }

// Form returns the definition key the draft belongs to.
func (d Draft) Form() string { return d.form }

// Value returns the raw value of a field: string, bool, or float64.
func (d Draft) Value(name string) any { return d.values[name] }

// String returns a field's value as text. Bools render as "true"/"false"
// and numbers without trailing zeros.
func (d Draft) String(name string) string {
	switch v := d.values[name].(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// Bool returns a field's value as a boolean.
func (d Draft) Bool(name string) bool {
	switch v := d.values[name].(type) {
	case bool:
		return v
	case string:
		b, _ := ParseBool(v)
		return b
	default:
		return false
	}
}

// Values returns a copy of all field values.
func (d Draft) Values() map[string]any {
	return maps.Clone(d.values)
}

// Controller owns the single mutable draft of one form session.
// It performs no validation and no I/O; callers serialize access.
type Controller struct {
	def    *Definition
	id     string
	values map[string]any
}

// NewController creates a controller holding a fresh default draft.
func NewController(def *Definition) *Controller {
	c := &Controller{def: def}
	c.Reset()
	return c
}

// SetField replaces exactly one field. Other fields are never touched,
// including fields whose visibility depends on this one.
func (c *Controller) SetField(name string, value any) error {
	spec, ok := c.def.Field(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	v, err := normalizeValue(spec, value)
	if err != nil {
		return err
	}
	c.values[name] = v
	return nil
}

// SetFields replaces several fields at once. Every value is checked before
// any is written, so on error the draft is unchanged.
func (c *Controller) SetFields(values map[string]any) error {
	for name := range values {
		if _, ok := c.def.Field(name); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownField, name)
		}
	}
	staged := make(map[string]any, len(values))
	for _, spec := range c.def.Fields() {
		value, ok := values[spec.Name]
		if !ok {
			continue
		}
		v, err := normalizeValue(spec, value)
		if err != nil {
			return err
		}
		staged[spec.Name] = v
	}
	maps.Copy(c.values, staged)
	return nil
}

// Reset restores every field to its default and starts a new draft.
func (c *Controller) Reset() {
	c.id = uuid.NewString()
	c.values = make(map[string]any, len(c.def.index))
	for _, f := range c.def.Fields() {
		c.values[f.Name] = defaultValue(f)
	}
}

// Draft returns a snapshot that later mutations do not affect.
func (c *Controller) Draft() Draft {
	return Draft{id: c.id, form: c.def.Key, values: maps.Clone(c.values)}
}

func defaultValue(f FieldSpec) any {
	if f.Kind == KindBool {
		b, _ := ParseBool(f.Default)
		return b
	}
	return f.Default
}

// normalizeValue coerces input to the field's storage type. Number fields
// keep typed text verbatim so validation can report what the user entered.
func normalizeValue(spec FieldSpec, value any) (any, error) {
	if spec.Kind == KindBool {
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			if b, ok := ParseBool(v); ok {
				return b, nil
			}
		}
		return nil, fmt.Errorf("%w: %s expects a boolean, got %v", ErrInvalidValue, spec.Name, value)
	}

	switch v := value.(type) {
	case string:
		return v, nil
	case nil:
		return "", nil
	case float64:
		if spec.Kind == KindNumber {
			return v, nil
		}
	case int:
		if spec.Kind == KindNumber {
			return float64(v), nil
		}
	case int64:
		if spec.Kind == KindNumber {
			return float64(v), nil
		}
	}
	return nil, fmt.Errorf("%w: %s expects %s text, got %T", ErrInvalidValue, spec.Name, spec.Kind, value)
}

// text returns the trimmed textual form of a field.
func (d Draft) text(name string) string {
	return strings.TrimSpace(d.String(name))
}
