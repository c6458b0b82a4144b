package core

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestController_DefaultDraft(t *testing.T) {
	c := NewController(mustGet(t, "test_listing"))
	d := c.Draft()

	if d.ID() == "" {
		t.Fatal("draft ID should be set")
	}
	if d.Form() != "test_listing" {
		t.Errorf("Form() = %q", d.Form())
	}
	if v, ok := d.Value("agree").(bool); !ok || v {
		t.Errorf("bool field default = %#v, want false", d.Value("agree"))
	}
	if d.String("name") != "" {
		t.Errorf("text default = %q, want empty", d.String("name"))
	}
}

func TestController_SetFieldTouchesOnlyOneField(t *testing.T) {
	c := NewController(mustGet(t, "test_listing"))
	if err := c.SetField("gearDetails", "2 x 25T cranes"); err != nil {
		t.Fatal(err)
	}
	before := c.Draft().Values()

	if err := c.SetField("hasGear", "no"); err != nil {
		t.Fatal(err)
	}
	after := c.Draft().Values()

	want := before
	want["hasGear"] = "no"
	if diff := cmp.Diff(want, after); diff != "" {
		t.Errorf("SetField changed other fields (-want +got):\n%s", diff)
	}
}

func TestController_SnapshotIsImmutable(t *testing.T) {
	c := NewController(mustGet(t, "test_listing"))
	snap := c.Draft()

	_ = c.SetField("name", "Changed")
	if snap.String("name") != "" {
		t.Error("snapshot changed after SetField")
	}

	vals := snap.Values()
	vals["name"] = "mutated"
	if snap.String("name") != "" {
		t.Error("Values() should return a copy")
	}
}

func TestController_Reset(t *testing.T) {
	c := NewController(mustGet(t, "test_listing"))
	first := c.Draft().ID()
	_ = c.SetField("name", "Urea")

	c.Reset()

	d := c.Draft()
	if d.ID() == first {
		t.Error("Reset should start a new draft ID")
	}
	if d.String("name") != "" {
		t.Errorf("name = %q after reset", d.String("name"))
	}
}

func TestController_SetFieldErrors(t *testing.T) {
	c := NewController(mustGet(t, "test_listing"))

	tests := []struct {
		name  string
		field string
		value any
		want  error
	}{
		{"unknown field", "colour", "blue", ErrUnknownField},
		{"bool expects boolean", "agree", "perhaps", ErrInvalidValue},
		{"bool rejects number", "agree", 1.0, ErrInvalidValue},
		{"text rejects number", "name", 12.0, ErrInvalidValue},
		{"text rejects slice", "name", []string{"a"}, ErrInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.SetField(tt.field, tt.value); !errors.Is(err, tt.want) {
				t.Errorf("SetField(%q, %v) error = %v, want %v", tt.field, tt.value, err, tt.want)
			}
		})
	}
}

func TestController_Coercion(t *testing.T) {
	c := NewController(mustGet(t, "test_listing"))

	_ = c.SetField("agree", "on")
	_ = c.SetField("qty", 12)
	_ = c.SetField("year", 2012.0)
	_ = c.SetField("name", nil)

	d := c.Draft()
	if !d.Bool("agree") {
		t.Error(`"on" should set a bool field`)
	}
	if d.String("qty") != "12" {
		t.Errorf("qty = %q, want 12", d.String("qty"))
	}
	if d.String("year") != "2012" {
		t.Errorf("year = %q, want 2012", d.String("year"))
	}
	if d.String("agree") != "true" {
		t.Errorf("String(agree) = %q", d.String("agree"))
	}
	if d.String("name") != "" {
		t.Errorf("nil should clear text, got %q", d.String("name"))
	}
}
