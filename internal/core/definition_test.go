package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefinition_Defaults(t *testing.T) {
	def := mustGet(t, "test_listing")

	assert.Equal(t, AfterSubmitComplete, def.AfterSubmit)
	assert.Equal(t, "Submit", def.Messages.SubmitLabel)
	assert.Equal(t, 3, def.StepCount())
	assert.True(t, def.RequiresVerification())

	name, ok := def.Field("name")
	require.True(t, ok)
	assert.Equal(t, KindText, name.Kind)

	assert.Equal(t, 1, def.StepOf("to"))
	assert.Equal(t, -1, def.StepOf("missing"))
	assert.Len(t, def.Fields(), 10)

	signup := mustGet(t, "test_signup")
	assert.Equal(t, defaultFailureMessage, signup.Messages.Failure)
	assert.False(t, signup.RequiresVerification())
}

func TestParseDefinition_RejectsUnknownKeys(t *testing.T) {
	_, err := ParseDefinition([]byte(`
key: x
table: contact_submissions
colour: blue
steps: [{name: One, fields: [{name: a}]}]
record: {columns: [{column: name, field: a}]}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "colour")
}

func TestParseDefinition_ReportsAllProblems(t *testing.T) {
	_, err := ParseDefinition([]byte(`
key: broken
table: contact_submissions
after_submit: explode
steps:
  - name: One
    fields:
      - {name: a, kind: colour}
      - {name: b, kind: enum}
      - {name: c, depends_on: {field: nope, equals: x}}
      - {name: d, not_before: a}
      - {name: e, must_be_true: true}
      - {name: a}
record:
  columns:
    - {column: name, field: zzz}
    - {column: email, field: a, as: uppercase}
`))
	require.Error(t, err)

	for _, want := range []string{
		`after_submit "explode"`,
		`unknown kind "colour"`,
		`enum needs options`,
		`depends_on unknown field "nope"`,
		`not_before must name another date field`,
		`must_be_true needs kind bool`,
		`declared twice`,
		`unknown field "zzz"`,
		`unknown conversion "uppercase"`,
	} {
		assert.True(t, strings.Contains(err.Error(), want), "missing %q in %v", want, err)
	}
}

func TestParseDefinition_DependsOnLaterStep(t *testing.T) {
	_, err := ParseDefinition([]byte(`
key: order
table: contact_submissions
steps:
  - {name: One, fields: [{name: a, depends_on: {field: b, equals: x}}]}
  - {name: Two, fields: [{name: b}]}
record: {columns: [{column: name, field: a}]}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "later step")
}

func TestRegister_DuplicatePanics(t *testing.T) {
	def := *mustGet(t, "test_signup")
	assert.Panics(t, func() { Register(def) })
}

func TestAll_SortedByKey(t *testing.T) {
	all := All()
	require.GreaterOrEqual(t, len(all), 2)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Key, all[i].Key)
	}
	assert.Equal(t, len(all), FormCount())
}

func TestOptionLabel(t *testing.T) {
	grade, _ := mustGet(t, "test_listing").Field("grade")
	assert.Equal(t, "Grade B", grade.OptionLabel("b"))
	assert.Equal(t, "z", grade.OptionLabel(" z "))
	assert.True(t, grade.HasOption("a"))
	assert.False(t, grade.HasOption("c"))
}
