package wizard

import (
	"encoding/json"
	"testing"

	"vacalyser/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestFormStateJSON(t *testing.T) {
	input := `{
		"company_name": "Acme",
		"tasks": ["build", "ship"],
		"team_size": 8,
		"salary_range": {"min": 50000, "max": 70000},
		"notes": null
	}`

	var form FormState
	require.NoError(t, json.Unmarshal([]byte(input), &form))

	assert.Equal(t, KindText, form["company_name"].Kind())
	assert.Equal(t, []string{"build", "ship"}, form["tasks"].List())
	assert.Equal(t, 8.0, form["team_size"].Number())
	lo, hi := form["salary_range"].Range()
	assert.Equal(t, 50000.0, lo)
	assert.Equal(t, 70000.0, hi)
	assert.True(t, form["notes"].IsEmpty())

	out, err := json.Marshal(FormState{"salary_range": Range(1, 2), "tasks": List()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"salary_range":{"min":1,"max":2},"tasks":[]}`, string(out))
}

func TestFormStateYAML(t *testing.T) {
	input := `
company_name: Acme
founded_year: 1999
hard_skills:
  - Go
  - SQL
salary_range:
  min: 60000
  max: 80000
`
	var form FormState
	require.NoError(t, yaml.Unmarshal([]byte(input), &form))

	assert.Equal(t, "Acme", form.Text("company_name"))
	assert.Equal(t, KindNumber, form["founded_year"].Kind())
	assert.Equal(t, "Go, SQL", form.Text("hard_skills"))
	assert.Equal(t, "60000 - 80000", form.Text("salary_range"))
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		raw     string
		want    Value
		wantErr bool
	}{
		{"text trimmed", KindText, "  Acme ", Text("Acme"), false},
		{"list commas", KindList, "Go, SQL,,  Docker", List("Go", "SQL", "Docker"), false},
		{"list newlines", KindList, "Go\nSQL", List("Go", "SQL"), false},
		{"number", KindNumber, "12", Number(12), false},
		{"number blank", KindNumber, "", Value{}, false},
		{"number invalid", KindNumber, "twelve", Value{}, true},
		{"range", KindRange, "EUR 50000 - 70000", Range(50000, 70000), false},
		{"range swapped", KindRange, "9-3", Range(3, 9), false},
		{"range invalid", KindRange, "lots", Value{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseValue(tt.kind, tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v", got)
		})
	}
}

func TestParseSteps(t *testing.T) {
	data := []byte(`
steps:
  - name: intro
    title: Intro
    required: [company_name]
    fields:
      - name: company_name
        label: Company
      - name: budget
        label: Budget
        kind: range
  - name: done
    title: Done
`)
	steps, err := ParseSteps(data)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, StepID(1), steps[1].ID)
	assert.Equal(t, KindText, steps[0].Fields[0].Kind)
	assert.Equal(t, KindRange, steps[0].Fields[1].Kind)

	w, err := New(steps)
	require.NoError(t, err)
	require.NoError(t, w.Advance(FormState{"company_name": Text("Acme")}))
	assert.True(t, w.IsTerminal())
}

func TestParseStepsErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		code string
	}{
		{"empty", "steps: []", errors.ErrCodeEmptyStepList},
		{"bad yaml", "steps: [", errors.ErrCodeInvalidFormat},
		{"bad kind", "steps:\n  - name: a\n    fields:\n      - name: x\n        kind: blob\n", errors.ErrCodeInvalidConfig},
		{"duplicate", "steps:\n  - name: a\n  - name: a\n", errors.ErrCodeInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSteps([]byte(tt.data))
			assert.True(t, errors.IsCode(err, tt.code), "got %v", err)
		})
	}
}

func TestDefaultStepsAreIndependentCopies(t *testing.T) {
	a := DefaultSteps()
	a[0].Required[0] = "changed"

	b := DefaultSteps()
	assert.Equal(t, "company_name", b[0].Required[0])
	assert.Equal(t, "summary", b[len(b)-1].Name)
	assert.Empty(t, b[len(b)-1].Required)
}
