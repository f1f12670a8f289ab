package wizard

import (
	"fmt"
	"slices"
	"strings"

	"vacalyser/internal/errors"
)

// MissingFieldsError is returned by Advance when the current step still lacks
// required answers. The cursor has not moved.
type MissingFieldsError struct {
	Step    string
	Missing []string
	app     *errors.AppError
}

func newMissingFieldsError(step string, missing []string) *MissingFieldsError {
	msg := fmt.Sprintf("step %q is missing required fields: %s", step, strings.Join(missing, ", "))
	return &MissingFieldsError{
		Step:    step,
		Missing: missing,
		app: errors.NewValidationError(errors.ErrCodeMissingField, msg, nil).
			WithContext("step", step).
			WithContext("missing_fields", missing),
	}
}

func (e *MissingFieldsError) Error() string {
	return e.app.Message
}

func (e *MissingFieldsError) Unwrap() error {
	return e.app
}

// Wizard is a linear step machine over a fixed catalog. It owns its FormState.
// A Wizard is not safe for concurrent use; callers serialise access per session.
type Wizard struct {
	steps  []Step
	cursor int
	form   FormState
}

// New builds a wizard positioned at the first step. An empty or inconsistent
// catalog is a configuration error.
func New(steps []Step) (*Wizard, error) {
	if err := ValidateSteps(steps); err != nil {
		return nil, err
	}
	return &Wizard{
		steps: slices.Clone(steps),
		form:  make(FormState),
	}, nil
}

// CurrentStep returns the step under the cursor
func (w *Wizard) CurrentStep() (Step, error) {
	if len(w.steps) == 0 {
		return Step{}, errors.NewConfigError(errors.ErrCodeEmptyStepList, "wizard has no steps", nil)
	}
	return w.steps[w.cursor], nil
}

// Advance merges collected into the form and moves one step forward when every
// required field of the current step is filled. On the terminal step the
// cursor stays put.
func (w *Wizard) Advance(collected FormState) error {
	step, err := w.CurrentStep()
	if err != nil {
		return err
	}
	if w.form == nil {
		w.form = make(FormState)
	}
	w.form.Merge(collected.Clone())

	if missing := w.form.Missing(step.Required); len(missing) > 0 {
		return newMissingFieldsError(step.Name, missing)
	}
	if w.cursor < len(w.steps)-1 {
		w.cursor++
	}
	return nil
}

// Retreat moves one step back, stopping at the first step. Collected values are kept.
func (w *Wizard) Retreat() {
	if w.cursor > 0 {
		w.cursor--
	}
}

// Reset clears every answer and returns to the first step
func (w *Wizard) Reset() {
	w.cursor = 0
	w.form = make(FormState)
}

func (w *Wizard) Index() int { return w.cursor }

func (w *Wizard) Len() int { return len(w.steps) }

// IsTerminal reports whether the cursor is on the last (summary) step
func (w *Wizard) IsTerminal() bool {
	return len(w.steps) > 0 && w.cursor == len(w.steps)-1
}

// Progress is the share of steps already passed, 1 on the terminal step
func (w *Wizard) Progress() float64 {
	if len(w.steps) <= 1 {
		return 1
	}
	return float64(w.cursor) / float64(len(w.steps)-1)
}

// Steps returns a copy of the catalog
func (w *Wizard) Steps() []Step {
	return slices.Clone(w.steps)
}

// Form returns a copy of the collected answers
func (w *Wizard) Form() FormState {
	return w.form.Clone()
}

// Snapshot is the persisted shape of a wizard session
type Snapshot struct {
	Cursor int       `json:"cursor" yaml:"cursor"`
	Form   FormState `json:"form" yaml:"form"`
}

func (w *Wizard) Snapshot() Snapshot {
	return Snapshot{Cursor: w.cursor, Form: w.form.Clone()}
}

// Restore loads a snapshot taken from a wizard over the same catalog
func (w *Wizard) Restore(s Snapshot) error {
	if s.Cursor < 0 || s.Cursor >= len(w.steps) {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("snapshot cursor %d outside catalog of %d steps", s.Cursor, len(w.steps)), nil)
	}
	w.cursor = s.Cursor
	w.form = s.Form.Clone()
	if w.form == nil {
		w.form = make(FormState)
	}
	return nil
}
