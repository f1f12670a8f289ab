package wizard

import (
	"context"
	stderrors "errors"
)

// Action is what the user chose to do after filling in a step
type Action int

const (
	ActionNext Action = iota
	ActionBack
	ActionReset
	ActionQuit
)

// Collector is the presentation side of a wizard run: it shows a step, reads
// answers and reports rejected advances back to the user.
type Collector interface {
	Collect(ctx context.Context, step Step, current FormState) (Action, FormState, error)
	Reject(step Step, err *MissingFieldsError)
}

// ErrQuit is returned by Drive when the collector asked to stop
var ErrQuit = stderrors.New("wizard aborted")

// Drive runs the wizard until the terminal step is reached, the collector quits
// or ctx is done.
func Drive(ctx context.Context, w *Wizard, c Collector) error {
	for !w.IsTerminal() {
		if err := ctx.Err(); err != nil {
			return err
		}
		step, err := w.CurrentStep()
		if err != nil {
			return err
		}

		action, collected, err := c.Collect(ctx, step, w.Form())
		if err != nil {
			return err
		}

		switch action {
		case ActionBack:
			w.Retreat()
		case ActionReset:
			w.Reset()
		case ActionQuit:
			return ErrQuit
		default:
			err := w.Advance(collected)
			var missing *MissingFieldsError
			if stderrors.As(err, &missing) {
				c.Reject(step, missing)
				continue
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}
