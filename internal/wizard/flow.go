package wizard

import (
	"context"
	"fmt"

	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/models"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/utils"
)

// Flow is the step state machine. It stores only the current index;
// validity is recomputed from the draft on every call. Completion is a side
// effect of Next on the last step, not a state, so a failed completion can
// simply be retried.
type Flow struct {
	steps   []Step
	current int
}

func NewFlow(steps []Step) *Flow {
	return &Flow{steps: steps}
}

func (f *Flow) State() models.WizardState {
	return models.WizardState{CurrentStepIndex: f.current, TotalSteps: len(f.steps)}
}

// CanAdvance reports whether the forward control is enabled.
func (f *Flow) CanAdvance(d models.DraftSubjectProfile) bool {
	return f.steps[f.current].Validate(d) == nil
}

// Next moves forward when the current step is valid. On the last step it
// calls onComplete instead and reports completed=true along with
// onComplete's error.
func (f *Flow) Next(
	ctx context.Context,
	d models.DraftSubjectProfile,
	onComplete func(context.Context) error,
) (completed bool, err error) {
	if err := f.steps[f.current].Validate(d); err != nil {
		return false, fmt.Errorf("%w: %w", utils.ErrStepInvalid, err)
	}
	if f.current == len(f.steps)-1 {
		return true, onComplete(ctx)
	}
	f.current++
	return false, nil
}

func (f *Flow) Back() error {
	if f.current == 0 {
		return utils.ErrNoPreviousStep
	}
	f.current--
	return nil
}

// EditJump moves straight to step i, normally from the review page. Only
// steps already reached are reachable, so forward gating cannot be skipped.
// Field values are untouched.
func (f *Flow) EditJump(i int) error {
	if i < 0 || i >= len(f.steps) || i > f.current {
		return fmt.Errorf("%w: %d", utils.ErrStepOutOfRange, i)
	}
	f.current = i
	return nil
}

type StepProgress struct {
	Index int    `json:"index"`
	Key   string `json:"key"`
	Valid bool   `json:"valid"`
}

type View struct {
	State      models.WizardState `json:"state"`
	Step       StepView           `json:"step"`
	CanAdvance bool               `json:"canAdvance"`
	IsLastStep bool               `json:"isLastStep"`
	Progress   []StepProgress     `json:"progress"`
}

// View renders the current step for d.
func (f *Flow) View(d models.DraftSubjectProfile) View {
	step := f.steps[f.current]
	sv := step.Render(d)
	sv.Key = step.Key
	sv.Title = step.Title

	progress := make([]StepProgress, 0, len(f.steps))
	for i, s := range f.steps {
		progress = append(progress, StepProgress{Index: i, Key: s.Key, Valid: s.Validate(d) == nil})
	}

	state := f.State()
	return View{
		State:      state,
		Step:       sv,
		CanAdvance: progress[f.current].Valid,
		IsLastStep: state.IsLastStep(),
		Progress:   progress,
	}
}
