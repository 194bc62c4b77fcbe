// Package booking implements the five-step booking wizard: a linear step
// sequencer, the per-step validity predicates and the draft reset rules.
package booking

import (
	"errors"
	"fmt"
)

type Step int

const (
	StepDateTime Step = iota + 1
	StepParticipants
	StepContact
	StepPayment
	StepConfirmation
)

// FirstStep and LastStep bound the sequence.
const (
	FirstStep = StepDateTime
	LastStep  = StepConfirmation
)

var (
	ErrStepInvalid           = errors.New("current step is incomplete")
	ErrFirstStep             = errors.New("already at the first step")
	ErrTerminalStep          = errors.New("confirmation step is terminal")
	ErrPaymentStepRequired   = errors.New("booking can only be completed from the payment step")
	ErrBookingCompleted      = errors.New("booking already completed")
	ErrDraftNotFound         = errors.New("booking draft not found")
	ErrExperienceUnavailable = errors.New("experience is not available for booking")
)

var stepTitles = map[Step]string{
	StepDateTime:     "Date & Time",
	StepParticipants: "Participants",
	StepContact:      "Contact Details",
	StepPayment:      "Payment",
	StepConfirmation: "Confirmation",
}

func (s Step) Valid() bool {
	return s >= FirstStep && s <= LastStep
}

func (s Step) Title() string {
	if title, ok := stepTitles[s]; ok {
		return title
	}
	return fmt.Sprintf("Step %d", int(s))
}

func (s Step) String() string {
	return s.Title()
}

// Advance returns the step after current. problems is the result of the
// current step's validity predicate; any entry blocks the move. Payment is
// left through completion only, so Advance refuses it as well as the
// confirmation step.
func Advance(current Step, problems []FieldError) (Step, error) {
	switch {
	case !current.Valid():
		return current, fmt.Errorf("unknown step %d", int(current))
	case current == StepConfirmation:
		return current, ErrTerminalStep
	case len(problems) > 0:
		return current, &ValidationError{Step: current, Fields: problems}
	case current == StepPayment:
		return current, ErrPaymentStepRequired
	}
	return current + 1, nil
}

// Retreat returns the step before current. It never consults validity.
func Retreat(current Step) (Step, error) {
	if !current.Valid() {
		return current, fmt.Errorf("unknown step %d", int(current))
	}
	if current == FirstStep {
		return current, ErrFirstStep
	}
	return current - 1, nil
}

type StepView struct {
	Number   int    `json:"number"`
	Title    string `json:"title"`
	Current  bool   `json:"current"`
	Complete bool   `json:"complete"`
}

// Progress describes every step relative to current for a progress indicator.
func Progress(current Step) []StepView {
	views := make([]StepView, 0, int(LastStep))
	for s := FirstStep; s <= LastStep; s++ {
		views = append(views, StepView{
			Number:   int(s),
			Title:    s.Title(),
			Current:  s == current,
			Complete: s < current,
		})
	}
	return views
}
