package booking

import (
	"errors"
	"testing"
)

func TestAdvance(t *testing.T) {
	problem := []FieldError{{Field: "x", Reason: "is required"}}

	tests := []struct {
		name     string
		current  Step
		problems []FieldError
		want     Step
		wantErr  error
	}{
		{name: "date_to_participants", current: StepDateTime, want: StepParticipants},
		{name: "participants_to_contact", current: StepParticipants, want: StepContact},
		{name: "contact_to_payment", current: StepContact, want: StepPayment},
		{name: "invalid_blocks", current: StepContact, problems: problem, want: StepContact, wantErr: ErrStepInvalid},
		{name: "payment_needs_completion", current: StepPayment, want: StepPayment, wantErr: ErrPaymentStepRequired},
		{name: "invalid_payment_blocks", current: StepPayment, problems: problem, want: StepPayment, wantErr: ErrStepInvalid},
		{name: "confirmation_terminal", current: StepConfirmation, want: StepConfirmation, wantErr: ErrTerminalStep},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := Advance(test.current, test.problems)
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("Advance error = %v, want %v", err, test.wantErr)
			}
			if got != test.want {
				t.Fatalf("Advance = %d, want %d", got, test.want)
			}
		})
	}

	if _, err := Advance(Step(9), nil); err == nil {
		t.Fatal("expected error for unknown step")
	}
}

func TestRetreat(t *testing.T) {
	for step := StepParticipants; step <= StepConfirmation; step++ {
		got, err := Retreat(step)
		if err != nil {
			t.Fatalf("Retreat(%d) error = %v", step, err)
		}
		if got != step-1 {
			t.Fatalf("Retreat(%d) = %d", step, got)
		}
	}

	got, err := Retreat(StepDateTime)
	if !errors.Is(err, ErrFirstStep) || got != StepDateTime {
		t.Fatalf("Retreat(first) = %d, %v", got, err)
	}
}

func TestProgress(t *testing.T) {
	views := Progress(StepContact)
	if len(views) != 5 {
		t.Fatalf("len(views) = %d", len(views))
	}
	for _, view := range views {
		switch {
		case view.Number < int(StepContact) && !view.Complete:
			t.Fatalf("step %d should be complete", view.Number)
		case view.Number == int(StepContact) && (!view.Current || view.Complete):
			t.Fatalf("step %d should be current only", view.Number)
		case view.Number > int(StepContact) && (view.Current || view.Complete):
			t.Fatalf("step %d should be pending", view.Number)
		}
	}
	if views[0].Title != "Date & Time" || views[4].Title != "Confirmation" {
		t.Fatalf("unexpected titles: %+v", views)
	}
}

func TestValidationErrorIs(t *testing.T) {
	err := error(&ValidationError{Step: StepContact, Fields: []FieldError{{Field: "contactInfo.name", Reason: "is required"}}})
	if !errors.Is(err, ErrStepInvalid) {
		t.Fatal("validation error should match ErrStepInvalid")
	}
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) || validationErr.Step != StepContact {
		t.Fatalf("errors.As failed: %v", err)
	}
	if err.Error() != "Contact Details: contactInfo.name is required" {
		t.Fatalf("Error() = %q", err.Error())
	}
}
