package booking

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codr1/Excursions/internal/models"
)

const defaultPhoneRegion = "US"

var errInvalidPhone = errors.New("invalid phone number")

// Engine applies wizard operations. All operations mutate the wizard only on
// success; a returned error leaves it untouched.
type Engine struct {
	// Now defaults to time.Now.
	Now func() time.Time
	// PhoneRegion is the region assumed for numbers without a country code.
	PhoneRegion string
	// Location decides which calendar day counts as today. Defaults to UTC.
	Location *time.Location
}

func NewEngine(phoneRegion string) *Engine {
	return &Engine{PhoneRegion: phoneRegion}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) today() string {
	loc := e.Location
	if loc == nil {
		loc = time.UTC
	}
	return todayIn(e.now().In(loc))
}

func (e *Engine) phoneRegion() string {
	if e.PhoneRegion == "" {
		return defaultPhoneRegion
	}
	return strings.ToUpper(e.PhoneRegion)
}

// NewWizard starts a draft for experience on behalf of identity.
func (e *Engine) NewWizard(id string, experience models.Experience, identity Identity) (Wizard, error) {
	if !experience.Bookable() {
		return Wizard{}, ErrExperienceUnavailable
	}
	if id == "" {
		id = uuid.NewString()
	}
	now := e.now()
	w := Wizard{
		ID:         id,
		Step:       StepDateTime,
		Experience: experience,
		Identity:   identity,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	resetData(&w)
	return w, nil
}

// SetDate selects a calendar day, or clears it when day is empty. Any accepted
// call clears the selected time.
func (e *Engine) SetDate(w *Wizard, day string) error {
	if w.Completed {
		return ErrBookingCompleted
	}
	day = strings.TrimSpace(day)
	if day == "" {
		w.Data.SelectedDate = nil
		w.Data.SelectedTime = ""
		e.touch(w)
		return nil
	}
	if err := w.Experience.Availability.CheckDate(day, e.today()); err != nil {
		return &ValidationError{Step: StepDateTime, Fields: []FieldError{{Field: "selectedDate", Reason: err.Error()}}}
	}
	w.Data.SelectedDate = &day
	w.Data.SelectedTime = ""
	e.touch(w)
	return nil
}

// SetTime picks one of the experience's time slots for the selected date.
func (e *Engine) SetTime(w *Wizard, slot string) error {
	if w.Completed {
		return ErrBookingCompleted
	}
	slot = strings.TrimSpace(slot)
	if slot == "" {
		w.Data.SelectedTime = ""
		e.touch(w)
		return nil
	}
	if w.Data.SelectedDate == nil {
		return &ValidationError{Step: StepDateTime, Fields: []FieldError{{Field: "selectedTime", Reason: "requires a selected date"}}}
	}
	if !w.Experience.Availability.HasTimeSlot(slot) {
		return &ValidationError{Step: StepDateTime, Fields: []FieldError{{Field: "selectedTime", Reason: "is not an offered time slot"}}}
	}
	w.Data.SelectedTime = slot
	e.touch(w)
	return nil
}

// UpdateParticipants merges patch into the party and recomputes the total.
// A patch that would break the party invariants is rejected whole.
func (e *Engine) UpdateParticipants(w *Wizard, patch ParticipantsPatch) error {
	if w.Completed {
		return ErrBookingCompleted
	}
	next := w.Data.Participants
	if patch.Adults != nil {
		next.Adults = *patch.Adults
	}
	if patch.Children != nil {
		next.Children = *patch.Children
	}
	if patch.Infants != nil {
		next.Infants = *patch.Infants
	}
	if problems := checkParticipants(next, w.Experience.Pricing.GroupSize.Max); len(problems) > 0 {
		return &ValidationError{Step: StepParticipants, Fields: problems}
	}
	w.Data.Participants = next
	w.Data.TotalAmount = w.Quote().Total
	e.touch(w)
	return nil
}

func (e *Engine) UpdateContact(w *Wizard, patch ContactPatch) error {
	if w.Completed {
		return ErrBookingCompleted
	}
	mergeString(&w.Data.ContactInfo.Name, patch.Name)
	mergeString(&w.Data.ContactInfo.Email, patch.Email)
	mergeString(&w.Data.ContactInfo.Phone, patch.Phone)
	mergeString(&w.Data.ContactInfo.SpecialRequests, patch.SpecialRequests)
	e.touch(w)
	return nil
}

func (e *Engine) UpdatePayment(w *Wizard, patch PaymentPatch) error {
	if w.Completed {
		return ErrBookingCompleted
	}
	if patch.CardNumber != nil {
		cardNumber := strings.Map(func(r rune) rune {
			if r == ' ' || r == '-' {
				return -1
			}
			return r
		}, *patch.CardNumber)
		patch.CardNumber = &cardNumber
	}
	mergeString(&w.Data.PaymentInfo.CardNumber, patch.CardNumber)
	mergeString(&w.Data.PaymentInfo.ExpiryDate, patch.ExpiryDate)
	mergeString(&w.Data.PaymentInfo.CVV, patch.CVV)
	mergeString(&w.Data.PaymentInfo.CardholderName, patch.CardholderName)
	mergeString(&w.Data.PaymentInfo.BillingAddress, patch.BillingAddress)
	if patch.AgreedToTerms != nil {
		w.Data.AgreedToTerms = *patch.AgreedToTerms
	}
	e.touch(w)
	return nil
}

// Validate returns the problems blocking forward navigation from the
// current step.
func (e *Engine) Validate(w *Wizard) []FieldError {
	return e.checkStep(w, w.Step)
}

// CanProceed reports whether the current step's predicate holds.
func (e *Engine) CanProceed(w *Wizard) bool {
	return w.Step < StepConfirmation && len(e.Validate(w)) == 0
}

// Next moves forward one step. From the payment step it completes the booking.
func (e *Engine) Next(w *Wizard) error {
	if w.Completed {
		return ErrBookingCompleted
	}
	if w.Step == StepPayment {
		return e.Complete(w)
	}
	step, err := Advance(w.Step, e.Validate(w))
	if err != nil {
		return err
	}
	w.Step = step
	e.touch(w)
	return nil
}

func (e *Engine) Back(w *Wizard) error {
	if w.Completed {
		return ErrBookingCompleted
	}
	step, err := Retreat(w.Step)
	if err != nil {
		return err
	}
	w.Step = step
	e.touch(w)
	return nil
}

// Complete re-checks every data step and moves the wizard to confirmation.
func (e *Engine) Complete(w *Wizard) error {
	if w.Completed {
		return ErrBookingCompleted
	}
	if w.Step != StepPayment {
		return ErrPaymentStepRequired
	}
	for step := FirstStep; step <= StepPayment; step++ {
		if problems := e.checkStep(w, step); len(problems) > 0 {
			return &ValidationError{Step: step, Fields: problems}
		}
	}
	w.Step = StepConfirmation
	w.Completed = true
	w.ConfirmationCode = NewConfirmationCode()
	w.Data.TotalAmount = w.Quote().Total
	e.touch(w)
	return nil
}

// Close discards everything the guest entered and rewinds to the first step.
// Contact details fall back to the identity defaults, the experience is kept
// and the total is requoted for the default party.
func (e *Engine) Close(w *Wizard) {
	w.Step = StepDateTime
	w.Completed = false
	w.ConfirmationCode = ""
	w.Attempt++
	resetData(w)
	e.touch(w)
}

func resetData(w *Wizard) {
	w.Data = Data{
		ExperienceID: w.Experience.ID,
		Participants: DefaultParticipants(),
		ContactInfo:  w.Identity.contactDefaults(),
	}
	w.Data.TotalAmount = w.Quote().Total
}

func (e *Engine) touch(w *Wizard) {
	w.UpdatedAt = e.now()
}

func mergeString(dst *string, value *string) {
	if value != nil {
		*dst = *value
	}
}

// NewConfirmationCode returns a short human-readable booking reference.
func NewConfirmationCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "EXP-" + strings.ToUpper(raw[:8])
}
