package booking

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/codr1/Excursions/internal/models"
	"github.com/codr1/Excursions/internal/pricing"
)

type Participants struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
	Infants  int `json:"infants"`
}

func (p Participants) Total() int {
	return p.Adults + p.Children + p.Infants
}

// DefaultParticipants is the party a fresh or closed wizard starts with.
func DefaultParticipants() Participants {
	return Participants{Adults: 1}
}

type ContactInfo struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	SpecialRequests string `json:"specialRequests"`
}

type PaymentInfo struct {
	CardNumber     string `json:"cardNumber"`
	ExpiryDate     string `json:"expiryDate"`
	CVV            string `json:"cvv"`
	CardholderName string `json:"cardholderName"`
	BillingAddress string `json:"billingAddress"`
}

// Data is the transient state of one booking attempt.
type Data struct {
	ExperienceID  int64        `json:"experienceId"`
	SelectedDate  *string      `json:"selectedDate"`
	SelectedTime  string       `json:"selectedTime"`
	Participants  Participants `json:"participants"`
	ContactInfo   ContactInfo  `json:"contactInfo"`
	PaymentInfo   PaymentInfo  `json:"paymentInfo"`
	TotalAmount   float64      `json:"totalAmount"`
	AgreedToTerms bool         `json:"agreedToTerms"`
}

// Identity is the signed-in user a wizard pre-fills contact details from.
// A zero Identity is an anonymous guest.
type Identity struct {
	UserID *int64 `json:"userId,omitempty"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
}

func (i Identity) contactDefaults() ContactInfo {
	return ContactInfo{Name: i.Name, Email: i.Email, Phone: i.Phone}
}

// Wizard is a booking draft: the step pointer, the data being collected and
// a snapshot of the experience it books.
type Wizard struct {
	ID               string            `json:"id"`
	Step             Step              `json:"step"`
	Data             Data              `json:"data"`
	Experience       models.Experience `json:"experience"`
	Identity         Identity          `json:"identity"`
	Completed        bool              `json:"completed"`
	ConfirmationCode string            `json:"confirmationCode,omitempty"`
	Attempt          int               `json:"attempt"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// CompletionKey identifies the current attempt of this draft; Close starts a
// new attempt. The booking written on completion carries the key, so a
// retried completion finds that booking instead of inserting another.
func (w Wizard) CompletionKey() string {
	return w.ID + "#" + strconv.Itoa(w.Attempt)
}

func (w Wizard) Quote() pricing.Quote {
	return pricing.Calculate(w.Experience.Pricing.BasePrice, w.Data.Participants.Adults, w.Data.Participants.Children)
}

// Redacted returns a copy safe to echo back to clients: the card number is
// reduced to its last four digits and the CVV is blanked.
func (w Wizard) Redacted() Wizard {
	out := w
	out.Data.PaymentInfo.CardNumber = MaskCardNumber(w.Data.PaymentInfo.CardNumber)
	if out.Data.PaymentInfo.CVV != "" {
		out.Data.PaymentInfo.CVV = strings.Repeat("*", len(out.Data.PaymentInfo.CVV))
	}
	return out
}

func MaskCardNumber(number string) string {
	last4 := CardLast4(number)
	if last4 == "" {
		return ""
	}
	return "**** " + last4
}

func CardLast4(number string) string {
	digits := digitsOnly(number)
	if len(digits) < 4 {
		return ""
	}
	return digits[len(digits)-4:]
}

type ParticipantsPatch struct {
	Adults   *int `json:"adults,omitempty"`
	Children *int `json:"children,omitempty"`
	Infants  *int `json:"infants,omitempty"`
}

type ContactPatch struct {
	Name            *string `json:"name,omitempty"`
	Email           *string `json:"email,omitempty"`
	Phone           *string `json:"phone,omitempty"`
	SpecialRequests *string `json:"specialRequests,omitempty"`
}

type PaymentPatch struct {
	CardNumber     *string `json:"cardNumber,omitempty"`
	ExpiryDate     *string `json:"expiryDate,omitempty"`
	CVV            *string `json:"cvv,omitempty"`
	CardholderName *string `json:"cardholderName,omitempty"`
	BillingAddress *string `json:"billingAddress,omitempty"`
	AgreedToTerms  *bool   `json:"agreedToTerms,omitempty"`
}

type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// ValidationError lists the field problems that blocked a step change or a
// mutation. It matches ErrStepInvalid under errors.Is.
type ValidationError struct {
	Step   Step
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, field := range e.Fields {
		parts = append(parts, field.Error())
	}
	return fmt.Sprintf("%s: %s", e.Step.Title(), strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrStepInvalid
}

func digitsOnly(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
