package booking

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/nyaruka/phonenumbers"

	"github.com/codr1/Excursions/internal/models"
)

const (
	minCardDigits = 13
	maxCardDigits = 19
)

var (
	validate    = validator.New()
	expiryRegex = regexp.MustCompile(`^(0[1-9]|1[0-2])/([0-9]{2})$`)
	cvvRegex    = regexp.MustCompile(`^[0-9]{3,4}$`)
)

// checkStep runs the validity predicate of step against w. An empty result
// means the step is complete.
func (e *Engine) checkStep(w *Wizard, step Step) []FieldError {
	switch step {
	case StepDateTime:
		return e.checkDateTime(w)
	case StepParticipants:
		return checkParticipants(w.Data.Participants, w.Experience.Pricing.GroupSize.Max)
	case StepContact:
		return e.checkContact(w.Data.ContactInfo)
	case StepPayment:
		return e.checkPayment(w.Data)
	default:
		return nil
	}
}

func (e *Engine) checkDateTime(w *Wizard) []FieldError {
	var problems []FieldError
	if w.Data.SelectedDate == nil {
		problems = append(problems, FieldError{Field: "selectedDate", Reason: "is required"})
	} else if err := w.Experience.Availability.CheckDate(*w.Data.SelectedDate, e.today()); err != nil {
		problems = append(problems, FieldError{Field: "selectedDate", Reason: err.Error()})
	}

	switch {
	case w.Data.SelectedTime == "":
		problems = append(problems, FieldError{Field: "selectedTime", Reason: "is required"})
	case !w.Experience.Availability.HasTimeSlot(w.Data.SelectedTime):
		problems = append(problems, FieldError{Field: "selectedTime", Reason: "is not an offered time slot"})
	}
	return problems
}

func checkParticipants(p Participants, maxGroup int) []FieldError {
	var problems []FieldError
	if p.Adults < 1 {
		problems = append(problems, FieldError{Field: "participants.adults", Reason: "must be at least 1"})
	}
	if p.Children < 0 {
		problems = append(problems, FieldError{Field: "participants.children", Reason: "must be 0 or greater"})
	}
	if p.Infants < 0 {
		problems = append(problems, FieldError{Field: "participants.infants", Reason: "must be 0 or greater"})
	}
	// Each count is bounded first so the sum cannot wrap.
	if p.Adults > maxGroup || p.Children > maxGroup || p.Infants > maxGroup || p.Total() > maxGroup {
		problems = append(problems, FieldError{
			Field:  "participants",
			Reason: "must not exceed the maximum group size of " + strconv.Itoa(maxGroup),
		})
	}
	return problems
}

func (e *Engine) checkContact(c ContactInfo) []FieldError {
	var problems []FieldError
	if strings.TrimSpace(c.Name) == "" {
		problems = append(problems, FieldError{Field: "contactInfo.name", Reason: "is required"})
	}

	email := strings.TrimSpace(c.Email)
	switch {
	case email == "":
		problems = append(problems, FieldError{Field: "contactInfo.email", Reason: "is required"})
	case validate.Var(email, "email") != nil:
		problems = append(problems, FieldError{Field: "contactInfo.email", Reason: "must be a valid email address"})
	}

	phone := strings.TrimSpace(c.Phone)
	switch {
	case phone == "":
		problems = append(problems, FieldError{Field: "contactInfo.phone", Reason: "is required"})
	default:
		if _, err := e.NormalizePhone(phone); err != nil {
			problems = append(problems, FieldError{Field: "contactInfo.phone", Reason: "must be a valid phone number"})
		}
	}
	return problems
}

func (e *Engine) checkPayment(d Data) []FieldError {
	var problems []FieldError
	p := d.PaymentInfo

	digits := digitsOnly(p.CardNumber)
	switch {
	case strings.TrimSpace(p.CardNumber) == "":
		problems = append(problems, FieldError{Field: "paymentInfo.cardNumber", Reason: "is required"})
	case len(digits) < minCardDigits || len(digits) > maxCardDigits || !luhnValid(digits):
		problems = append(problems, FieldError{Field: "paymentInfo.cardNumber", Reason: "is not a valid card number"})
	}

	expiry := strings.TrimSpace(p.ExpiryDate)
	switch {
	case expiry == "":
		problems = append(problems, FieldError{Field: "paymentInfo.expiryDate", Reason: "is required"})
	default:
		if reason := checkExpiry(expiry, e.now()); reason != "" {
			problems = append(problems, FieldError{Field: "paymentInfo.expiryDate", Reason: reason})
		}
	}

	switch {
	case p.CVV == "":
		problems = append(problems, FieldError{Field: "paymentInfo.cvv", Reason: "is required"})
	case !cvvRegex.MatchString(p.CVV):
		problems = append(problems, FieldError{Field: "paymentInfo.cvv", Reason: "must be 3 or 4 digits"})
	}

	if strings.TrimSpace(p.CardholderName) == "" {
		problems = append(problems, FieldError{Field: "paymentInfo.cardholderName", Reason: "is required"})
	}
	if strings.TrimSpace(p.BillingAddress) == "" {
		problems = append(problems, FieldError{Field: "paymentInfo.billingAddress", Reason: "is required"})
	}
	if !d.AgreedToTerms {
		problems = append(problems, FieldError{Field: "agreedToTerms", Reason: "must be accepted"})
	}
	return problems
}

// checkExpiry accepts MM/YY; a card is valid through the last day of its month.
func checkExpiry(expiry string, now time.Time) string {
	match := expiryRegex.FindStringSubmatch(expiry)
	if match == nil {
		return "must use MM/YY"
	}
	month, _ := strconv.Atoi(match[1])
	year, _ := strconv.Atoi(match[2])
	firstOfNextMonth := time.Date(2000+year, time.Month(month)+1, 1, 0, 0, 0, 0, now.Location())
	if !now.Before(firstOfNextMonth) {
		return "card has expired"
	}
	return ""
}

func luhnValid(digits string) bool {
	if digits == "" {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// NormalizePhone parses phone against the engine's default region and returns
// it in E.164 form.
func (e *Engine) NormalizePhone(phone string) (string, error) {
	parsed, err := phonenumbers.Parse(phone, e.phoneRegion())
	if err != nil {
		return "", err
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return "", errInvalidPhone
	}
	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}

func todayIn(now time.Time) string {
	return models.DateKey(now)
}
