package email

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/rs/zerolog"
)

type fakeEmailSender struct {
	mu      sync.Mutex
	sent    []Envelope
	delay   time.Duration
	started chan struct{}
	err     error
}

func newFakeEmailSender(delay time.Duration) *fakeEmailSender {
	return &fakeEmailSender{delay: delay, started: make(chan struct{}, 1)}
}

func (f *fakeEmailSender) Send(ctx context.Context, env Envelope) error {
	select {
	case f.started <- struct{}{}:
	default:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(f.delay):
	}
	f.mu.Lock()
	f.sent = append(f.sent, env)
	f.mu.Unlock()
	return f.err
}

func (f *fakeEmailSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func waitForResult(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for email send")
		return nil
	}
}

var hello = Message{Kind: "test", Subject: "Subject", Body: "Body"}

func TestDispatchOutlivesCallerContext(t *testing.T) {
	sender := newFakeEmailSender(50 * time.Millisecond)

	logger := zerolog.Nop()
	ctx, cancel := context.WithCancel(logger.WithContext(context.Background()))
	done := Dispatch(ctx, sender, Envelope{To: " guest@example.com ", Message: hello})
	<-sender.started
	cancel()

	if err := waitForResult(t, done); err != nil {
		t.Fatalf("expected send to complete after caller cancel, got %v", err)
	}
	if sender.count() != 1 || sender.sent[0].To != "guest@example.com" {
		t.Fatalf("expected one trimmed email, got %+v", sender.sent)
	}
}

func TestDispatchTimesOut(t *testing.T) {
	prev := deliveryTimeout
	deliveryTimeout = 20 * time.Millisecond
	t.Cleanup(func() { deliveryTimeout = prev })

	done := Dispatch(context.Background(), newFakeEmailSender(time.Second), Envelope{To: "guest@example.com", Message: hello})
	if err := waitForResult(t, done); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestDispatchSkipsIncompleteEnvelopes(t *testing.T) {
	sender := newFakeEmailSender(0)
	tests := []struct {
		name   string
		client EmailSender
		env    Envelope
	}{
		{name: "no_client", env: Envelope{To: "guest@example.com", Message: hello}},
		{name: "blank_recipient", client: sender, env: Envelope{To: "  ", Message: hello}},
		{name: "no_subject", client: sender, env: Envelope{To: "guest@example.com", Message: Message{Body: "b"}}},
		{name: "no_body", client: sender, env: Envelope{To: "guest@example.com", Message: Message{Subject: "s"}}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if err := waitForResult(t, Dispatch(context.Background(), test.client, test.env)); err != nil {
				t.Fatalf("unexpected error %v", err)
			}
		})
	}
	if sender.count() != 0 {
		t.Fatalf("expected no emails, got %d", sender.count())
	}
}

func TestDeliver(t *testing.T) {
	sender := newFakeEmailSender(0)
	err := Deliver(context.Background(), sender, Envelope{To: "guest@example.com", From: "reminders@example.com", Message: hello})
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if sender.sent[0].From != "reminders@example.com" {
		t.Fatalf("from = %q", sender.sent[0].From)
	}

	sender.err = errors.New("ses down")
	if err := Deliver(context.Background(), sender, Envelope{To: "guest@example.com", Message: hello}); err == nil {
		t.Fatal("expected delivery error to propagate")
	}
	if err := Deliver(context.Background(), nil, Envelope{To: "guest@example.com", Message: hello}); !errors.Is(err, ErrNoClient) {
		t.Fatalf("expected ErrNoClient, got %v", err)
	}
	if err := Deliver(context.Background(), sender, Envelope{Message: hello}); !errors.Is(err, ErrNoRecipient) {
		t.Fatalf("expected ErrNoRecipient, got %v", err)
	}
}

func TestLogSender(t *testing.T) {
	sender := LogSender{Sender: "noreply@example.com"}
	if err := sender.Send(context.Background(), Envelope{To: "guest@example.com", Message: hello}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := sender.Send(context.Background(), Envelope{Message: hello}); err == nil {
		t.Fatal("expected error for empty recipient")
	}
}

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, params *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESClientSend(t *testing.T) {
	from, err := formatFrom("bookings@excursions.example", "Excursions")
	if err != nil {
		t.Fatalf("formatFrom: %v", err)
	}
	api := &fakeSES{}
	client := &SESClient{api: api, from: from}

	err = client.Send(context.Background(), Envelope{
		To:      "support@excursions.example",
		ReplyTo: "ada@example.com",
		Message: Message{Kind: KindContact, Subject: "Contact form: hi", Body: "hello"},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	in := api.input
	if got := aws.ToString(in.FromEmailAddress); got != `"Excursions" <bookings@excursions.example>` {
		t.Errorf("from = %q", got)
	}
	if len(in.ReplyToAddresses) != 1 || in.ReplyToAddresses[0] != "ada@example.com" {
		t.Errorf("reply-to = %v", in.ReplyToAddresses)
	}
	if len(in.EmailTags) != 1 || aws.ToString(in.EmailTags[0].Value) != KindContact {
		t.Errorf("tags = %+v", in.EmailTags)
	}
	if got := aws.ToString(in.Content.Simple.Body.Text.Data); got != "hello" {
		t.Errorf("body = %q", got)
	}

	if err := client.Send(context.Background(), Envelope{To: "a@example.com", From: "not an address", Message: hello}); err == nil {
		t.Error("expected invalid From override to fail")
	}
	api.err = errors.New("throttled")
	if err := client.Send(context.Background(), Envelope{To: "a@example.com", Message: hello}); err == nil || !strings.Contains(err.Error(), "throttled") {
		t.Errorf("expected wrapped SES error, got %v", err)
	}
}

func TestFormatFromRejectsBadSender(t *testing.T) {
	if _, err := formatFrom("", "Excursions"); err == nil {
		t.Fatal("expected empty sender to fail")
	}
	got, err := formatFrom("Tours <tours@example.com>", "Excursions")
	if err != nil || got != `"Tours" <tours@example.com>` {
		t.Fatalf("formatFrom kept name = %q, %v", got, err)
	}
}

func TestBuildBookingConfirmation(t *testing.T) {
	date, clock := FormatBookingDate("2026-11-21", "14:00")
	message := BuildBookingConfirmation(BookingDetails{
		ExperienceTitle:  "Harbour Kayak",
		City:             "Lisbon",
		Date:             date,
		Time:             clock,
		ConfirmationCode: "EXP-1A2B3C4D",
		ContactName:      "Ada",
		Adults:           2,
		Children:         1,
		Total:            "$297.00",
	})

	if message.Kind != KindConfirmation || message.Subject != "Booking Confirmed - Harbour Kayak (EXP-1A2B3C4D)" {
		t.Fatalf("subject = %q", message.Subject)
	}
	for _, want := range []string{
		"Hi Ada,",
		"Date: Saturday, Nov 21, 2026",
		"Time: 2:00 PM",
		"Guests: 2 adults, 1 child",
		"Total paid: $297.00",
		"Location: Lisbon",
	} {
		if !strings.Contains(message.Body, want) {
			t.Fatalf("body missing %q:\n%s", want, message.Body)
		}
	}
}

func TestBuildBookingCancellationDefaults(t *testing.T) {
	message := BuildBookingCancellation(BookingDetails{})
	if message.Subject != "Booking Cancelled - your experience (N/A)" {
		t.Fatalf("subject = %q", message.Subject)
	}
	if !strings.Contains(message.Body, "Date: TBD") || !strings.Contains(message.Body, "Guests: 1 adult") {
		t.Fatalf("body = %s", message.Body)
	}
}

func TestBuildContactNotification(t *testing.T) {
	message := BuildContactNotification(ContactDetails{Name: "Ada", Email: "ada@example.com", Message: " Hello there "})
	if message.Subject != "Contact form: (no subject)" {
		t.Fatalf("subject = %q", message.Subject)
	}
	if !strings.HasPrefix(message.Body, "From: Ada <ada@example.com>") || !strings.HasSuffix(message.Body, "Hello there") {
		t.Fatalf("body = %q", message.Body)
	}
}

func TestPartyLabel(t *testing.T) {
	tests := []struct {
		adults, children, infants int
		want                      string
	}{
		{1, 0, 0, "1 adult"},
		{2, 2, 1, "2 adults, 2 children, 1 infant"},
		{3, 0, 2, "3 adults, 2 infants"},
	}
	for _, test := range tests {
		if got := PartyLabel(test.adults, test.children, test.infants); got != test.want {
			t.Fatalf("PartyLabel(%d,%d,%d) = %q, want %q", test.adults, test.children, test.infants, got, test.want)
		}
	}
}
