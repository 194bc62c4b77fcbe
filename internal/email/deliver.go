package email

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// deliveryTimeout bounds a single send, detached or not.
var deliveryTimeout = 5 * time.Second

var (
	ErrNoClient     = errors.New("email client is not configured")
	ErrNoRecipient  = errors.New("recipient is required")
	ErrEmptyMessage = errors.New("message subject and body are required")
)

// Envelope addresses one outbound message.
type Envelope struct {
	To string
	// From overrides the sender's default address when set.
	From    string
	ReplyTo string
	Message
}

func (e Envelope) check(client EmailSender) error {
	switch {
	case client == nil:
		return ErrNoClient
	case strings.TrimSpace(e.To) == "":
		return ErrNoRecipient
	case e.Subject == "" || e.Body == "":
		return ErrEmptyMessage
	}
	return nil
}

// Deliver sends env and waits for the outcome. Reminders use it so a booking
// is only marked once its email was accepted.
func Deliver(ctx context.Context, client EmailSender, env Envelope) error {
	if err := env.check(client); err != nil {
		return err
	}
	env.To = strings.TrimSpace(env.To)
	sendCtx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()
	return client.Send(sendCtx, env)
}

// Dispatch sends env in the background. The send survives cancellation of
// ctx, keeps its logger and is bounded by deliveryTimeout. The returned
// channel receives the outcome once; callers are free to ignore it.
func Dispatch(ctx context.Context, client EmailSender, env Envelope) <-chan error {
	done := make(chan error, 1)
	if err := env.check(client); err != nil {
		log.Ctx(ctx).Debug().Err(err).Str("email_kind", env.Kind).Msg("Email skipped")
		done <- nil
		return done
	}
	env.To = strings.TrimSpace(env.To)

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliveryTimeout)
	go func() {
		defer cancel()
		err := client.Send(sendCtx, env)
		logger := log.Ctx(sendCtx)
		if err != nil {
			logger.Error().Err(err).Str("recipient", env.To).Str("email_kind", env.Kind).Msg("Failed to send email")
		} else {
			logger.Debug().Str("recipient", env.To).Str("email_kind", env.Kind).Msg("Email sent")
		}
		done <- err
	}()
	return done
}
