package email

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/codr1/Excursions/internal/config"
)

// EmailSender delivers a single addressed message.
type EmailSender interface {
	Send(ctx context.Context, env Envelope) error
}

// LogSender writes messages to the log instead of delivering them. It backs
// development setups without SES credentials.
type LogSender struct {
	Sender string
}

func (s LogSender) Send(ctx context.Context, env Envelope) error {
	if strings.TrimSpace(env.To) == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	from := env.From
	if from == "" {
		from = s.Sender
	}
	log.Ctx(ctx).Info().
		Str("recipient", env.To).
		Str("sender", from).
		Str("reply_to", env.ReplyTo).
		Str("email_kind", env.Kind).
		Str("subject", env.Subject).
		Int("body_length", len(env.Body)).
		Msg("Email logged instead of sent")
	return nil
}

// NewSender returns an SES client when credentials are configured and a
// LogSender otherwise.
func NewSender(cfg *config.Config) (EmailSender, error) {
	if !cfg.SESConfigured() {
		log.Warn().Msg("SES not configured; emails will be logged only")
		return LogSender{Sender: cfg.Email.Sender}, nil
	}
	return NewSESClient(context.Background(), SESOptions{
		AccessKeyID:     cfg.Email.AccessKeyID,
		SecretAccessKey: cfg.Email.SecretAccessKey,
		Region:          cfg.Email.Region,
		Sender:          cfg.Email.Sender,
		DisplayName:     cfg.App.Name,
	})
}
