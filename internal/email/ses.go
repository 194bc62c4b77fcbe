package email

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/rs/zerolog/log"
)

type SESOptions struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	// Sender is the default From address.
	Sender string
	// DisplayName is shown next to the default sender, e.g. "Excursions".
	DisplayName string
}

// SESClient delivers mail through Amazon SES v2.
type SESClient struct {
	api  sesAPI
	from string
}

type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

func NewSESClient(ctx context.Context, opts SESOptions) (*SESClient, error) {
	if opts.AccessKeyID == "" || opts.SecretAccessKey == "" || opts.Region == "" {
		return nil, errors.New("ses credentials and region are required")
	}
	from, err := formatFrom(opts.Sender, opts.DisplayName)
	if err != nil {
		return nil, err
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SESClient{api: sesv2.NewFromConfig(awsCfg), from: from}, nil
}

// formatFrom validates sender and renders it as "Name <addr>" when a display
// name is given.
func formatFrom(sender, displayName string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(sender))
	if err != nil {
		return "", fmt.Errorf("invalid ses sender %q: %w", sender, err)
	}
	if name := strings.TrimSpace(displayName); name != "" && addr.Name == "" {
		addr.Name = name
	}
	return addr.String(), nil
}

func (c *SESClient) Send(ctx context.Context, env Envelope) error {
	if c == nil || c.api == nil {
		return errors.New("ses client is not initialized")
	}
	input, err := c.buildInput(env)
	if err != nil {
		return err
	}
	out, err := c.api.SendEmail(ctx, input)
	if err != nil {
		log.Ctx(ctx).Error().
			Err(err).
			Str("recipient", env.To).
			Str("email_kind", env.Kind).
			Msg("SES rejected email")
		return fmt.Errorf("send ses email: %w", err)
	}
	log.Ctx(ctx).Debug().Str("message_id", aws.ToString(out.MessageId)).Str("email_kind", env.Kind).Msg("SES accepted email")
	return nil
}

func (c *SESClient) buildInput(env Envelope) (*sesv2.SendEmailInput, error) {
	if strings.TrimSpace(env.To) == "" {
		return nil, ErrNoRecipient
	}
	from := c.from
	if env.From != "" {
		addr, err := mail.ParseAddress(env.From)
		if err != nil {
			return nil, fmt.Errorf("invalid from address %q: %w", env.From, err)
		}
		from = addr.String()
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination:      &types.Destination{ToAddresses: []string{strings.TrimSpace(env.To)}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(env.Subject), Charset: aws.String("UTF-8")},
				Body:    &types.Body{Text: &types.Content{Data: aws.String(env.Body), Charset: aws.String("UTF-8")}},
			},
		},
	}
	if env.ReplyTo != "" {
		input.ReplyToAddresses = []string{env.ReplyTo}
	}
	if env.Kind != "" {
		input.EmailTags = []types.MessageTag{{Name: aws.String("kind"), Value: aws.String(env.Kind)}}
	}
	return input, nil
}
