package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// EmailAPI is the subset of *sesv2.Client used by SESNotifier.
type EmailAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESNotifier sends messages as plain-text email through Amazon SES.
type SESNotifier struct {
	client EmailAPI
	from   string
}

// NewSESNotifier builds a notifier from an AWS config.
func NewSESNotifier(cfg aws.Config, from string) (*SESNotifier, error) {
	if from == "" {
		return nil, fmt.Errorf("notify: sender address is required")
	}
	return NewSESNotifierWithClient(sesv2.NewFromConfig(cfg), from), nil
}

// NewSESNotifierWithClient wraps an existing client.
func NewSESNotifierWithClient(c EmailAPI, from string) *SESNotifier {
	return &SESNotifier{client: c, from: from}
}

// Notify implements Notifier.
func (s *SESNotifier) Notify(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(msg.Body)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("notify: ses send %s: %w", msg.Kind, err)
	}
	return nil
}
