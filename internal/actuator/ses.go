package actuator

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/stewardhq/steward/internal/domain"
)

// SESConfig holds what the SES adapter needs to send mail.
type SESConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// FromAddress is the verified identity all outbound mail is sent as.
	FromAddress string
}

// SESActuator sends outbound messages through Amazon SES v2. It handles
// send_message only; replies and forwards need mailbox context and go
// through the provider adapter instead.
type SESActuator struct {
	client *sesv2.Client
	from   string
}

// NewSESActuator builds the SES client from static credentials.
func NewSESActuator(ctx context.Context, cfg SESConfig) (*SESActuator, error) {
	if cfg.Region == "" || cfg.FromAddress == "" {
		return nil, fmt.Errorf("ses actuator: region and from address required")
	}
	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SESActuator{
		client: sesv2.NewFromConfig(awsCfg),
		from:   cfg.FromAddress,
	}, nil
}

// Authenticate verifies the credentials by fetching the account sending
// status.
func (s *SESActuator) Authenticate(ctx context.Context) error {
	if _, err := s.client.GetAccount(ctx, &sesv2.GetAccountInput{}); err != nil {
		return fmt.Errorf("ses account check: %w", err)
	}
	return nil
}

// Execute sends the message. Only send_message is routed here.
func (s *SESActuator) Execute(ctx context.Context, a *domain.Action) (*Result, error) {
	p, ok := a.Payload.(domain.SendMessagePayload)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, a.Type)
	}

	body := &types.Body{}
	if p.HTML {
		body.Html = &types.Content{Data: aws.String(p.Body)}
	} else {
		body.Text = &types.Content{Data: aws.String(p.Body)}
	}

	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination: &types.Destination{
			ToAddresses:  p.To,
			CcAddresses:  p.Cc,
			BccAddresses: p.Bcc,
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(p.Subject)},
				Body:    body,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("ses send: %w", err)
	}

	res := &Result{Detail: fmt.Sprintf("sent to %d recipients", len(p.To)+len(p.Cc)+len(p.Bcc))}
	if out.MessageId != nil {
		res.ResourceID = *out.MessageId
	}
	return res, nil
}
