package mailer

import (
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// SESClient is the part of the SES v2 API the sender uses.
type SESClient interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender delivers through AWS SES.
type SESSender struct {
	client  SESClient
	from    string
	replyTo string
}

// NewSESSender loads the AWS config. Static keys are used when both are set,
// otherwise the default credential chain applies.
func NewSESSender(s Settings) (*SESSender, error) {
	region := s.SESRegion
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if s.SESAccessKey != "" && s.SESSecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.SESAccessKey, s.SESSecretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("ses: load aws config: %w", err)
	}
	return NewSESSenderWithClient(sesv2.NewFromConfig(cfg), s.From, s.ReplyTo), nil
}

func NewSESSenderWithClient(client SESClient, from, replyTo string) *SESSender {
	return &SESSender{client: client, from: from, replyTo: replyTo}
}

func (s *SESSender) Send(ctx context.Context, to, subject, htmlBody, plainFallback string) error {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &types.Destination{ToAddresses: []string{to}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(htmlBody), Charset: aws.String("UTF-8")},
				},
			},
		},
	}
	if plainFallback != "" {
		input.Content.Simple.Body.Text = &types.Content{Data: aws.String(plainFallback), Charset: aws.String("UTF-8")}
	}
	if s.replyTo != "" {
		input.ReplyToAddresses = []string{s.replyTo}
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		log.Printf("❌ [SES] Failed to send to %s: %v", MaskAddress(to), err)
		return fmt.Errorf("ses send: %w", err)
	}
	log.Printf("✅ [SES] Sent to %s (id: %s)", MaskAddress(to), aws.ToString(out.MessageId))
	return nil
}
