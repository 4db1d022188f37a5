package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/fieldserve/dispatch-ai-platform/pkg/logging"
)

// SESConfig holds configuration for AWS SESv2.
type SESConfig struct {
	FromEmail        string
	FromName         string
	ReplyTo          string
	ConfigurationSet string // optional, enables SES event publishing
}

// SESSender sends emails via AWS SESv2.
type SESSender struct {
	client *sesv2.Client
	cfg    SESConfig
	logger *logging.Logger
}

// NewSESSender creates an AWS SESv2 email sender. Returns nil when no client
// is supplied.
func NewSESSender(client *sesv2.Client, cfg SESConfig, logger *logging.Logger) *SESSender {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = "FieldServe Dispatch"
	}
	return &SESSender{client: client, cfg: cfg, logger: logger}
}

// Send delivers one notification via SESv2. The message category and order/
// conversation ref travel as SES message tags so delivery events can be
// attributed per notification type.
func (s *SESSender) Send(ctx context.Context, msg EmailMessage) error {
	if s.client == nil {
		return fmt.Errorf("notify: SES client not configured")
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fmt.Sprintf("%s <%s>", s.cfg.FromName, s.cfg.FromEmail)),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content:          &types.EmailContent{Simple: s.buildBody(msg)},
	}
	if replyTo := firstNonEmptyAddr(msg.ReplyTo, s.cfg.ReplyTo); replyTo != "" {
		input.ReplyToAddresses = []string{replyTo}
	}
	if s.cfg.ConfigurationSet != "" {
		input.ConfigurationSetName = aws.String(s.cfg.ConfigurationSet)
	}
	if msg.Category != "" {
		input.EmailTags = append(input.EmailTags, types.MessageTag{
			Name:  aws.String("category"),
			Value: aws.String(sesTagValue(msg.Category)),
		})
	}
	if msg.Ref != "" {
		input.EmailTags = append(input.EmailTags, types.MessageTag{
			Name:  aws.String("ref"),
			Value: aws.String(sesTagValue(msg.Ref)),
		})
	}

	output, err := s.client.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("SES send failed", "error", err, "to", msg.To, "ref", msg.Ref)
		return fmt.Errorf("notify: SES send failed: %w", err)
	}

	s.logger.Info("email sent via SES",
		"to", msg.To, "category", msg.Category, "ref", msg.Ref,
		"message_id", aws.ToString(output.MessageId))
	return nil
}

func (s *SESSender) buildBody(msg EmailMessage) *types.Message {
	utf8 := func(data string) *types.Content {
		return &types.Content{Data: aws.String(data), Charset: aws.String("UTF-8")}
	}
	body := &types.Body{}
	if msg.Body != "" {
		body.Text = utf8(msg.Body)
	}
	if msg.HTML != "" {
		body.Html = utf8(msg.HTML)
	}
	return &types.Message{Subject: utf8(msg.Subject), Body: body}
}

// sesTagValue maps a ref onto the character set SES allows for tag values.
func sesTagValue(v string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '-'
		}
	}, v)
}

var _ EmailSender = (*SESSender)(nil)
