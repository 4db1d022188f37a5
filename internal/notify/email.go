package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/fieldserve/dispatch-ai-platform/pkg/logging"
)

// Email categories carried through to the provider so deliverability can be
// tracked per notification type.
const (
	CategoryVendorAssignment  = "vendor_assignment"
	CategoryTriggerActivation = "trigger_activation"
)

// EmailSender delivers a rendered notification email.
// Implementations can be swapped (SendGrid, SES, stub) without changing callers.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage is a rendered notification ready for delivery.
type EmailMessage struct {
	To      string
	ToName  string
	ReplyTo string // operator address vendors can answer to
	Subject string
	Body    string // plain text body
	HTML    string // optional HTML body

	// Category and Ref tie the email back to the dispatch domain: Category
	// is one of the Category* constants, Ref the order or conversation the
	// notification is about.
	Category string
	Ref      string
}

// refHeader carries the order/conversation reference on outbound mail so
// replies and bounces can be correlated.
const refHeader = "X-Dispatch-Ref"

// SendGridConfig holds configuration for SendGrid.
type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
	ReplyTo   string // default reply-to when the message sets none
}

// SendGridSender sends emails via the SendGrid API.
type SendGridSender struct {
	client *sendgrid.Client
	cfg    SendGridConfig
	logger *logging.Logger
}

// NewSendGridSender creates a SendGrid email sender. Returns nil when no API
// key is configured.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = "FieldServe Dispatch"
	}
	return &SendGridSender{
		client: sendgrid.NewSendClient(cfg.APIKey),
		cfg:    cfg,
		logger: logger,
	}
}

// Send delivers one notification via SendGrid.
func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s.client == nil {
		return fmt.Errorf("notify: sendgrid client not configured")
	}

	response, err := s.client.SendWithContext(ctx, s.build(msg))
	if err != nil {
		s.logger.Error("sendgrid send failed", "error", err, "to", msg.To, "ref", msg.Ref)
		return fmt.Errorf("notify: sendgrid send failed: %w", err)
	}
	if response.StatusCode >= 400 {
		s.logger.Error("sendgrid returned error status",
			"status", response.StatusCode, "body", response.Body, "to", msg.To, "ref", msg.Ref)
		return fmt.Errorf("notify: sendgrid returned status %d", response.StatusCode)
	}

	s.logger.Info("email sent via sendgrid",
		"to", msg.To, "category", msg.Category, "ref", msg.Ref, "status", response.StatusCode)
	return nil
}

func (s *SendGridSender) build(msg EmailMessage) *mail.SGMailV3 {
	from := mail.NewEmail(s.cfg.FromName, s.cfg.FromEmail)
	to := mail.NewEmail(msg.ToName, msg.To)

	html := msg.HTML
	if html == "" {
		html = msg.Body
	}
	m := mail.NewSingleEmail(from, msg.Subject, to, msg.Body, html)

	if msg.Category != "" {
		m.AddCategories(msg.Category)
	}
	if msg.Ref != "" {
		m.SetHeader(refHeader, msg.Ref)
	}
	if replyTo := firstNonEmptyAddr(msg.ReplyTo, s.cfg.ReplyTo); replyTo != "" {
		m.SetReplyTo(mail.NewEmail("", replyTo))
	}
	return m
}

func firstNonEmptyAddr(addrs ...string) string {
	for _, a := range addrs {
		if a != "" {
			return a
		}
	}
	return ""
}

// StubEmailSender logs notifications instead of delivering them. Used in
// tests and when no provider is configured.
type StubEmailSender struct {
	logger *logging.Logger
}

// NewStubEmailSender creates a stub email sender that logs but doesn't send.
func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

// Send logs the email but doesn't actually send it.
func (s *StubEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	s.logger.Info("stub email sender: would send email",
		"to", msg.To, "subject", msg.Subject, "category", msg.Category, "ref", msg.Ref)
	return nil
}

var _ EmailSender = (*SendGridSender)(nil)
var _ EmailSender = (*StubEmailSender)(nil)
