package email

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

// ResendSender sends emails via the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
	logger *zap.Logger
}

// ResendConfig configures the Resend client. BaseURL overrides the API endpoint.
type ResendConfig struct {
	APIKey  string
	From    string
	BaseURL string
}

// NewResendSender creates a ResendSender with the given API key and default from address.
func NewResendSender(cfg ResendConfig, logger *zap.Logger) (*ResendSender, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("resend from address is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resend.NewClient(cfg.APIKey)
	if cfg.BaseURL != "" {
		base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parse resend base url: %w", err)
		}
		client.BaseURL = base
	}
	return &ResendSender{client: client, from: cfg.From, logger: logger}, nil
}

// Send sends a single email via Resend.
func (s *ResendSender) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	from := req.From
	if from == "" {
		from = s.from
	}
	params := &resend.SendEmailRequest{
		From:    from,
		To:      req.To,
		Subject: req.Subject,
		Html:    req.HTML,
	}
	if req.ReplyTo != "" {
		params.ReplyTo = req.ReplyTo
	}

	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return SendResult{}, fmt.Errorf("resend send failed: %w", err)
	}
	s.logger.Info("resend email sent", zap.String("message_id", sent.Id), zap.Strings("to", req.To))
	return SendResult{MessageID: sent.Id, SentAt: time.Now().UTC()}, nil
}
