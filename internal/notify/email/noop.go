package email

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// NoopSender logs sends without delivering them. It keeps the requests for inspection.
type NoopSender struct {
	logger *zap.Logger
	mu     sync.Mutex
	sent   []SendRequest
}

// NewNoopSender creates a new NoopSender.
func NewNoopSender(logger *zap.Logger) *NoopSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoopSender{logger: logger}
}

// Send logs the email but does not deliver it.
func (s *NoopSender) Send(_ context.Context, req SendRequest) (SendResult, error) {
	s.mu.Lock()
	s.sent = append(s.sent, req)
	n := len(s.sent)
	s.mu.Unlock()
	s.logger.Info("noop email send", zap.Strings("to", req.To), zap.String("subject", req.Subject))
	return SendResult{MessageID: fmt.Sprintf("noop-%d", n), SentAt: time.Now().UTC()}, nil
}

// Sent returns a copy of the requests seen so far.
func (s *NoopSender) Sent() []SendRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SendRequest(nil), s.sent...)
}
