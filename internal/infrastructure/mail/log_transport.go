// Package mail holds the MailTransport implementations the customer facade
// delivers through.
package mail

import (
	"context"

	"github.com/shopkit/backend/internal/domain/customer"
	"go.uber.org/zap"
)

// LogTransport writes each message to the log instead of delivering it.
// Used in development and when no spool is configured.
type LogTransport struct {
	logger    *zap.Logger
	printBody bool
}

// NewLogTransport creates a log transport. The body is logged only when
// printBody is set, since it can carry confirmation tokens.
func NewLogTransport(logger *zap.Logger, printBody bool) *LogTransport {
	return &LogTransport{logger: logger, printBody: printBody}
}

// Send logs the message
func (t *LogTransport) Send(_ context.Context, msg customer.Message) error {
	fields := []zap.Field{
		zap.String("message_id", msg.ID),
		zap.String("from", msg.From),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	}
	if t.printBody {
		fields = append(fields, zap.String("body", msg.Body))
	}
	t.logger.Info("mail sent", fields...)
	return nil
}

var _ customer.MailTransport = (*LogTransport)(nil)
