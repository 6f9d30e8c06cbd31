package mail

import (
	"context"
	"fmt"
	netmail "net/mail"
	"strings"

	"github.com/shopkit/backend/internal/domain/customer"
	"github.com/shopkit/backend/internal/infrastructure/config"
	"github.com/shopkit/backend/internal/infrastructure/resilience"
	"github.com/shopkit/backend/internal/infrastructure/storage"
	"go.uber.org/zap"
)

// NewTransport builds the transport selected by mail.transport and wraps it
// with throttling and a circuit breaker.
func NewTransport(ctx context.Context, cfg *config.Config, logger *zap.Logger) (customer.MailTransport, error) {
	var inner customer.MailTransport

	switch cfg.Mail.Transport {
	case config.MailTransportLog:
		inner = NewLogTransport(logger.Named("mail"), cfg.App.Env != "production")
	case config.MailTransportS3:
		spool, err := storage.NewS3ObjectStorage(ctx, &cfg.Storage, storage.WithLogger(logger.Named("storage")))
		if err != nil {
			return nil, fmt.Errorf("mail spool storage: %w", err)
		}
		if err := spool.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("mail spool bucket: %w", err)
		}
		inner = NewS3SpoolTransport(spool, senderDomain(cfg.Mail.From))
	default:
		return nil, fmt.Errorf("unknown mail transport %q", cfg.Mail.Transport)
	}

	breaker := resilience.NewBreaker(resilience.DefaultBreakerConfig("mail-"+cfg.Mail.Transport), logger)
	return NewGuardedTransport(inner, cfg.Mail.Rate, cfg.Mail.Burst, breaker), nil
}

func senderDomain(from string) string {
	addr, err := netmail.ParseAddress(from)
	if err != nil {
		return ""
	}
	if i := strings.LastIndexByte(addr.Address, '@'); i >= 0 {
		return addr.Address[i+1:]
	}
	return ""
}
