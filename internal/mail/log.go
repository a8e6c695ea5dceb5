package mail

import (
	"context"

	"go.uber.org/zap"
)

// LogSender records deliveries instead of sending them. It is the default
// when no SMTP host is configured, which keeps local development and tests
// free of a mail relay.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("email delivery skipped, smtp not configured",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}
