package email

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Sender entrega un correo HTML ya renderizado.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

type logSender struct {
	logger *zap.Logger
}

// NewLogSender devuelve un Sender que solo registra el envío; se usa cuando no hay SMTP configurado.
func NewLogSender(logger *zap.Logger) Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &logSender{logger: logger}
}

func (s *logSender) Send(_ context.Context, to, subject, htmlBody string) error {
	s.logger.Info("email delivery disabled, message logged",
		zap.String("to", strings.TrimSpace(to)),
		zap.String("subject", subject),
		zap.Int("body_bytes", len(htmlBody)),
	)
	return nil
}
