// Package mail delivers verification emails. Request handlers never talk to
// the transport directly: they hand messages to a Dispatcher, which sends
// them from background workers.
package mail

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/logging"
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender only records that a message would have been sent. The body is
// not logged since it carries verification secrets.
type LogSender struct {
	logger logging.Logger
}

func NewLogSender(l logging.Logger) *LogSender {
	return &LogSender{logger: l.With("module", "mail_log")}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.Info(ctx, "mail suppressed", "to", msg.To, "subject", msg.Subject)
	return nil
}
