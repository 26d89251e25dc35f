// Package mail delivers outbound email without blocking request handling.
package mail

import (
	"context"
	"log/slog"
	"sync"
	"time"
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

// LogSender writes messages to the log instead of delivering them. It is
// used when no mail provider is configured.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) LogSender {
	return LogSender{logger: logger}
}

func (s LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("email not delivered: no provider configured", "to", msg.To, "subject", msg.Subject)
	return nil
}

// Dispatcher sends messages in the background. Failures are logged and
// never reported back to the caller.
type Dispatcher struct {
	sender  Sender
	logger  *slog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewDispatcher wraps sender; each send gets its own timeout.
func NewDispatcher(sender Sender, logger *slog.Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{sender: sender, logger: logger, timeout: timeout}
}

// Dispatch queues msg for delivery and returns immediately.
func (d *Dispatcher) Dispatch(msg Message) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.sender.Send(ctx, msg); err != nil {
			d.logger.Warn("email delivery failed", "to", msg.To, "subject", msg.Subject, "error", err)
			return
		}
		d.logger.Debug("email delivered", "to", msg.To, "subject", msg.Subject)
	}()
}

// Wait blocks until every dispatched message has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
