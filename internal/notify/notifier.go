// Package notify fans order status changes out to the messaging service that
// emails or texts customers.
package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"orderdesk/internal/logging"
)

// Channel is a customer contact channel.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// StatusChange is the event published when an order changes status.
type StatusChange struct {
	OrderID     string    `json:"orderId"`
	OrderNumber int64     `json:"orderNumber"`
	Reference   string    `json:"reference"`
	CustomerID  string    `json:"customerId"`
	Previous    string    `json:"previous,omitempty"`
	Current     string    `json:"current"`
	Channels    []Channel `json:"channels"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// Notifier delivers a status change.
type Notifier interface {
	Notify(ctx context.Context, change StatusChange) error
}

// LogNotifier only logs events. It stands in when no broker is configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logging.OrNop(logger)}
}

func (n *LogNotifier) Notify(_ context.Context, change StatusChange) error {
	n.logger.Info("order status changed",
		zap.String("reference", change.Reference),
		zap.String("previous", change.Previous),
		zap.String("current", change.Current),
		zap.Any("channels", change.Channels))
	return nil
}

// Async delivers notifications in the background. Notify never blocks the
// caller and never returns the delivery error; failures are logged.
type Async struct {
	next    Notifier
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

func NewAsync(next Notifier, timeout time.Duration, logger *zap.Logger) *Async {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Async{next: next, timeout: timeout, logger: logging.OrNop(logger)}
}

func (a *Async) Notify(ctx context.Context, change StatusChange) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()
		if err := a.next.Notify(sendCtx, change); err != nil {
			a.logger.Warn("status notification failed",
				zap.String("orderId", change.OrderID),
				zap.String("status", change.Current),
				zap.Error(err))
		}
	}()
	return nil
}

// Wait blocks until in-flight notifications finish or ctx ends.
func (a *Async) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
