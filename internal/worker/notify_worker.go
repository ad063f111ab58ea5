// Package worker runs the background side of the dashboard: the AMQP
// notification consumer and the cron-scheduled digest and sweep jobs.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"opsboard/internal/amqp"
	"opsboard/internal/notify"
)

// NotifyWorker consumes notification messages and dispatches them through
// the suppressor, so repeated events inside the window go out at most once.
type NotifyWorker struct {
	client     *amqp.Client
	dispatcher notify.Dispatcher
	suppressor *notify.Suppressor
}

func NewNotifyWorker(client *amqp.Client, dispatcher notify.Dispatcher, suppressor *notify.Suppressor) *NotifyWorker {
	return &NotifyWorker{
		client:     client,
		dispatcher: dispatcher,
		suppressor: suppressor,
	}
}

// Run blocks consuming notifications until the context is cancelled.
func (w *NotifyWorker) Run(ctx context.Context) error {
	return w.client.ConsumeNotifications(ctx, func(msg *amqp.NotificationMessage) error {
		return w.Handle(ctx, msg)
	})
}

// Handle dispatches one message unless the suppressor has seen its key
// inside the window. Suppressed messages are dropped, not requeued.
func (w *NotifyWorker) Handle(ctx context.Context, msg *amqp.NotificationMessage) error {
	if !w.suppressor.Allow(msg.Key(), time.Now()) {
		slog.InfoContext(ctx, "Notification suppressed",
			"key", msg.Key(), "action", msg.Action, "subject", msg.Subject)
		return nil
	}
	if err := w.dispatcher.Dispatch(ctx, msg); err != nil {
		// Let the send retry next time the key comes around.
		w.suppressor.Forget(msg.Key())
		return fmt.Errorf("dispatch notification: %w", err)
	}
	slog.InfoContext(ctx, "Notification dispatched",
		"action", msg.Action, "subject", msg.Subject, "tenant_id", msg.TenantID)
	return nil
}
