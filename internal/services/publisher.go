// Package services orchestrates the use cases behind the HTTP handlers:
// expense writes with their gates, income and settings, the dashboard and
// analytics reads, CSV export, classification and account deletion.
package services

import (
	"context"

	"gota/internal/amqp"
	"gota/internal/log"
)

// EventPublisher announces user data changes to the mirror worker.
// *amqp.Client satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, msg *amqp.UserEventMessage) error
}

var _ EventPublisher = (*amqp.Client)(nil)

// notify publishes an event without failing the caller: the write it
// describes has already been committed.
func notify(ctx context.Context, pub EventPublisher, logger *log.Logger, eventType, userID, expenseID string) {
	if pub == nil {
		logger.DebugContext(ctx, "No publisher configured, skipping event", log.FieldEventType, eventType)
		return
	}
	msg := amqp.NewUserEventMessage(eventType, userID, expenseID)
	if err := pub.Publish(ctx, msg); err != nil {
		logger.WarnContext(ctx, "Failed to publish event",
			log.FieldEventType, eventType,
			log.FieldUserID, userID,
			log.FieldError, err)
	}
}
