package app

import (
	"context"
	"time"

	"github.com/bookwell/engine/internal/domain"
)

// EventPublisher delivers engine state transitions to the notification
// dispatcher and the audit log. Delivery is fire-and-forget; implementations
// own their failure handling.
type EventPublisher interface {
	Publish(ctx context.Context, ev domain.Event)
}

// SlotFreedHandler is invoked after a hold or booking stops occupying its
// resource-time range. The waitlist allocator implements it.
type SlotFreedHandler interface {
	SlotFreed(ctx context.Context, businessID, resourceID string, start, end time.Time) error
}
