package out

import (
	"context"

	"github.com/rcarmo/guerite/internal/domain"
)

// EventHandler defines the contract for handling events. The Notification
// Dispatcher is the primary implementation; it filters by enabled category
// internally rather than exposing a CanHandle predicate to the bus.
type EventHandler interface {
	Handle(ctx context.Context, event domain.Event) error
}

// EventPublisher defines the contract for publishing events.
type EventPublisher interface {
	Publish(event domain.Event) error
}

// EventSubscriber defines the contract for subscribing to events.
type EventSubscriber interface {
	Subscribe(handler EventHandler) error
	Unsubscribe(handler EventHandler) error
}

// EventBus combines publishing and subscribing capabilities with lifecycle
// management.
type EventBus interface {
	EventPublisher
	EventSubscriber
	Start() error
	Stop() error
}
