package ports

import (
	"context"

	"github.com/aescanero/dagoml/pkg/domain"
)

// EventHandler handles one event delivered by an EventBus.
type EventHandler func(ctx context.Context, event *domain.Event) error

// EventBus publishes scheduler events to topic subscribers.
type EventBus interface {
	Publish(ctx context.Context, topic string, event *domain.Event) error
	Subscribe(ctx context.Context, topic string, handler EventHandler) error
	Unsubscribe(ctx context.Context, topic string) error
	Close() error
}
