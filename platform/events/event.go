// Package events is the in-process publish/subscribe layer. Payload types
// live with the modules that emit them.
package events

import (
	"context"
	"time"
)

// Event is anything published on a Bus. EventName is the subscription key.
type Event interface {
	EventName() string
	OccurredAt() time.Time
}

// BaseEvent carries the time the underlying change happened.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc lets a closure subscribe to a Bus.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus fans an event out to every handler subscribed to its name.
//
// Publish is fire-and-forget; handler errors are only logged.
// PublishSync runs the handlers concurrently, waits, and joins their errors,
// which lets the change feed retry a delivery that any handler rejected.
type Bus interface {
	Publish(ctx context.Context, event Event)
	PublishSync(ctx context.Context, event Event) error
	Subscribe(eventName string, handler Handler)
}
