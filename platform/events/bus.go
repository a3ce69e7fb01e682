package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"lead_routing_backend/platform/logger"

	"golang.org/x/sync/errgroup"
)

// InMemoryBus dispatches events to handlers registered in this process.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	log      *logger.Logger
}

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[string][]Handler),
		log:      log,
	}
}

// Subscribe registers a handler for eventName.
func (b *InMemoryBus) Subscribe(eventName string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

func (b *InMemoryBus) handlersFor(eventName string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	hs := b.handlers[eventName]
	out := make([]Handler, len(hs))
	copy(out, hs)
	return out
}

// Publish runs every handler in its own goroutine and logs failures.
// The handlers outlive the caller's request, so cancellation is detached.
func (b *InMemoryBus) Publish(ctx context.Context, event Event) {
	detached := context.WithoutCancel(ctx)
	for _, h := range b.handlersFor(event.EventName()) {
		go func(h Handler) {
			defer b.recoverHandler(event)
			if err := h.Handle(detached, event); err != nil {
				b.log.WithContext(detached).Error("event handler failed", "event", event.EventName(), "error", err)
			}
		}(h)
	}
}

// PublishSync runs all handlers concurrently and waits for them.
func (b *InMemoryBus) PublishSync(ctx context.Context, event Event) error {
	handlers := b.handlersFor(event.EventName())
	if len(handlers) == 0 {
		return nil
	}

	errs := make([]error, len(handlers))
	var g errgroup.Group
	for i, h := range handlers {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("handler panic on %s: %v", event.EventName(), r)
				}
			}()
			errs[i] = h.Handle(ctx, event)
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

func (b *InMemoryBus) recoverHandler(event Event) {
	if r := recover(); r != nil {
		b.log.Error("event handler panic", "event", event.EventName(), "panic", fmt.Sprint(r))
	}
}

var _ Bus = (*InMemoryBus)(nil)
