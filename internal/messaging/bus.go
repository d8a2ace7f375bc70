package messaging

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

// Handler receives messages published on a Bus.
type Handler[T any] interface {
	Handle(ctx context.Context, msg T) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc[T any] func(ctx context.Context, msg T) error

// Handle calls f(ctx, msg).
func (f HandlerFunc[T]) Handle(ctx context.Context, msg T) error {
	return f(ctx, msg)
}

// Bus delivers messages of a single type to its subscribers, in subscription
// order, on the publisher's goroutine.
type Bus[T any] struct {
	topic  string
	logger *logrus.Logger

	mu       sync.RWMutex
	handlers []Handler[T]
}

// NewBus constructs a Bus. topic only labels logs and errors.
func NewBus[T any](topic string, logger *logrus.Logger) *Bus[T] {
	return &Bus[T]{topic: topic, logger: logger}
}

// Subscribe registers h for every subsequent Publish.
func (b *Bus[T]) Subscribe(h Handler[T]) {
	if h == nil {
		return
	}

	b.mu.Lock()
	b.handlers = append(b.handlers, h)
	b.mu.Unlock()
}

// Subscribers returns the number of registered handlers.
func (b *Bus[T]) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}

// Publish dispatches msg to every subscriber and stops at the first error.
func (b *Bus[T]) Publish(ctx context.Context, msg T) error {
	b.mu.RLock()
	handlers := append([]Handler[T](nil), b.handlers...)
	b.mu.RUnlock()

	fields := logrus.Fields{"component": "messaging.bus", "topic": b.topic}

	if len(handlers) == 0 {
		if b.logger != nil {
			b.logger.WithFields(fields).Debug("message published without subscribers")
		}
		return nil
	}

	for idx, handler := range handlers {
		if err := ctx.Err(); err != nil {
			return eris.Wrapf(err, "publishing %s message", b.topic)
		}

		if err := handler.Handle(ctx, msg); err != nil {
			if b.logger != nil {
				b.logger.WithFields(fields).WithField("subscriber", idx).WithField("error", err.Error()).Warn("subscriber rejected message")
			}
			return eris.Wrapf(err, "dispatching %s message to subscriber %d", b.topic, idx)
		}
	}

	return nil
}
