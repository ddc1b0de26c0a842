// Package eventbus fans accepted mutations out to live observers. There is
// no backlog: an observer sees only messages published after it subscribed.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/flitsinc/taskplex-monitor/internal/idgen"
	"github.com/flitsinc/taskplex-monitor/internal/telemetry"
)

const DefaultBuffer = 64

type Bus struct {
	buffer  int
	logger  *slog.Logger
	dropped metric.Int64Counter

	mu   sync.RWMutex
	subs map[string]*subscriber
}

type subscriber struct {
	ch chan []byte
}

type Option func(*Bus)

// WithBuffer sets how many undelivered messages an observer may queue before
// it is disconnected.
func WithBuffer(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.buffer = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

func NewBus(opts ...Option) *Bus {
	b := &Bus{
		buffer:  DefaultBuffer,
		logger:  slog.Default(),
		dropped: telemetry.Counter(telemetry.Meter("taskplex-monitor/eventbus"), "monitor.observers.dropped", "Observers disconnected for falling behind."),
		subs:    map[string]*subscriber{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers an observer. The returned channel carries encoded
// messages and is closed when ctx ends, on Unsubscribe, or when the observer
// falls too far behind.
func (b *Bus) Subscribe(ctx context.Context) (string, <-chan []byte) {
	id := idgen.ObserverID()
	sub := &subscriber{ch: make(chan []byte, b.buffer)}

	b.mu.Lock()
	b.subs[id] = sub
	b.mu.Unlock()
	b.logger.Info("observer registered", "observer_id", id)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(id)
	}()
	return id, sub.ch
}

// Unsubscribe removes an observer. Unknown ids are ignored.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(id)
}

func (b *Bus) removeLocked(id string) bool {
	sub, ok := b.subs[id]
	if !ok {
		return false
	}
	delete(b.subs, id)
	close(sub.ch)
	return true
}

func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish encodes msg once and offers it to every observer without blocking.
// An observer whose buffer is full is disconnected; the others are
// unaffected and Publish still succeeds.
func (b *Bus) Publish(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", msg.Type, err)
	}

	var slow []string
	b.mu.RLock()
	for id, sub := range b.subs {
		select {
		case sub.ch <- data:
		default:
			slow = append(slow, id)
		}
	}
	b.mu.RUnlock()

	if len(slow) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range slow {
		if b.removeLocked(id) {
			b.dropped.Add(ctx, 1, metric.WithAttributes(attribute.String("message.type", string(msg.Type))))
			b.logger.Debug("observer dropped", "observer_id", id, "message_type", msg.Type)
		}
	}
	return nil
}
