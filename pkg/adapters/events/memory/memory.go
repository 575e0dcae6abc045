package memory

import (
	"context"
	"sync"

	"github.com/aescanero/dagoml/pkg/domain"
	"github.com/aescanero/dagoml/pkg/ports"
	"github.com/google/uuid"
)

type delivery struct {
	ctx   context.Context
	event *domain.Event
}

// subscription delivers events to its handler one at a time, in publish
// order. Publish only appends to the queue, so a slow handler never blocks
// the publisher or other subscribers.
type subscription struct {
	id      string
	handler ports.EventHandler

	mu     sync.Mutex
	queue  []delivery
	notify chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newSubscription(handler ports.EventHandler) *subscription {
	s := &subscription{
		id:      uuid.NewString(),
		handler: handler,
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go s.drain()
	return s
}

func (s *subscription) push(d delivery) {
	s.mu.Lock()
	s.queue = append(s.queue, d)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *subscription) next() (delivery, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return delivery{}, false
	}
	d := s.queue[0]
	s.queue[0] = delivery{}
	s.queue = s.queue[1:]
	return d, true
}

func (s *subscription) drain() {
	for {
		select {
		case <-s.done:
			return
		case <-s.notify:
		}
		for {
			select {
			case <-s.done:
				return
			default:
			}
			d, ok := s.next()
			if !ok {
				break
			}
			// Handler errors are dropped, there is nobody to report them to.
			_ = s.handler(d.ctx, d.event)
		}
	}
}

func (s *subscription) stop() {
	s.once.Do(func() { close(s.done) })
}

// EventBus implements ports.EventBus using in-memory handlers
type EventBus struct {
	subscribers map[string][]*subscription
	mu          sync.RWMutex
}

// NewEventBus creates a new in-memory event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string][]*subscription),
	}
}

// Publish queues an event for every subscriber of a topic
func (e *EventBus) Publish(ctx context.Context, topic string, event *domain.Event) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	d := delivery{ctx: context.WithoutCancel(ctx), event: event}
	for _, sub := range e.subscribers[topic] {
		sub.push(d)
	}
	return nil
}

// Subscribe subscribes to events on a specific topic until ctx is done
func (e *EventBus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) error {
	sub := newSubscription(handler)

	e.mu.Lock()
	e.subscribers[topic] = append(e.subscribers[topic], sub)
	e.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			e.unsubscribe(topic, sub.id)
		case <-sub.done:
		}
	}()

	return nil
}

// Unsubscribe removes all subscriptions from a topic
func (e *EventBus) Unsubscribe(ctx context.Context, topic string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, sub := range e.subscribers[topic] {
		sub.stop()
	}
	delete(e.subscribers, topic)
	return nil
}

// Close closes the event bus and cleans up resources
func (e *EventBus) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, subs := range e.subscribers {
		for _, sub := range subs {
			sub.stop()
		}
	}
	e.subscribers = make(map[string][]*subscription)
	return nil
}

// Subscribers returns the number of handlers registered on topic
func (e *EventBus) Subscribers(topic string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return len(e.subscribers[topic])
}

func (e *EventBus) unsubscribe(topic, id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	subs := e.subscribers[topic]
	for i, s := range subs {
		if s.id == id {
			s.stop()
			e.subscribers[topic] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
}
