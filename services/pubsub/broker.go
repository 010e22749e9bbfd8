// Package pubsub is an in-process topic broker. Subscribers receive published payloads on a buffered channel;
// a subscriber that does not keep up misses payloads instead of blocking publishers.
package pubsub

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/coachdesk/core"
)

const defaultBuffer = 16

var ErrClosed = errors.New("pubsub: broker closed")

type (
	Broker struct {
		mu     sync.RWMutex
		subs   map[string]map[*Subscription]struct{}
		buffer int
		closed bool
		logger core.Logger
	}

	Subscription struct {
		topic  string
		ch     chan interface{}
		broker *Broker
		once   sync.Once
	}
)

var _ core.Publisher = (*Broker)(nil)

func NewBroker(logger core.Logger) *Broker {
	return &Broker{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: defaultBuffer,
		logger: logger,
	}
}

// Subscribe registers a subscription to topic. It must be closed when no longer needed.
func (b *Broker) Subscribe(topic string) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	sub := &Subscription{topic: topic, ch: make(chan interface{}, b.buffer), broker: b}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*Subscription]struct{})
	}
	b.subs[topic][sub] = struct{}{}
	return sub, nil
}

// Publish delivers payload to the current subscribers of topic without blocking.
func (b *Broker) Publish(ctx context.Context, topic string, payload interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}
	for sub := range b.subs[topic] {
		select {
		case sub.ch <- payload:
		default:
			b.logger.Warn("pubsub: dropping payload for slow subscriber of " + topic)
		}
	}
	return nil
}

// Subscribers counts the subscriptions to topic.
func (b *Broker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Close ends every subscription.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for topic, subs := range b.subs {
		for sub := range subs {
			sub.once.Do(func() { close(sub.ch) })
		}
		delete(b.subs, topic)
	}
}

func (b *Broker) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subs, ok := b.subs[sub.topic]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(b.subs, sub.topic)
		}
	}
	sub.once.Do(func() { close(sub.ch) })
}

// C receives the payloads published to the topic; it is closed with the subscription.
func (s *Subscription) C() <-chan interface{} { return s.ch }
func (s *Subscription) Topic() string         { return s.topic }

func (s *Subscription) Close() {
	s.broker.unsubscribe(s)
}
