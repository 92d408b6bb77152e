// Package feed fans scan results out to live dashboard subscribers.
package feed

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Feed is the abstraction over different broadcast backends.
type Feed interface {
	Publish(ctx context.Context, payload []byte) error
	Subscribe(ctx context.Context) (Subscription, error)
}

// Subscription delivers published payloads until closed.
type Subscription interface {
	C() <-chan []byte
	Close()
}

// InMemory broadcasts to in-process subscribers over buffered channels.
// A subscriber that cannot keep up drops events; there is no replay.
type InMemory struct {
	mu   sync.Mutex
	subs map[string]chan []byte
}

// NewInMemory creates an empty in-process feed.
func NewInMemory() *InMemory {
	return &InMemory{subs: make(map[string]chan []byte)}
}

// Publish sends payload to every live subscriber without blocking.
func (f *InMemory) Publish(_ context.Context, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

// Subscribe registers a new subscriber.
func (f *InMemory) Subscribe(_ context.Context) (Subscription, error) {
	id := uuid.NewString()
	ch := make(chan []byte, 8)
	f.mu.Lock()
	f.subs[id] = ch
	f.mu.Unlock()
	return &memorySub{feed: f, id: id, ch: ch}, nil
}

type memorySub struct {
	feed *InMemory
	id   string
	ch   chan []byte
	once sync.Once
}

func (s *memorySub) C() <-chan []byte { return s.ch }

// Close removes the subscriber. The channel stays open so a concurrent
// Publish never panics; it is simply no longer written to.
func (s *memorySub) Close() {
	s.once.Do(func() {
		s.feed.mu.Lock()
		delete(s.feed.subs, s.id)
		s.feed.mu.Unlock()
	})
}
