package app

import (
	"context"
	"sync"

	"github.com/hylla/tavla/internal/domain"
)

// subscriberBuffer bounds how many events one slow subscriber may lag behind.
const subscriberBuffer = 32

// EventBroker fans committed change events out to subscribers without blocking publishers.
type EventBroker struct {
	mu          sync.Mutex
	subscribers map[chan domain.ChangeEvent]struct{}
}

// NewEventBroker constructs a new value for this package.
func NewEventBroker() *EventBroker {
	return &EventBroker{subscribers: map[chan domain.ChangeEvent]struct{}{}}
}

// Subscribe registers a subscriber until ctx is done, then closes its channel.
func (b *EventBroker) Subscribe(ctx context.Context) <-chan domain.ChangeEvent {
	ch := make(chan domain.ChangeEvent, subscriberBuffer)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subscribers, ch)
		close(ch)
		b.mu.Unlock()
	}()
	return ch
}

// Publish delivers event to every subscriber with room; full subscribers miss it.
func (b *EventBroker) Publish(event domain.ChangeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribers returns the current subscriber count.
func (b *EventBroker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}
