package events

import (
	"context"
	"sync"

	"caseflow/internal/ports"
)

const subscriberBuffer = 64

// Broker is the in-process case change fan-out used by the websocket stream
// and the console. Slow subscribers miss events rather than block publishers.
type Broker struct {
	mu   sync.RWMutex
	subs []chan ports.CaseChanged
}

var _ ports.Publisher = (*Broker)(nil)

func NewBroker() *Broker {
	return &Broker{}
}

// Subscribe returns a channel of committed changes. Callers must Unsubscribe.
func (b *Broker) Subscribe() <-chan ports.CaseChanged {
	ch := make(chan ports.CaseChanged, subscriberBuffer)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes ch. It is not closed; unknown channels are ignored.
func (b *Broker) Unsubscribe(ch <-chan ports.CaseChanged) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subs {
		if sub == ch {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

func (b *Broker) Publish(_ context.Context, change ports.CaseChanged) error {
	b.mu.RLock()
	subs := make([]chan ports.CaseChanged, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- change:
		default:
		}
	}
	return nil
}

func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
