package service

import (
	"sync"

	"github.com/akashmaurya09/intelligrade/internal/observability"
)

const subscriberBufferSize = 16

// broker fans values out to every subscribed channel. Slow subscribers miss
// values rather than blocking the sender.
type broker[T any] struct {
	mu          sync.RWMutex
	subscribers map[chan T]struct{}
}

func newBroker[T any]() *broker[T] {
	return &broker[T]{subscribers: make(map[chan T]struct{})}
}

func (b *broker[T]) subscribe() (<-chan T, func()) {
	ch := make(chan T, subscriberBufferSize)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	observability.StreamClients().Inc()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, ch)
			close(ch)
			b.mu.Unlock()
			observability.StreamClients().Dec()
		})
	}
	return ch, cancel
}

func (b *broker[T]) broadcast(value T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- value:
		default:
		}
	}
}

func (b *broker[T]) len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
