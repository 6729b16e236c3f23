// Package mailbox holds at most one pending request; a newer request
// replaces an older one that has not been taken yet.
package mailbox

import (
	"context"
	"sync"
)

// Mailbox is a single-slot buffer where the latest value always wins.
// It is NOT a queue.
type Mailbox[T any] struct {
	mu    sync.Mutex
	item  *T
	ready chan struct{}
}

func New[T any]() *Mailbox[T] {
	return &Mailbox[T]{ready: make(chan struct{}, 1)}
}

// Put stores v, replacing any pending value. It never blocks and reports
// whether a pending value was dropped.
func (m *Mailbox[T]) Put(v T) bool {
	m.mu.Lock()
	replaced := m.item != nil
	m.item = &v
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
	return replaced
}

// Take blocks until a value is available or ctx is done.
func (m *Mailbox[T]) Take(ctx context.Context) (T, error) {
	for {
		if v := m.TryTake(); v != nil {
			return *v, nil
		}
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-m.ready:
		}
	}
}

// TryTake returns the pending value, or nil if there is none.
func (m *Mailbox[T]) TryTake() *T {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.item
	m.item = nil
	return v
}

func (m *Mailbox[T]) HasItem() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.item != nil
}
