package eventbus

import (
	"context"
	"sync"
)

// Subscription receives events for one hospital, or for every hospital when
// it was opened with an empty hospital id.
type Subscription struct {
	hospitalID string
	ch         chan Event
	done       chan struct{}
	closed     bool
	mu         sync.RWMutex
}

func newSubscription(hospitalID string, bufferSize int) *Subscription {
	return &Subscription{
		hospitalID: hospitalID,
		ch:         make(chan Event, bufferSize),
		done:       make(chan struct{}),
	}
}

// Events returns the receive channel. It is closed when the subscription is
// closed or dropped.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Close is idempotent.
func (s *Subscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		close(s.ch)
		close(s.done)
		s.closed = true
	}
	return nil
}

func (s *Subscription) wants(ev Event) bool {
	return s.hospitalID == "" || s.hospitalID == ev.HospitalID
}

func (s *Subscription) send(ev Event) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}

	select {
	case s.ch <- ev:
		return true
	default:
		return false
	}
}

// MemoryBus is an in-process bus. A subscriber whose buffer is full is
// dropped instead of blocking Publish.
type MemoryBus struct {
	subscribers map[*Subscription]struct{}
	bufferSize  int
	closed      bool
	done        chan struct{}
	mu          sync.RWMutex
	cleanupWg   sync.WaitGroup
}

// NewMemoryBus creates a bus whose subscribers buffer bufferSize events.
// The minimum buffer size is 1.
func NewMemoryBus(bufferSize int) *MemoryBus {
	return &MemoryBus{
		subscribers: make(map[*Subscription]struct{}),
		bufferSize:  max(bufferSize, 1),
		done:        make(chan struct{}),
	}
}

// Subscribe registers a subscriber for hospitalID. The subscription is
// removed when ctx is cancelled. On a closed bus it returns a closed
// subscription.
func (b *MemoryBus) Subscribe(ctx context.Context, hospitalID string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := newSubscription(hospitalID, b.bufferSize)
	if b.closed {
		_ = sub.Close()
		return sub
	}

	b.subscribers[sub] = struct{}{}

	if ctx.Done() != nil {
		b.cleanupWg.Add(1)
		go func() {
			defer b.cleanupWg.Done()
			select {
			case <-ctx.Done():
				b.unsubscribe(sub)
			case <-b.done:
			}
		}()
	}

	return sub
}

// Publish hands ev to every matching subscriber without blocking.
func (b *MemoryBus) Publish(ctx context.Context, ev Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBusClosed
	}

	for sub := range b.subscribers {
		if !sub.wants(ev) {
			continue
		}
		if !sub.send(ev) {
			go b.unsubscribe(sub)
		}
	}

	return nil
}

// Subscribers returns the number of live subscriptions.
func (b *MemoryBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes every subscription. It is safe to call more than once.
func (b *MemoryBus) Close() error {
	b.mu.Lock()

	if b.closed {
		b.mu.Unlock()
		return nil
	}

	b.closed = true
	close(b.done)
	for sub := range b.subscribers {
		_ = sub.Close()
	}
	clear(b.subscribers)
	b.mu.Unlock()

	b.cleanupWg.Wait()
	return nil
}

func (b *MemoryBus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, sub)
	_ = sub.Close()
}
