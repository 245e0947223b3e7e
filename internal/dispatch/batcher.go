package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/wardwatch/wardwatch/internal/domain"
)

// BatchKey identifies one digest window.
type BatchKey struct {
	UserID string
	Type   domain.NotificationType
}

// FlushFunc receives the notifications collected for key, in arrival order.
type FlushFunc func(ctx context.Context, key BatchKey, items []domain.Notification)

type pendingBatch struct {
	items []domain.Notification
	timer *time.Timer
}

// Batcher collects notifications per (user, type) and hands each group to a
// FlushFunc once its window elapses. The first notification of a key starts
// the window; later ones join it without extending it.
type Batcher struct {
	window time.Duration
	flush  FlushFunc

	mu      sync.Mutex
	pending map[BatchKey]*pendingBatch
	closed  bool
	wg      sync.WaitGroup
}

// NewBatcher returns a Batcher that flushes every window.
func NewBatcher(window time.Duration, flush FlushFunc) *Batcher {
	return &Batcher{
		window:  window,
		flush:   flush,
		pending: make(map[BatchKey]*pendingBatch),
	}
}

// Add appends n to its window. started reports whether n opened a new window.
func (b *Batcher) Add(n domain.Notification) (started bool, err error) {
	key := BatchKey{UserID: n.Recipient.UserID, Type: n.Type}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false, ErrBatcherClosed
	}

	if pb, ok := b.pending[key]; ok {
		pb.items = append(pb.items, n)
		return false, nil
	}

	pb := &pendingBatch{items: []domain.Notification{n}}
	pb.timer = time.AfterFunc(b.window, func() { b.fire(key, pb) })
	b.pending[key] = pb
	return true, nil
}

// fire runs on the timer goroutine. pb guards against a window that was
// already taken by Flush and replaced by a newer one.
func (b *Batcher) fire(key BatchKey, pb *pendingBatch) {
	b.mu.Lock()
	if b.closed || b.pending[key] != pb {
		b.mu.Unlock()
		return
	}
	delete(b.pending, key)
	b.wg.Add(1)
	b.mu.Unlock()

	defer b.wg.Done()
	b.flush(context.Background(), key, pb.items)
}

// Flush closes every open window now and flushes them on the calling
// goroutine. It returns the number of windows flushed.
func (b *Batcher) Flush(ctx context.Context) int {
	b.mu.Lock()
	taken := b.takeAll()
	b.mu.Unlock()

	for key, pb := range taken {
		b.flush(ctx, key, pb.items)
	}
	return len(taken)
}

// Close flushes what is pending, rejects further Adds and waits for timer
// flushes already in progress.
func (b *Batcher) Close(ctx context.Context) int {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return 0
	}
	b.closed = true
	taken := b.takeAll()
	b.mu.Unlock()

	for key, pb := range taken {
		b.flush(ctx, key, pb.items)
	}
	b.wg.Wait()
	return len(taken)
}

// Len returns the number of open windows.
func (b *Batcher) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (b *Batcher) takeAll() map[BatchKey]*pendingBatch {
	taken := b.pending
	b.pending = make(map[BatchKey]*pendingBatch)
	for _, pb := range taken {
		pb.timer.Stop()
	}
	return taken
}
