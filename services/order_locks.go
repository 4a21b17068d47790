package services

import (
	"context"
	"sync"

	"github.com/sortirkopi/bean-order-api/apperror"
)

// OrderLocks serializes mutations per order ID inside this process.
// Waiting honours context cancellation.
type OrderLocks struct {
	mu    sync.Mutex
	slots map[uint]*orderSlot
}

type orderSlot struct {
	ch   chan struct{}
	refs int
}

// NewOrderLocks creates an empty lock table
func NewOrderLocks() *OrderLocks {
	return &OrderLocks{slots: make(map[uint]*orderSlot)}
}

// Lock blocks until the caller holds the lock for id or ctx is done.
// The returned func releases it and must be called exactly once.
func (l *OrderLocks) Lock(ctx context.Context, id uint) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, apperror.Upstream("Request cancelled", err)
	}

	l.mu.Lock()
	slot, ok := l.slots[id]
	if !ok {
		slot = &orderSlot{ch: make(chan struct{}, 1)}
		l.slots[id] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
		return func() {
			<-slot.ch
			l.release(id, slot)
		}, nil
	case <-ctx.Done():
		l.release(id, slot)
		return nil, apperror.Upstream("Timed out waiting for order lock", ctx.Err())
	}
}

func (l *OrderLocks) release(id uint, slot *orderSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, id)
	}
}

// held reports how many callers hold or wait on id
func (l *OrderLocks) held(id uint) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if slot, ok := l.slots[id]; ok {
		return slot.refs
	}
	return 0
}
