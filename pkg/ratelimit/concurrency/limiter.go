package concurrency

import (
	"context"
	"sync"

	"github.com/vnykmshr/sendgate/pkg/common/validation"
)

// Limiter bounds the number of operations in flight. Waiters are served in
// arrival order.
type Limiter interface {
	// TryAcquire takes a permit if one is free. It never blocks.
	TryAcquire() bool

	// Acquire blocks until a permit is free or ctx is done. On cancellation
	// it returns ctx.Err() and holds no permit.
	Acquire(ctx context.Context) error

	// Release returns a permit. It panics when no permit is held.
	Release()

	// Capacity returns the maximum number of permits.
	Capacity() int

	// InUse returns the number of permits currently held.
	InUse() int

	// Waiting returns the number of blocked Acquire calls.
	Waiting() int
}

type limiter struct {
	mu       sync.Mutex
	capacity int
	inUse    int
	waiters  []chan struct{}
}

// NewSafe creates a limiter allowing capacity concurrent holders.
func NewSafe(capacity int) (Limiter, error) {
	if err := validation.ValidatePositive("concurrency", "capacity", capacity); err != nil {
		return nil, err
	}
	return &limiter{capacity: capacity}, nil
}

// New is like NewSafe but panics on an invalid capacity.
func New(capacity int) Limiter {
	l, err := NewSafe(capacity)
	if err != nil {
		panic(err)
	}
	return l
}

func (l *limiter) TryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.inUse < l.capacity && len(l.waiters) == 0 {
		l.inUse++
		return true
	}
	return false
}

func (l *limiter) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	if l.inUse < l.capacity && len(l.waiters) == 0 {
		l.inUse++
		l.mu.Unlock()
		return nil
	}

	ready := make(chan struct{})
	l.waiters = append(l.waiters, ready)
	l.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.dequeue(ready) {
		return ctx.Err()
	}
	// Granted while canceling: pass the permit on.
	l.releaseLocked()
	return ctx.Err()
}

func (l *limiter) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.inUse == 0 {
		panic("concurrency: released more permits than acquired")
	}
	l.releaseLocked()
}

func (l *limiter) Capacity() int {
	return l.capacity
}

func (l *limiter) InUse() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inUse
}

func (l *limiter) Waiting() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.waiters)
}

// releaseLocked hands the permit to the oldest waiter, or frees it.
// l.mu must be held.
func (l *limiter) releaseLocked() {
	if len(l.waiters) > 0 {
		next := l.waiters[0]
		l.waiters = l.waiters[1:]
		close(next)
		return
	}
	l.inUse--
}

// dequeue removes ready from the wait list and reports whether it was
// still waiting. l.mu must be held.
func (l *limiter) dequeue(ready chan struct{}) bool {
	for i, w := range l.waiters {
		if w == ready {
			l.waiters = append(l.waiters[:i], l.waiters[i+1:]...)
			return true
		}
	}
	return false
}
