package visibility

import (
	"context"
	"sync"
)

// Latch stores the one-way "don't show again" flag per visitor key.
type Latch interface {
	IsSet(ctx context.Context, key string) (bool, error)
	Set(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

// MemoryLatch keeps dismissals for the lifetime of the process, which is
// the page-session scope.
type MemoryLatch struct {
	mu  sync.RWMutex
	set map[string]bool
}

func NewMemoryLatch() *MemoryLatch {
	return &MemoryLatch{set: make(map[string]bool)}
}

func (l *MemoryLatch) IsSet(_ context.Context, key string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.set[key], nil
}

func (l *MemoryLatch) Set(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.set[key] = true
	return nil
}

func (l *MemoryLatch) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.set, key)
	return nil
}
