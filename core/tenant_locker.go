package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MemoryTenantLocker serializes work per tenant id inside one process.
// Acquire blocks until the tenant is free or ctx is done.
type MemoryTenantLocker struct {
	mu    sync.Mutex
	locks map[string]*tenantLock
}

type tenantLock struct {
	slot    chan struct{}
	waiters int
}

func NewMemoryTenantLocker() *MemoryTenantLocker {
	return &MemoryTenantLocker{locks: make(map[string]*tenantLock)}
}

func (l *MemoryTenantLocker) Acquire(ctx context.Context, tenantID string) (LockHandle, error) {
	if l == nil {
		return nil, fmt.Errorf("core: tenant locker is not configured")
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, fmt.Errorf("core: tenant id is required for lock acquisition")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	l.mu.Lock()
	entry, ok := l.locks[tenantID]
	if !ok {
		entry = &tenantLock{slot: make(chan struct{}, 1)}
		l.locks[tenantID] = entry
	}
	entry.waiters++
	l.mu.Unlock()

	select {
	case entry.slot <- struct{}{}:
		return &tenantLockHandle{locker: l, tenantID: tenantID, entry: entry}, nil
	case <-ctx.Done():
		l.release(tenantID, entry, false)
		return nil, fmt.Errorf("core: acquire lock for tenant %q: %w", tenantID, ctx.Err())
	}
}

func (l *MemoryTenantLocker) release(tenantID string, entry *tenantLock, held bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if held {
		<-entry.slot
	}
	entry.waiters--
	if entry.waiters == 0 && l.locks[tenantID] == entry {
		delete(l.locks, tenantID)
	}
}

// Held reports how many tenants currently have a holder or waiter.
func (l *MemoryTenantLocker) Held() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

type tenantLockHandle struct {
	locker   *MemoryTenantLocker
	tenantID string
	entry    *tenantLock
	once     sync.Once
}

func (h *tenantLockHandle) Unlock(context.Context) error {
	if h == nil || h.locker == nil {
		return nil
	}
	h.once.Do(func() {
		h.locker.release(h.tenantID, h.entry, true)
	})
	return nil
}

var _ TenantLocker = (*MemoryTenantLocker)(nil)
