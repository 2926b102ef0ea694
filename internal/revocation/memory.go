package revocation

import (
	"context"
	"sync"
	"time"
)

type MemoryRegistry struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// WithClock replaces the time source used by IsRevoked.
func (r *MemoryRegistry) WithClock(now func() time.Time) *MemoryRegistry {
	r.now = now
	return r
}

func (r *MemoryRegistry) Revoke(_ context.Context, tokenID string, expiresAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[tokenID]; ok {
		return false, nil
	}
	r.entries[tokenID] = expiresAt
	return true, nil
}

func (r *MemoryRegistry) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	r.mu.RLock()
	expiresAt, ok := r.entries[tokenID]
	r.mu.RUnlock()

	return ok && r.now().Before(expiresAt), nil
}

func (r *MemoryRegistry) Remove(_ context.Context, tokenID string) error {
	r.mu.Lock()
	delete(r.entries, tokenID)
	r.mu.Unlock()
	return nil
}

func (r *MemoryRegistry) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var purged int64
	for id, expiresAt := range r.entries {
		if !now.Before(expiresAt) {
			delete(r.entries, id)
			purged++
		}
	}
	return purged, nil
}

func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
