package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sync"
	"time"

	appErrors "github.com/noah-isme/eligibility-report-api/pkg/errors"
)

type memoryEntry struct {
	payload []byte
	expiry  time.Time
}

// MemoryCacheRepository is a process-local cache with lazy expiry: an entry read after its
// expiry is removed and reported as a miss. Instances do not share state across processes.
type MemoryCacheRepository struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCacheRepository constructs an empty cache. A nil clock uses time.Now.
func NewMemoryCacheRepository(now func() time.Time) *MemoryCacheRepository {
	if now == nil {
		now = time.Now
	}
	return &MemoryCacheRepository{entries: make(map[string]memoryEntry), now: now}
}

// Get decodes the cached value into dest or returns ErrCacheMiss.
func (r *MemoryCacheRepository) Get(_ context.Context, key string, dest interface{}) error {
	r.mu.Lock()
	entry, ok := r.entries[key]
	if ok && !entry.expiry.IsZero() && !r.now().Before(entry.expiry) {
		delete(r.entries, key)
		ok = false
	}
	r.mu.Unlock()

	if !ok {
		return appErrors.ErrCacheMiss
	}
	if err := json.Unmarshal(entry.payload, dest); err != nil {
		return fmt.Errorf("unmarshal cache value for %s: %w", key, err)
	}
	return nil
}

// Set stores value under key, overwriting any previous entry. A non-positive ttl never expires.
func (r *MemoryCacheRepository) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}

	entry := memoryEntry{payload: payload}
	r.mu.Lock()
	defer r.mu.Unlock()
	if ttl > 0 {
		entry.expiry = r.now().Add(ttl)
	}
	r.entries[key] = entry
	return nil
}

// DeleteByPattern removes every key matching the glob pattern.
func (r *MemoryCacheRepository) DeleteByPattern(_ context.Context, pattern string) error {
	if _, err := path.Match(pattern, ""); err != nil {
		return fmt.Errorf("invalid cache pattern %s: %w", pattern, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.entries {
		if matched, _ := path.Match(pattern, key); matched {
			delete(r.entries, key)
		}
	}
	return nil
}

// Len reports the number of stored entries, expired ones included until they are read.
func (r *MemoryCacheRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
