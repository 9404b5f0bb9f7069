package kv

import (
	"context"
	"sync"
	"time"
)

const defaultMaxEntries = 4096

type localEntry struct {
	value     []byte
	expiresAt time.Time
}

// Local is the bounded in-process fallback tier. It exists for functional
// continuity while the remote backend is unreachable, not for long-term hit
// rate: eviction is plain FIFO on insertion order, and expiry is checked
// lazily on read.
type Local struct {
	mu         sync.Mutex
	maxEntries int
	entries    map[string]localEntry
	order      []string

	now func() time.Time
}

// NewLocal returns a [Local] holding at most maxEntries values. A
// non-positive maxEntries falls back to a default capacity.
func NewLocal(maxEntries int) *Local {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &Local{
		maxEntries: maxEntries,
		entries:    make(map[string]localEntry, maxEntries),
		now:        time.Now,
	}
}

// Get returns the value for key, or [ErrMiss] when absent or expired.
// Expired entries are removed on the spot.
func (l *Local) Get(_ context.Context, key string) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok {
		return nil, ErrMiss
	}
	if !entry.expiresAt.IsZero() && !l.now().Before(entry.expiresAt) {
		l.remove(key)
		return nil, ErrMiss
	}

	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

// Set stores value under key. A non-positive ttl stores the entry without
// expiry. When capacity is exceeded the oldest inserted entries are evicted.
func (l *Local) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = l.now().Add(ttl)
	}

	if _, ok := l.entries[key]; !ok {
		l.order = append(l.order, key)
	}
	l.entries[key] = localEntry{
		value:     append([]byte(nil), value...),
		expiresAt: expiresAt,
	}

	for len(l.entries) > l.maxEntries && len(l.order) > 0 {
		oldest := l.order[0]
		l.order = l.order[1:]
		delete(l.entries, oldest)
	}

	return nil
}

// Delete removes the given keys. Absent keys are ignored.
func (l *Local) Delete(_ context.Context, keys ...string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, key := range keys {
		if _, ok := l.entries[key]; ok {
			l.remove(key)
		}
	}
	return nil
}

// Ping always succeeds: the in-process tier has no remote dependency.
func (l *Local) Ping(context.Context) error {
	return nil
}

// Len reports the number of live entries, counting entries that are expired
// but not yet lazily collected.
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// remove must be called with l.mu held.
func (l *Local) remove(key string) {
	delete(l.entries, key)
	for i, k := range l.order {
		if k == key {
			l.order = append(l.order[:i], l.order[i+1:]...)
			return
		}
	}
}
