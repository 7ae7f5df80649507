package kvstore

import (
	"context"
	"path"
	"sync"
	"time"
)

// DefaultSweepInterval is how often the janitor evicts expired entries.
// Expired entries are also dropped lazily on read, so the sweep only bounds
// memory growth for keys nobody reads again.
const DefaultSweepInterval = time.Minute

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// Memory is the in-process Store. It is safe for concurrent use and runs a
// background sweep evicting expired entries.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewMemory creates a Memory store with the default sweep interval.
func NewMemory() *Memory {
	return NewMemoryWithSweep(DefaultSweepInterval)
}

// NewMemoryWithSweep creates a Memory store sweeping at the given interval.
// An interval <= 0 disables the janitor (useful in tests).
func NewMemoryWithSweep(interval time.Duration) *Memory {
	m := &Memory{
		entries: make(map[string]memoryEntry),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	if interval > 0 {
		go m.janitor(interval)
	} else {
		close(m.doneCh)
	}
	return m
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return "", ErrNotFound
	}
	if e.expired(time.Now()) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return "", ErrNotFound
	}
	return e.value, nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}

	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Keys(_ context.Context, pattern string) ([]string, error) {
	now := time.Now()

	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for k, e := range m.entries {
		if e.expired(now) {
			continue
		}
		if ok, err := path.Match(pattern, k); err == nil && ok {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *Memory) TTL(_ context.Context, key string) (time.Duration, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || e.expired(time.Now()) {
		return 0, ErrNotFound
	}
	if e.expiresAt.IsZero() {
		return NoExpiry, nil
	}
	return time.Until(e.expiresAt), nil
}

func (m *Memory) Ping(context.Context) error { return nil }

// Close stops the janitor. The store remains usable afterwards.
func (m *Memory) Close() error {
	select {
	case <-m.doneCh:
		// already stopped
	default:
		close(m.stopCh)
		<-m.doneCh
	}
	return nil
}

func (m *Memory) janitor(interval time.Duration) {
	defer close(m.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweep(time.Now())
		case <-m.stopCh:
			return
		}
	}
}

func (m *Memory) sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, k)
		}
	}
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}
