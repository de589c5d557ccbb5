package cache

import (
	"context"
	"sync"
	"time"

	"github.com/and161185/userauth/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// DefaultSize bounds the number of in-process entries.
const DefaultSize = 10000

type entry struct {
	user      model.User
	expiresAt time.Time
}

// Memory is an in-process LRU identity cache with per-entry expiry.
type Memory struct {
	mu  sync.Mutex
	lru *simplelru.LRU[uuid.UUID, entry]
	now func() time.Time
}

// MemoryOption configures a Memory cache.
type MemoryOption func(*Memory)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemory constructs a Memory cache holding at most size entries.
func NewMemory(size int, opts ...MemoryOption) (*Memory, error) {
	if size <= 0 {
		size = DefaultSize
	}
	l, err := simplelru.NewLRU[uuid.UUID, entry](size, nil)
	if err != nil {
		return nil, err
	}
	m := &Memory{lru: l, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Get returns a live entry; an expired entry is removed and reported absent.
func (m *Memory) Get(_ context.Context, id uuid.UUID) (model.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lru.Get(id)
	if !ok {
		return model.User{}, false, nil
	}
	if !m.now().Before(e.expiresAt) {
		m.lru.Remove(id)
		return model.User{}, false, nil
	}
	return e.user, true, nil
}

// Put stores a snapshot of u without its credential hash. Non-positive ttl stores nothing.
func (m *Memory) Put(_ context.Context, u model.User, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ttl <= 0 {
		m.lru.Remove(u.ID)
		return nil
	}
	m.lru.Add(u.ID, entry{user: u.Public(), expiresAt: m.now().Add(ttl)})
	return nil
}

// Invalidate removes the entry for id.
func (m *Memory) Invalidate(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lru.Remove(id)
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Len()
}
