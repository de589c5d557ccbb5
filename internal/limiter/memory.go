package limiter

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

var _ Limiter = (*Memory)(nil)

// DefaultMemorySize bounds the number of tracked (email, address) pairs.
const DefaultMemorySize = 100_000

type attempts struct {
	fails        int
	windowStart  time.Time
	blockedUntil time.Time
}

// Memory keeps failure counters in an expiring LRU; entries idle longer than
// window+block are dropped automatically.
type Memory struct {
	mu  sync.Mutex
	lru *expirable.LRU[string, attempts]
	set Settings
	now func() time.Time
}

// NewMemory constructs an in-process limiter holding up to size pairs.
func NewMemory(size int, s Settings) *Memory {
	if size <= 0 {
		size = DefaultMemorySize
	}
	s = s.withDefaults()
	return &Memory{
		lru: expirable.NewLRU[string, attempts](size, nil, s.Window+s.BlockFor),
		set: s,
		now: time.Now,
	}
}

func memKey(email string, ipHash []byte) string {
	return email + "|" + hex.EncodeToString(ipHash)
}

// Allow reports whether the pair is outside a lockout.
func (m *Memory) Allow(_ context.Context, email string, ipHash []byte) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.lru.Peek(memKey(email, ipHash))
	if !ok {
		return true, 0, nil
	}
	if now := m.now(); a.blockedUntil.After(now) {
		return false, a.blockedUntil.Sub(now), nil
	}
	return true, 0, nil
}

// Success forgets the pair.
func (m *Memory) Success(_ context.Context, email string, ipHash []byte) error {
	m.mu.Lock()
	m.lru.Remove(memKey(email, ipHash))
	m.mu.Unlock()
	return nil
}

// Failure counts an attempt, restarting the window when it has elapsed.
func (m *Memory) Failure(_ context.Context, email string, ipHash []byte) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := memKey(email, ipHash)
	now := m.now()
	a, ok := m.lru.Get(k)
	if !ok || now.Sub(a.windowStart) > m.set.Window {
		a = attempts{windowStart: now}
	}
	a.fails++
	blocked := a.fails >= m.set.MaxFails
	if blocked {
		a.blockedUntil = now.Add(m.set.BlockFor)
		a.fails = 0
		a.windowStart = now
	}
	m.lru.Add(k, a)
	if blocked {
		return true, m.set.BlockFor, nil
	}
	return false, 0, nil
}
