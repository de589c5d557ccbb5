// Package limiter throttles failed logins per (email, client address) pair.
package limiter

import (
	"context"
	"crypto/sha256"
	"time"
)

// Defaults applied when configuration leaves limiter settings empty.
const (
	DefaultWindow   = 15 * time.Minute
	DefaultMaxFails = 5
	DefaultBlockFor = 15 * time.Minute
)

// Limiter controls login attempts and temporary lockouts.
type Limiter interface {
	// Allow reports whether login is currently allowed and, if not, the retry-after.
	Allow(ctx context.Context, email string, ipHash []byte) (bool, time.Duration, error)
	// Success resets counters after a successful login.
	Success(ctx context.Context, email string, ipHash []byte) error
	// Failure records a failed attempt; may place a temporary block.
	Failure(ctx context.Context, email string, ipHash []byte) (bool, time.Duration, error)
}

// Settings groups the window, threshold and lockout shared by implementations.
type Settings struct {
	Window   time.Duration
	MaxFails int
	BlockFor time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.Window <= 0 {
		s.Window = DefaultWindow
	}
	if s.MaxFails <= 0 {
		s.MaxFails = DefaultMaxFails
	}
	if s.BlockFor <= 0 {
		s.BlockFor = DefaultBlockFor
	}
	return s
}

// HashIP returns a stable hash for an IP string to avoid storing raw addresses.
func HashIP(ip string) []byte {
	h := sha256.Sum256([]byte(ip))
	return h[:]
}

// Nop never blocks.
type Nop struct{}

// Allow always permits the attempt.
func (Nop) Allow(context.Context, string, []byte) (bool, time.Duration, error) { return true, 0, nil }

// Success is a no-op.
func (Nop) Success(context.Context, string, []byte) error { return nil }

// Failure is a no-op.
func (Nop) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	return false, 0, nil
}
