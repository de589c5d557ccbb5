// Package cache provides transient identity caches placed in front of the user store.
package cache

import (
	"context"
	"time"

	"github.com/and161185/userauth/internal/model"
	"github.com/gofrs/uuid/v5"
)

// DefaultTTL is the lifetime of entries filled by lookup-by-id reads.
const DefaultTTL = 60 * time.Second

// IdentityCache maps a user id to its last-known snapshot.
// Implementations must be safe for concurrent use; each call is atomic.
type IdentityCache interface {
	// Get returns the cached snapshot; ok is false when absent or expired.
	Get(ctx context.Context, id uuid.UUID) (u model.User, ok bool, err error)
	// Put stores u under u.ID for ttl, replacing any previous entry.
	Put(ctx context.Context, u model.User, ttl time.Duration) error
	// Invalidate drops the entry for id if present.
	Invalidate(ctx context.Context, id uuid.UUID) error
}
