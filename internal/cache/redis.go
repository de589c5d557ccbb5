package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/userauth/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "userauth:identity:"

// Redis is an identity cache shared between processes; expiry is native Redis TTL.
type Redis struct {
	rc *redis.Client
}

// NewRedis wraps an existing client.
func NewRedis(rc *redis.Client) *Redis { return &Redis{rc: rc} }

// DialRedis connects to addr and checks the connection.
func DialRedis(ctx context.Context, addr, password string, db int) (*Redis, error) {
	rc := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &Redis{rc: rc}, nil
}

// Close closes the underlying client.
func (r *Redis) Close() error { return r.rc.Close() }

func redisKey(id uuid.UUID) string { return redisKeyPrefix + id.String() }

// Get loads and decodes the snapshot for id.
func (r *Redis) Get(ctx context.Context, id uuid.UUID) (model.User, bool, error) {
	raw, err := r.rc.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.User{}, false, nil
	}
	if err != nil {
		return model.User{}, false, fmt.Errorf("cache get: %w", err)
	}
	var u model.User
	if err := json.Unmarshal(raw, &u); err != nil {
		// undecodable entries are dropped and treated as a miss
		_ = r.rc.Del(ctx, redisKey(id)).Err()
		return model.User{}, false, nil
	}
	return u, true, nil
}

// Put encodes u (credential hash excluded) and stores it for ttl.
func (r *Redis) Put(ctx context.Context, u model.User, ttl time.Duration) error {
	if ttl <= 0 {
		return r.Invalidate(ctx, u.ID)
	}
	raw, err := json.Marshal(u.Public())
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	if err := r.rc.Set(ctx, redisKey(u.ID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Invalidate deletes the key for id.
func (r *Redis) Invalidate(ctx context.Context, id uuid.UUID) error {
	if err := r.rc.Del(ctx, redisKey(id)).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}
