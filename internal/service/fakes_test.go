package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/and161185/userauth/internal/cache"
	pkgcrypto "github.com/and161185/userauth/internal/crypto"
	"github.com/and161185/userauth/internal/limiter"
	"github.com/and161185/userauth/internal/model"
	"github.com/and161185/userauth/internal/repository"
	"github.com/and161185/userauth/internal/repository/memory"
	"github.com/and161185/userauth/internal/token"
)

// fakeUsers wraps the memory repository with error injection and call counts.
type fakeUsers struct {
	*memory.UserRepo

	mu        sync.Mutex
	getErr    error
	createErr error
	updateErr error
	getByID   int
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func newFakeUsers() *fakeUsers { return &fakeUsers{UserRepo: memory.NewUserRepo()} }

func (f *fakeUsers) Create(ctx context.Context, u *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	return f.UserRepo.Create(ctx, u)
}

func (f *fakeUsers) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	f.mu.Lock()
	f.getByID++
	f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.UserRepo.GetByID(ctx, id)
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.UserRepo.GetByEmail(ctx, email)
}

func (f *fakeUsers) Update(ctx context.Context, u *model.User) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	return f.UserRepo.Update(ctx, u)
}

func (f *fakeUsers) byIDCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getByID
}

type fakeLimiter struct {
	allowOK  bool
	allowErr error

	failBlocked bool
	failErr     error

	successErr error

	allowCalls   int
	failureCalls int
	successCalls int
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(context.Context, string, []byte) (bool, time.Duration, error) {
	l.allowCalls++
	return l.allowOK, 0, l.allowErr
}
func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.successCalls++
	return l.successErr
}
func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, 0, l.failErr
}

// fakeCache delegates to the memory cache and can be made to fail.
type fakeCache struct {
	*cache.Memory

	getErr      error
	putErr      error
	invalidated []uuid.UUID
}

var _ cache.IdentityCache = (*fakeCache)(nil)

func newFakeCache(t *testing.T) *fakeCache {
	t.Helper()
	m, err := cache.NewMemory(64)
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	return &fakeCache{Memory: m}
}

func (c *fakeCache) Get(ctx context.Context, id uuid.UUID) (model.User, bool, error) {
	if c.getErr != nil {
		return model.User{}, false, c.getErr
	}
	return c.Memory.Get(ctx, id)
}

func (c *fakeCache) Put(ctx context.Context, u model.User, ttl time.Duration) error {
	if c.putErr != nil {
		return c.putErr
	}
	return c.Memory.Put(ctx, u, ttl)
}

func (c *fakeCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	c.invalidated = append(c.invalidated, id)
	return c.Memory.Invalidate(ctx, id)
}

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newHasher() *pkgcrypto.Hasher {
	return pkgcrypto.NewHasher(pkgcrypto.WithBcryptCost(bcrypt.MinCost))
}

func newTokens(t *testing.T) *token.Manager {
	t.Helper()
	m, err := token.New(testSecret)
	if err != nil {
		t.Fatalf("token.New: %v", err)
	}
	return m
}
