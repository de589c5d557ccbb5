package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/userauth/internal/cache"
	"github.com/and161185/userauth/internal/errs"
	"github.com/and161185/userauth/internal/metrics"
	"github.com/and161185/userauth/internal/model"
	"github.com/and161185/userauth/internal/repository"
	"github.com/and161185/userauth/internal/validate"
)

// Paging bounds for List.
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// UserService defines lookups and profile maintenance.
type UserService interface {
	// Get returns the user by id, preferring a fresh cached snapshot.
	Get(ctx context.Context, id uuid.UUID) (model.User, error)
	// List returns one page of users.
	List(ctx context.Context, page, limit int) (UserPage, error)
	// Update changes name and email.
	Update(ctx context.Context, id uuid.UUID, in UpdateInput) (model.User, error)
	// Delete removes the user.
	Delete(ctx context.Context, id uuid.UUID) error
}

// UpdateInput is the body of a profile update.
type UpdateInput struct {
	Name  string `json:"name" validate:"min=2,max=64"`
	Email string `json:"email" validate:"required,email,max=254"`
}

// UserPage is a slice of users with paging metadata.
type UserPage struct {
	Users []model.User `json:"users"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
	Total int          `json:"total"`
}

// UserServiceImpl reads through the identity cache and invalidates it on writes.
type UserServiceImpl struct {
	users repository.UserRepository
	cache cache.IdentityCache
	ttl   time.Duration
	m     *metrics.Metrics
	log   *zap.Logger
}

var _ UserService = (*UserServiceImpl)(nil)

// NewUserService constructs UserService. A nil cache sends every read to the store.
func NewUserService(users repository.UserRepository, ic cache.IdentityCache, ttl time.Duration, m *metrics.Metrics, log *zap.Logger) *UserServiceImpl {
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &UserServiceImpl{users: users, cache: ic, ttl: ttl, m: m, log: log}
}

// Get reads through the identity cache. Cache faults are logged and bypassed.
func (s *UserServiceImpl) Get(ctx context.Context, id uuid.UUID) (model.User, error) {
	if s.cache != nil {
		u, ok, err := s.cache.Get(ctx, id)
		switch {
		case err != nil:
			s.m.CacheLookup(metrics.CacheError)
			s.log.Warn("identity cache get failed", zap.Stringer("user_id", id), zap.Error(err))
		case ok:
			s.m.CacheLookup(metrics.CacheHit)
			return u, nil
		default:
			s.m.CacheLookup(metrics.CacheMiss)
		}
	}

	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	pub := u.Public()
	if s.cache != nil {
		if err := s.cache.Put(ctx, pub, s.ttl); err != nil {
			s.log.Warn("identity cache put failed", zap.Stringer("user_id", id), zap.Error(err))
		}
	}
	return pub, nil
}

// List pages through users. A zero page or limit selects the default.
func (s *UserServiceImpl) List(ctx context.Context, page, limit int) (UserPage, error) {
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = DefaultPageLimit
	}
	if page < 1 {
		return UserPage{}, errs.NewValidation("page", "must be at least 1")
	}
	if limit < 1 || limit > MaxPageLimit {
		return UserPage{}, errs.NewValidation("limit", "must be between 1 and 100")
	}
	if page > math.MaxInt/limit {
		return UserPage{}, errs.NewValidation("page", "out of range")
	}

	users, total, err := s.users.List(ctx, limit, (page-1)*limit)
	if err != nil {
		return UserPage{}, err
	}
	out := make([]model.User, len(users))
	for i, u := range users {
		out[i] = u.Public()
	}
	return UserPage{Users: out, Page: page, Limit: limit, Total: total}, nil
}

// Update validates and stores new profile fields, then invalidates the cached snapshot.
func (s *UserServiceImpl) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (model.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if err := validate.Struct(&in); err != nil {
		return model.User{}, err
	}

	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	if in.Email != u.Email {
		switch other, err := s.users.GetByEmail(ctx, in.Email); {
		case err == nil && other.ID != id:
			return model.User{}, errs.ErrAlreadyExists
		case err != nil && !errors.Is(err, errs.ErrNotFound):
			return model.User{}, err
		}
	}

	u.Name, u.Email = in.Name, in.Email
	if err := s.users.Update(ctx, u); err != nil {
		return model.User{}, err
	}
	invalidate(ctx, s.cache, s.log, id)
	return u.Public(), nil
}

// Delete removes the user and its cached snapshot.
func (s *UserServiceImpl) Delete(ctx context.Context, id uuid.UUID) error {
	ok, err := s.users.Delete(ctx, id)
	if err != nil {
		return err
	}
	invalidate(ctx, s.cache, s.log, id)
	if !ok {
		return errs.ErrNotFound
	}
	return nil
}
