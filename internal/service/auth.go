// Package service contains application services for authentication and user management.
package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/userauth/internal/cache"
	"github.com/and161185/userauth/internal/errs"
	"github.com/and161185/userauth/internal/limiter"
	"github.com/and161185/userauth/internal/model"
	"github.com/and161185/userauth/internal/repository"
	"github.com/and161185/userauth/internal/validate"
)

// PasswordHasher hashes and checks credentials; implemented by *crypto.Hasher.
type PasswordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
	Verify(ctx context.Context, password, encoded string) (bool, error)
}

// TokenIssuer signs access tokens; implemented by *token.Manager.
type TokenIssuer interface {
	Issue(u model.User, ttl time.Duration) (model.Token, error)
}

// AuthService defines registration, login and credential rotation.
type AuthService interface {
	// Register creates a new user with a hashed password.
	Register(ctx context.Context, in RegisterInput) (model.User, error)
	// Login applies rate limiting, checks credentials and issues a token.
	Login(ctx context.Context, in LoginInput, ip string) (model.Token, model.User, error)
	// ChangePassword re-verifies the current password of subject and replaces it.
	ChangePassword(ctx context.Context, subject uuid.UUID, in ChangePasswordInput) error
}

// RegisterInput is the body of a registration request.
type RegisterInput struct {
	Name     string `json:"name" validate:"min=2,max=64"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"min=6,maxbytes=72"`
}

// LoginInput is the body of a login request.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ChangePasswordInput is the body of a change-password request.
type ChangePasswordInput struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required"`
	NewPassword string `json:"newPassword" validate:"min=6,maxbytes=72,nefield=Password"`
}

// AuthServiceImpl runs registration, login and password changes over a UserRepository.
type AuthServiceImpl struct {
	users     repository.UserRepository
	hasher    PasswordHasher
	tokens    TokenIssuer
	accessTTL time.Duration
	lim       limiter.Limiter
	cache     cache.IdentityCache
	log       *zap.Logger

	dummyMu   sync.Mutex
	dummyHash string
}

var _ AuthService = (*AuthServiceImpl)(nil)

// NewAuthService constructs AuthService with required dependencies.
// A nil limiter disables throttling; a nil logger discards output.
func NewAuthService(
	users repository.UserRepository,
	hasher PasswordHasher,
	tokens TokenIssuer,
	accessTTL time.Duration,
	lim limiter.Limiter,
	ic cache.IdentityCache,
	log *zap.Logger,
) *AuthServiceImpl {
	if lim == nil {
		lim = limiter.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthServiceImpl{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		accessTTL: accessTTL,
		lim:       lim,
		cache:     ic,
		log:       log,
	}
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Register validates input, checks email uniqueness and stores the hashed credential.
func (s *AuthServiceImpl) Register(ctx context.Context, in RegisterInput) (model.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if err := validate.Struct(&in); err != nil {
		return model.User{}, err
	}

	switch _, err := s.users.GetByEmail(ctx, in.Email); {
	case err == nil:
		return model.User{}, errs.ErrAlreadyExists
	case !errors.Is(err, errs.ErrNotFound):
		return model.User{}, err
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return model.User{}, err
	}
	u := &model.User{Name: in.Name, Email: in.Email, PwdHash: hash}
	// a concurrent registration may still win the race; the store reports it as ErrAlreadyExists
	if err := s.users.Create(ctx, u); err != nil {
		return model.User{}, err
	}
	return u.Public(), nil
}

// Login authenticates with rate limiting by (email, ip).
// Unknown email and wrong password are indistinguishable to the caller.
func (s *AuthServiceImpl) Login(ctx context.Context, in LoginInput, ip string) (model.Token, model.User, error) {
	email := normalizeEmail(in.Email)
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, email, ipHash)
	if err != nil {
		s.log.Warn("limiter allow failed", zap.Error(err))
		allowed = true
	}
	if !allowed {
		return model.Token{}, model.User{}, errs.ErrRateLimited
	}

	u, err := s.users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		// burn a verify so response timing does not reveal unknown emails
		if _, verr := s.hasher.Verify(ctx, in.Password, s.dummy()); verr != nil && ctx.Err() != nil {
			return model.Token{}, model.User{}, ctx.Err()
		}
		return model.Token{}, model.User{}, s.failed(ctx, email, ipHash)
	case err != nil:
		return model.Token{}, model.User{}, err
	}

	ok, err := s.hasher.Verify(ctx, in.Password, u.PwdHash)
	if err != nil {
		return model.Token{}, model.User{}, err
	}
	if !ok {
		return model.Token{}, model.User{}, s.failed(ctx, email, ipHash)
	}

	if err := s.lim.Success(ctx, email, ipHash); err != nil {
		s.log.Warn("limiter reset failed", zap.Error(err))
	}

	tok, err := s.tokens.Issue(*u, s.accessTTL)
	if err != nil {
		return model.Token{}, model.User{}, err
	}
	return tok, u.Public(), nil
}

// failed records a failed attempt and picks the error to report.
func (s *AuthServiceImpl) failed(ctx context.Context, email string, ipHash []byte) error {
	blocked, _, err := s.lim.Failure(ctx, email, ipHash)
	if err != nil {
		s.log.Warn("limiter failure record failed", zap.Error(err))
		return errs.ErrUnauthorized
	}
	if blocked {
		return errs.ErrRateLimited
	}
	return errs.ErrUnauthorized
}

func (s *AuthServiceImpl) dummy() string {
	s.dummyMu.Lock()
	defer s.dummyMu.Unlock()
	if s.dummyHash != "" {
		return s.dummyHash
	}
	// detached from the request so a cancelled caller cannot leave it empty
	h, err := s.hasher.Hash(context.Background(), "userauth-unknown-account")
	if err != nil {
		s.log.Warn("dummy hash failed", zap.Error(err))
		return ""
	}
	s.dummyHash = h
	return h
}

// ChangePassword verifies the current credential before storing the new one,
// then drops any cached snapshot of the user.
func (s *AuthServiceImpl) ChangePassword(ctx context.Context, subject uuid.UUID, in ChangePasswordInput) error {
	in.Email = normalizeEmail(in.Email)
	if err := validate.Struct(&in); err != nil {
		return err
	}

	u, err := s.users.GetByEmail(ctx, in.Email)
	if errors.Is(err, errs.ErrNotFound) {
		return errs.ErrUnauthorized
	}
	if err != nil {
		return err
	}
	if u.ID != subject {
		return errs.ErrUnauthorized
	}

	ok, err := s.hasher.Verify(ctx, in.Password, u.PwdHash)
	if err != nil {
		return err
	}
	if !ok {
		return errs.ErrUnauthorized
	}

	hash, err := s.hasher.Hash(ctx, in.NewPassword)
	if err != nil {
		return err
	}
	u.PwdHash = hash
	if err := s.users.Update(ctx, u); err != nil {
		return err
	}
	invalidate(ctx, s.cache, s.log, u.ID)
	return nil
}

func invalidate(ctx context.Context, ic cache.IdentityCache, log *zap.Logger, id uuid.UUID) {
	if ic == nil {
		return
	}
	if err := ic.Invalidate(ctx, id); err != nil {
		log.Error("identity cache invalidate failed", zap.Stringer("user_id", id), zap.Error(err))
	}
}
