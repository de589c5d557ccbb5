// Package memory contains a process-lifetime implementation of the repository interfaces.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/and161185/userauth/internal/errs"
	"github.com/and161185/userauth/internal/model"
	"github.com/and161185/userauth/internal/repository"
	"github.com/gofrs/uuid/v5"
)

var _ repository.UserRepository = (*UserRepo)(nil)

// UserRepo keeps users in a map with a unique email index.
type UserRepo struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]model.User
	byEmail map[string]uuid.UUID
	now     func() time.Time
}

// NewUserRepo constructs an empty repository.
func NewUserRepo() *UserRepo {
	return &UserRepo{
		byID:    map[uuid.UUID]model.User{},
		byEmail: map[string]uuid.UUID{},
		now:     time.Now,
	}
}

// Create inserts u, rejecting a taken email.
func (r *UserRepo) Create(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[u.Email]; taken {
		return errs.ErrAlreadyExists
	}
	if u.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return errs.Store("create user", err)
		}
		u.ID = id
	}
	if _, dup := r.byID[u.ID]; dup {
		return errs.ErrAlreadyExists
	}
	now := r.now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	r.byID[u.ID] = *u
	r.byEmail[u.Email] = u.ID
	return nil
}

// GetByID returns a copy of the stored user.
func (r *UserRepo) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &u, nil
}

// GetByEmail returns a copy of the user owning email.
func (r *UserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, errs.ErrNotFound
	}
	u := r.byID[id]
	return &u, nil
}

// Update overwrites mutable fields, moving the email index when it changes.
func (r *UserRepo) Update(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byID[u.ID]
	if !ok {
		return errs.ErrNotFound
	}
	if owner, taken := r.byEmail[u.Email]; taken && owner != u.ID {
		return errs.ErrAlreadyExists
	}
	delete(r.byEmail, cur.Email)
	cur.Name, cur.Email, cur.PwdHash = u.Name, u.Email, u.PwdHash
	cur.UpdatedAt = r.now().UTC()
	r.byID[u.ID] = cur
	r.byEmail[cur.Email] = cur.ID
	*u = cur
	return nil
}

// Delete removes the user and its email index entry.
func (r *UserRepo) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return false, nil
	}
	delete(r.byID, id)
	delete(r.byEmail, u.Email)
	return true, nil
}

// List pages through users ordered by creation time, then id.
func (r *UserRepo) List(_ context.Context, limit, offset int) ([]model.User, int, error) {
	r.mu.RLock()
	all := make([]model.User, 0, len(r.byID))
	for _, u := range r.byID {
		all = append(all, u)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID.String() < all[j].ID.String()
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	total := len(all)
	if offset < 0 || offset >= total || limit <= 0 {
		return []model.User{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}
