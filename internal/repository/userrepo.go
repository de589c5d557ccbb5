// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/userauth/internal/model"
	"github.com/gofrs/uuid/v5"
)

// UserRepository provides CRUD access for users.
//
// Lookups report absence with errs.ErrNotFound, duplicate emails with
// errs.ErrAlreadyExists; backend failures wrap errs.ErrStore.
type UserRepository interface {
	// Create inserts a new user; ID, CreatedAt and UpdatedAt are filled in when zero.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByEmail loads a user by (lower-cased) email.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// Update replaces name, email and password hash of an existing user.
	Update(ctx context.Context, u *model.User) error
	// Delete removes a user, reporting whether a row existed.
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	// List returns a page ordered by creation time plus the total count.
	List(ctx context.Context, limit, offset int) ([]model.User, int, error)
}
