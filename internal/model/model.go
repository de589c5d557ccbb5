// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// User represents an account stored on the server. The credential hash never leaves the process.
type User struct {
	ID        uuid.UUID `json:"id"`    // PK
	Name      string    `json:"name"`  // display name
	Email     string    `json:"email"` // unique, lower-cased
	PwdHash   string    `json:"-"`     // bcrypt or argon2id encoded hash
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Public returns a copy of u with the credential hash cleared.
func (u User) Public() User {
	u.PwdHash = ""
	return u
}

// Token is an issued bearer token with its expiry (for diagnostics and clients).
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Claims is the identity embedded in a verified token.
type Claims struct {
	UserID    uuid.UUID
	Name      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
