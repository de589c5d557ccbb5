// Package token issues and verifies self-contained HS256 bearer tokens.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/and161185/userauth/internal/errs"
	"github.com/and161185/userauth/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLen is the minimum HS256 signing secret length in bytes.
const MinSecretLen = 32

// DefaultIssuer is written to the iss claim unless overridden.
const DefaultIssuer = "userauth"

// ErrSecretTooShort is returned by New for secrets shorter than MinSecretLen.
var ErrSecretTooShort = fmt.Errorf("signing secret must be at least %d bytes", MinSecretLen)

// claims extends RegisteredClaims with the public display name.
type claims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
}

// Manager signs and verifies tokens. It keeps no state between Issue and Verify.
type Manager struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithIssuer sets the iss claim written and required.
func WithIssuer(iss string) Option {
	return func(m *Manager) {
		if iss != "" {
			m.issuer = iss
		}
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// New constructs a Manager for the given secret.
func New(secret []byte, opts ...Option) (*Manager, error) {
	if len(secret) < MinSecretLen {
		return nil, ErrSecretTooShort
	}
	m := &Manager{
		secret: append([]byte(nil), secret...),
		issuer: DefaultIssuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Issue creates a signed token for u valid for ttl.
func (m *Manager) Issue(u model.User, ttl time.Duration) (model.Token, error) {
	if u.ID == uuid.Nil {
		return model.Token{}, errors.New("issue token: empty subject")
	}
	now := m.now()
	exp := now.Add(ttl)
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Name: u.Name,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
	if err != nil {
		return model.Token{}, fmt.Errorf("%w: sign token: %w", errs.ErrCrypto, err)
	}
	return model.Token{AccessToken: signed, ExpiresAt: c.ExpiresAt.Time}, nil
}

// Verify validates raw and returns its embedded claims. Expired tokens
// yield errs.ErrTokenExpired; every other failure yields errs.ErrTokenInvalid.
func (m *Manager) Verify(raw string) (model.Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(m.issuer),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(m.now),
	)

	var c claims
	tok, err := parser.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		// algorithm already restricted by WithValidMethods
		return m.secret, nil
	})
	if err != nil {
		return model.Claims{}, mapJWTError(err)
	}
	if !tok.Valid {
		return model.Claims{}, errs.ErrTokenInvalid
	}

	id, err := uuid.FromString(c.Subject)
	if err != nil || id == uuid.Nil {
		return model.Claims{}, fmt.Errorf("%w: bad subject", errs.ErrTokenInvalid)
	}
	out := model.Claims{UserID: id, Name: c.Name}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out, nil
}

// mapJWTError translates jwt library errors to package sentinels.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return fmt.Errorf("%w: %w", errs.ErrTokenExpired, err)
	}
	return fmt.Errorf("%w: %w", errs.ErrTokenInvalid, err)
}
