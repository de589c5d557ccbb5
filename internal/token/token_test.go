package token

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/and161185/userauth/internal/errs"
	"github.com/and161185/userauth/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newUser() model.User {
	return model.User{ID: uuid.Must(uuid.NewV4()), Name: "Alice", Email: "a@x.com"}
}

func newManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	m, err := New(testSecret, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestNew_SecretTooShort(t *testing.T) {
	t.Parallel()

	if _, err := New([]byte("short")); !errors.Is(err, ErrSecretTooShort) {
		t.Fatalf("want ErrSecretTooShort, got %v", err)
	}
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	t.Parallel()

	m := newManager(t)
	u := newUser()
	tok, err := m.Issue(u, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if tok.AccessToken == "" {
		t.Fatalf("empty token")
	}
	if time.Until(tok.ExpiresAt) <= 0 {
		t.Fatalf("token already expired: %v", tok.ExpiresAt)
	}

	c, err := m.Verify(tok.AccessToken)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if c.UserID != u.ID || c.Name != u.Name {
		t.Fatalf("claims mismatch: %+v", c)
	}
	if !c.ExpiresAt.After(c.IssuedAt) {
		t.Fatalf("exp must follow iat: %+v", c)
	}
}

func TestIssue_EmptySubject(t *testing.T) {
	t.Parallel()

	if _, err := newManager(t).Issue(model.User{}, time.Minute); err == nil {
		t.Fatalf("want error on nil subject")
	}
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	base := time.Now()
	now := base
	m := newManager(t, WithClock(func() time.Time { return now }))
	tok, err := m.Issue(newUser(), time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	now = base.Add(2 * time.Minute)
	if _, err := m.Verify(tok.AccessToken); !errors.Is(err, errs.ErrTokenExpired) {
		t.Fatalf("want ErrTokenExpired, got %v", err)
	}
}

func TestVerify_NegativeTTLIsExpired(t *testing.T) {
	t.Parallel()

	m := newManager(t)
	tok, err := m.Issue(newUser(), -time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := m.Verify(tok.AccessToken); !errors.Is(err, errs.ErrTokenExpired) {
		t.Fatalf("want ErrTokenExpired, got %v", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := newManager(t).Issue(newUser(), time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	other, err := New([]byte("ffffffffffffffffffffffffffffffff"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := other.Verify(tok.AccessToken); !errors.Is(err, errs.ErrTokenInvalid) {
		t.Fatalf("want ErrTokenInvalid, got %v", err)
	}
}

func TestVerify_AnyMutatedByteIsInvalid(t *testing.T) {
	t.Parallel()

	m := newManager(t)
	tok, err := m.Issue(newUser(), time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	raw := tok.AccessToken
	for i := 0; i < len(raw); i++ {
		repl := byte('A')
		if raw[i] == 'A' {
			repl = 'B'
		}
		mutated := raw[:i] + string(repl) + raw[i+1:]
		if _, err := m.Verify(mutated); !errors.Is(err, errs.ErrTokenInvalid) {
			t.Fatalf("byte %d mutated: want ErrTokenInvalid, got %v", i, err)
		}
	}
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()

	m := newManager(t)
	for _, raw := range []string{"", "not-a-jwt", "a.b.c", strings.Repeat(".", 3)} {
		if _, err := m.Verify(raw); !errors.Is(err, errs.ErrTokenInvalid) {
			t.Fatalf("Verify(%q): want ErrTokenInvalid, got %v", raw, err)
		}
	}
}

func TestVerify_WrongAlgorithm(t *testing.T) {
	t.Parallel()

	now := time.Now()
	c := jwt.RegisteredClaims{
		Subject:   uuid.Must(uuid.NewV4()).String(),
		Issuer:    DefaultIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS384, c).SignedString(testSecret)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	if _, err := newManager(t).Verify(s); !errors.Is(err, errs.ErrTokenInvalid) {
		t.Fatalf("want ErrTokenInvalid on HS384, got %v", err)
	}
}

func TestVerify_MissingExpiry(t *testing.T) {
	t.Parallel()

	c := jwt.RegisteredClaims{Subject: uuid.Must(uuid.NewV4()).String(), Issuer: DefaultIssuer}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(testSecret)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	if _, err := newManager(t).Verify(s); !errors.Is(err, errs.ErrTokenInvalid) {
		t.Fatalf("want ErrTokenInvalid without exp, got %v", err)
	}
}

func TestVerify_BadSubject(t *testing.T) {
	t.Parallel()

	now := time.Now()
	c := jwt.RegisteredClaims{
		Subject:   "not-a-uuid",
		Issuer:    DefaultIssuer,
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(testSecret)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	if _, err := newManager(t).Verify(s); !errors.Is(err, errs.ErrTokenInvalid) {
		t.Fatalf("want ErrTokenInvalid on bad subject, got %v", err)
	}
}

func TestVerify_WrongIssuer(t *testing.T) {
	t.Parallel()

	tok, err := newManager(t, WithIssuer("someone-else")).Issue(newUser(), time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := newManager(t).Verify(tok.AccessToken); !errors.Is(err, errs.ErrTokenInvalid) {
		t.Fatalf("want ErrTokenInvalid on foreign issuer, got %v", err)
	}
}

func TestVerify_AnyInstanceWithSecret(t *testing.T) {
	t.Parallel()

	u := newUser()
	tok, err := newManager(t).Issue(u, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	c, err := newManager(t).Verify(tok.AccessToken)
	if err != nil || c.UserID != u.ID {
		t.Fatalf("second manager with same secret: claims=%+v err=%v", c, err)
	}
}

func TestIssue_ConcurrentDistinctUsers(t *testing.T) {
	t.Parallel()

	m := newManager(t)
	const n = 32
	users := make([]model.User, n)
	tokens := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		users[i] = newUser()
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := m.Issue(users[i], time.Hour)
			if err != nil {
				t.Errorf("Issue: %v", err)
				return
			}
			tokens[i] = tok.AccessToken
		}(i)
	}
	wg.Wait()

	seen := map[string]struct{}{}
	for i, raw := range tokens {
		if _, dup := seen[raw]; dup {
			t.Fatalf("duplicate token at %d", i)
		}
		seen[raw] = struct{}{}
		c, err := m.Verify(raw)
		if err != nil || c.UserID != users[i].ID {
			t.Fatalf("token %d: claims=%+v err=%v", i, c, err)
		}
	}
}
