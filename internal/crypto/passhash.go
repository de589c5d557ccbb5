// Package crypto implements server-side password hashing and verification.
package crypto

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/and161185/userauth/internal/errs"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// Algorithm names a supported password hashing scheme.
type Algorithm string

const (
	Bcrypt   Algorithm = "bcrypt"
	Argon2id Algorithm = "argon2id"
)

// Default argon2id parameters (tuned for server-side hashing).
const (
	DefaultArgonTime    uint32 = 3         // iterations
	DefaultArgonMemory  uint32 = 64 * 1024 // KiB
	DefaultArgonThreads uint8  = 1
)

const (
	argonKeyLen  uint32 = 32
	argonSaltLen        = 16
)

const argonPrefix = "$argon2id$"

type argonParams struct {
	time    uint32
	memory  uint32
	threads uint8
}

// Hasher hashes and verifies passwords. Hash uses the configured algorithm;
// Verify picks the algorithm from the encoded hash, so both kinds verify.
type Hasher struct {
	alg   Algorithm
	cost  int
	argon argonParams
	sem   *semaphore.Weighted
}

// Option configures a Hasher.
type Option func(*Hasher)

// WithAlgorithm selects the scheme used for new hashes.
func WithAlgorithm(a Algorithm) Option {
	return func(h *Hasher) {
		if a != "" {
			h.alg = a
		}
	}
}

// WithBcryptCost sets the bcrypt work factor.
func WithBcryptCost(cost int) Option {
	return func(h *Hasher) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			h.cost = cost
		}
	}
}

// WithArgonParams sets argon2id iterations, memory (KiB) and parallelism.
func WithArgonParams(time, memory uint32, threads uint8) Option {
	return func(h *Hasher) {
		if time > 0 && memory > 0 && threads > 0 {
			h.argon = argonParams{time: time, memory: memory, threads: threads}
		}
	}
}

// WithConcurrency bounds the number of simultaneous hash computations.
func WithConcurrency(n int) Option {
	return func(h *Hasher) {
		if n > 0 {
			h.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// NewHasher constructs a Hasher; defaults are bcrypt at bcrypt.DefaultCost, GOMAXPROCS slots.
func NewHasher(opts ...Option) *Hasher {
	h := &Hasher{
		alg:   Bcrypt,
		cost:  bcrypt.DefaultCost,
		argon: argonParams{time: DefaultArgonTime, memory: DefaultArgonMemory, threads: DefaultArgonThreads},
		sem:   semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0))),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ParseAlgorithm validates an algorithm name from configuration.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch a := Algorithm(strings.ToLower(strings.TrimSpace(s))); a {
	case Bcrypt, Argon2id:
		return a, nil
	default:
		return "", fmt.Errorf("unknown hash algorithm %q", s)
	}
}

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// Hash returns an encoded salted hash of password. Each call draws a fresh salt.
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	switch h.alg {
	case Argon2id:
		return h.hashArgon(password)
	default:
		b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
		if err != nil {
			return "", fmt.Errorf("%w: bcrypt: %w", errs.ErrCrypto, err)
		}
		return string(b), nil
	}
}

// Verify reports whether password matches encoded. A mismatch is (false, nil);
// errors are reserved for malformed hashes and cancellation.
func (h *Hasher) Verify(ctx context.Context, password, encoded string) (bool, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.sem.Release(1)

	switch {
	case strings.HasPrefix(encoded, argonPrefix):
		return verifyArgon(password, encoded)
	case isBcrypt(encoded):
		err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
		if err == nil {
			return true, nil
		}
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, fmt.Errorf("%w: bcrypt: %w", errs.ErrCrypto, err)
	default:
		return false, fmt.Errorf("%w: unknown hash format", errs.ErrCrypto)
	}
}

func isBcrypt(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

func (h *Hasher) hashArgon(password string) (string, error) {
	salt, err := RandBytes(argonSaltLen)
	if err != nil {
		return "", fmt.Errorf("%w: salt: %w", errs.ErrCrypto, err)
	}
	p := h.argon
	key := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, argonKeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.memory, p.time, p.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

func verifyArgon(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, fmt.Errorf("%w: argon2id: invalid format", errs.ErrCrypto)
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false, fmt.Errorf("%w: argon2id: unsupported version", errs.ErrCrypto)
	}
	var p argonParams
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil ||
		p.memory == 0 || p.time == 0 || p.threads == 0 {
		return false, fmt.Errorf("%w: argon2id: invalid params", errs.ErrCrypto)
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("%w: argon2id: salt: %w", errs.ErrCrypto, err)
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(want) == 0 {
		return false, fmt.Errorf("%w: argon2id: invalid hash encoding", errs.ErrCrypto)
	}
	got := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
