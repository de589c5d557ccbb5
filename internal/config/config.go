// Package config loads server settings from flags, environment and file via viper.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/and161185/userauth/internal/cache"
	"github.com/and161185/userauth/internal/crypto"
	"github.com/and161185/userauth/internal/limiter"
	"github.com/and161185/userauth/internal/token"
)

// EnvPrefix is prepended to environment variable names (auth.secret -> USERAUTH_AUTH_SECRET).
const EnvPrefix = "USERAUTH"

// Store drivers and cache backends.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"

	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config is the fully resolved server configuration.
type Config struct {
	HTTP    HTTP
	Store   Store
	Auth    Auth
	Cache   Cache
	Limiter Limiter
	Log     Log
}

// HTTP listener settings.
type HTTP struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Store selects the user store.
type Store struct {
	Driver  string
	DSN     string
	Migrate bool
	// MaxConns caps the postgres pool; 0 keeps the pgx default.
	MaxConns int32
}

// Auth holds token and hashing parameters.
type Auth struct {
	Secret          string
	AccessTTL       time.Duration
	HashAlgo        string
	BcryptCost      int
	HashConcurrency int
	ArgonTime       uint32
	ArgonMemory     uint32 // KiB
	ArgonThreads    uint8
}

// Cache selects the identity cache.
type Cache struct {
	Backend       string
	TTL           time.Duration
	Size          int
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Limiter holds login throttling parameters.
type Limiter struct {
	Window   time.Duration
	MaxFails int
	BlockFor time.Duration
}

// Log controls logger construction.
type Log struct {
	Dev bool
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 10*time.Second)
	v.SetDefault("http.shutdown_timeout", 15*time.Second)

	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("store.migrate", true)
	v.SetDefault("store.max_conns", 0)

	v.SetDefault("auth.access_ttl", time.Hour)
	v.SetDefault("auth.hash_algo", "bcrypt")
	v.SetDefault("auth.bcrypt_cost", bcrypt.DefaultCost)
	v.SetDefault("auth.hash_concurrency", runtime.GOMAXPROCS(0))
	v.SetDefault("auth.argon_time", crypto.DefaultArgonTime)
	v.SetDefault("auth.argon_memory", crypto.DefaultArgonMemory)
	v.SetDefault("auth.argon_threads", crypto.DefaultArgonThreads)

	v.SetDefault("cache.backend", BackendMemory)
	v.SetDefault("cache.ttl", cache.DefaultTTL)
	v.SetDefault("cache.size", cache.DefaultSize)
	v.SetDefault("cache.redis_db", 0)

	v.SetDefault("limiter.window", limiter.DefaultWindow)
	v.SetDefault("limiter.max_fails", limiter.DefaultMaxFails)
	v.SetDefault("limiter.block_for", limiter.DefaultBlockFor)

	v.SetDefault("log.dev", false)
}

// BindEnv makes every key overridable from USERAUTH_* variables.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads a Config from v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	c := &Config{
		HTTP: HTTP{
			Addr:            v.GetString("http.addr"),
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
		},
		Store: Store{
			Driver:   strings.ToLower(v.GetString("store.driver")),
			DSN:      v.GetString("store.dsn"),
			Migrate:  v.GetBool("store.migrate"),
			MaxConns: v.GetInt32("store.max_conns"),
		},
		Auth: Auth{
			Secret:          v.GetString("auth.secret"),
			AccessTTL:       v.GetDuration("auth.access_ttl"),
			HashAlgo:        strings.ToLower(v.GetString("auth.hash_algo")),
			BcryptCost:      v.GetInt("auth.bcrypt_cost"),
			HashConcurrency: v.GetInt("auth.hash_concurrency"),
			ArgonTime:       v.GetUint32("auth.argon_time"),
			ArgonMemory:     v.GetUint32("auth.argon_memory"),
			ArgonThreads:    uint8(v.GetUint("auth.argon_threads")),
		},
		Cache: Cache{
			Backend:       strings.ToLower(v.GetString("cache.backend")),
			TTL:           v.GetDuration("cache.ttl"),
			Size:          v.GetInt("cache.size"),
			RedisAddr:     v.GetString("cache.redis_addr"),
			RedisPassword: v.GetString("cache.redis_password"),
			RedisDB:       v.GetInt("cache.redis_db"),
		},
		Limiter: Limiter{
			Window:   v.GetDuration("limiter.window"),
			MaxFails: v.GetInt("limiter.max_fails"),
			BlockFor: v.GetDuration("limiter.block_for"),
		},
		Log: Log{Dev: v.GetBool("log.dev")},
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var problems []error
	add := func(format string, args ...any) { problems = append(problems, fmt.Errorf(format, args...)) }

	if len(c.Auth.Secret) < token.MinSecretLen {
		add("auth.secret must be at least %d bytes", token.MinSecretLen)
	}
	if c.Auth.AccessTTL <= 0 {
		add("auth.access_ttl must be positive")
	}
	switch c.Auth.HashAlgo {
	case "bcrypt", "argon2id":
	default:
		add("auth.hash_algo %q is not one of bcrypt, argon2id", c.Auth.HashAlgo)
	}
	if c.Auth.HashAlgo == "bcrypt" && (c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost) {
		add("auth.bcrypt_cost must be within %d..%d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.Auth.HashAlgo == "argon2id" && (c.Auth.ArgonTime == 0 || c.Auth.ArgonMemory < 8*uint32(c.Auth.ArgonThreads) || c.Auth.ArgonThreads == 0) {
		add("auth.argon_time and auth.argon_threads must be positive and auth.argon_memory at least 8 KiB per thread")
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Store.DSN == "" {
			add("store.dsn is required for the postgres driver")
		}
	default:
		add("store.driver %q is not one of memory, postgres", c.Store.Driver)
	}
	if c.Store.MaxConns < 0 {
		add("store.max_conns must not be negative")
	}

	switch c.Cache.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Cache.RedisAddr == "" {
			add("cache.redis_addr is required for the redis backend")
		}
	default:
		add("cache.backend %q is not one of memory, redis", c.Cache.Backend)
	}
	if c.Cache.TTL <= 0 {
		add("cache.ttl must be positive")
	}

	if c.Limiter.Window <= 0 || c.Limiter.BlockFor <= 0 || c.Limiter.MaxFails <= 0 {
		add("limiter window, max_fails and block_for must be positive")
	}
	if c.HTTP.Addr == "" {
		add("http.addr is required")
	}
	return errors.Join(problems...)
}
