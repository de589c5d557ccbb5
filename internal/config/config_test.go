package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoad_Defaults(t *testing.T) {
	v := newViper()
	v.Set("auth.secret", secret)

	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, ":8080", c.HTTP.Addr)
	assert.Equal(t, DriverMemory, c.Store.Driver)
	assert.Equal(t, BackendMemory, c.Cache.Backend)
	assert.Equal(t, 60*time.Second, c.Cache.TTL)
	assert.Equal(t, "bcrypt", c.Auth.HashAlgo)
	assert.Equal(t, 5, c.Limiter.MaxFails)
	assert.Equal(t, 15*time.Minute, c.Limiter.Window)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("USERAUTH_AUTH_SECRET", secret)
	t.Setenv("USERAUTH_CACHE_TTL", "5s")
	t.Setenv("USERAUTH_AUTH_HASH_ALGO", "ARGON2ID")
	t.Setenv("USERAUTH_AUTH_ARGON_TIME", "2")
	t.Setenv("USERAUTH_AUTH_ARGON_MEMORY", "19456")

	v := newViper()
	BindEnv(v)
	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, c.Cache.TTL)
	assert.Equal(t, "argon2id", c.Auth.HashAlgo)
	assert.Equal(t, uint32(2), c.Auth.ArgonTime)
	assert.Equal(t, uint32(19456), c.Auth.ArgonMemory)
	assert.Equal(t, uint8(1), c.Auth.ArgonThreads)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "userauth.yaml")
	body := "auth:\n  secret: " + secret + "\nstore:\n  driver: postgres\n  dsn: postgres://u@localhost/db\n  max_conns: 8\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	v := newViper()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, c.Store.Driver)
	assert.Equal(t, "postgres://u@localhost/db", c.Store.DSN)
	assert.Equal(t, int32(8), c.Store.MaxConns)
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]struct {
		set  map[string]any
		want string
	}{
		"short secret":       {map[string]any{"auth.secret": "short"}, "auth.secret"},
		"unknown driver":     {map[string]any{"store.driver": "sqlite"}, "store.driver"},
		"postgres no dsn":    {map[string]any{"store.driver": "postgres"}, "store.dsn"},
		"redis no addr":      {map[string]any{"cache.backend": "redis"}, "cache.redis_addr"},
		"unknown backend":    {map[string]any{"cache.backend": "memcached"}, "cache.backend"},
		"unknown algo":       {map[string]any{"auth.hash_algo": "md5"}, "auth.hash_algo"},
		"zero cache ttl":     {map[string]any{"cache.ttl": "0s"}, "cache.ttl"},
		"negative token ttl": {map[string]any{"auth.access_ttl": "-1m"}, "auth.access_ttl"},
		"bcrypt cost":        {map[string]any{"auth.bcrypt_cost": 99}, "auth.bcrypt_cost"},
		"negative max conns": {map[string]any{"store.max_conns": -1}, "store.max_conns"},
		"argon zero threads": {map[string]any{"auth.hash_algo": "argon2id", "auth.argon_threads": 0}, "auth.argon_threads"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			v := newViper()
			v.Set("auth.secret", secret)
			for k, val := range tc.set {
				v.Set(k, val)
			}
			_, err := Load(v)
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tc.want), err.Error())
		})
	}
}

func TestValidate_CollectsAll(t *testing.T) {
	v := newViper()
	v.Set("store.driver", "postgres")
	_, err := Load(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.secret")
	assert.Contains(t, err.Error(), "store.dsn")
}
