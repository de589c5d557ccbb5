// Command userauth-server starts the userauth HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/and161185/userauth/internal/config"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(viper.New()).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree; flags are bound onto v.
func newRootCmd(v *viper.Viper) *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "userauth-server",
		Short:         "Authentication and session validation API",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cfgFile == "" {
				return nil
			}
			v.SetConfigFile(cfgFile)
			if err := v.ReadInConfig(); err != nil {
				return fmt.Errorf("read config %s: %w", cfgFile, err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	config.SetDefaults(v)
	config.BindEnv(v)

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	pf.String("dsn", "", "PostgreSQL DSN")
	pf.String("store-driver", config.DriverMemory, "user store: memory or postgres")
	pf.Bool("dev", false, "development logging")

	f := root.Flags()
	f.String("addr", ":8080", "listen address")
	f.String("secret", "", "HS256 signing secret, at least 32 bytes")
	f.Duration("access-ttl", 0, "access token lifetime")
	f.String("cache-backend", config.BackendMemory, "identity cache: memory or redis")
	f.String("redis-addr", "", "redis address for the redis cache backend")

	for key, name := range map[string]string{
		"store.dsn":        "dsn",
		"store.driver":     "store-driver",
		"log.dev":          "dev",
		"http.addr":        "addr",
		"auth.secret":      "secret",
		"auth.access_ttl":  "access-ttl",
		"cache.backend":    "cache-backend",
		"cache.redis_addr": "redis-addr",
	} {
		flag := f.Lookup(name)
		if flag == nil {
			flag = pf.Lookup(name)
		}
		_ = v.BindPFlag(key, flag)
	}

	root.AddCommand(newMigrateCmd(v), newVersionCmd())
	return root
}

func newMigrateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dsn := v.GetString("store.dsn")
			if dsn == "" {
				return fmt.Errorf("store.dsn is required")
			}
			log, err := newLogger(v.GetBool("log.dev"))
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			return migrateUp(cmd.Context(), dsn, log)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "userauth-server %s (%s)\n", version, buildDate)
		},
	}
}
