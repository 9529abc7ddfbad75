package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/replaycache/internal/config"
	"github.com/unkn0wn-root/replaycache/internal/demo"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "replaycache",
		Short: "replaycache demo CLI",
		Long:  "Runs the shared-stream cache against a simulated product backend.",
	}
	rootCmd.PersistentFlags().String("config", os.Getenv("REPLAYCACHE_CONFIG"), "Config file (.json or .yaml)")

	rootCmd.AddCommand(newDemoCmd(), newConfigCmd())
	return rootCmd
}

func newDemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the product-price scenario",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if _, err := demo.Run(ctx, cfg, cmd.OutOrStdout()); err != nil {
				return fmt.Errorf("demo: %w", err)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringSlice("keys", nil, "Keys to observe (default SKU1,SKU2)")
	f.Int("observers", 0, "Observers per key")
	f.String("provider", "", "L2 provider: none|ristretto|bigcache|redis|memcache")
	f.String("codec", "", "L2 codec: json|msgpack|cbor")
	f.String("gen-store", "", "Generation store: local|redis")
	f.String("redis", "", "Redis address (empty starts an embedded server)")
	f.StringSlice("memcache", nil, "Memcached servers")
	f.String("log", "", "Log backend: logrus|zap|slog")
	f.String("log-level", "", "Log level: debug|info|warn|error")
	f.String("hooks", "", "Hook sink: stats|slog (slog also logs every event)")
	f.Int("latency-ms", -1, "Simulated fetch latency")
	f.Int("fail-every", -1, "Fail every n-th fetch (0 never)")
	f.Bool("keep-errors", false, "Do not retry failed keys on resubscribe")
	f.Int("max-idle", -1, "Max idle shared streams kept registered (0 unbounded)")
	return cmd
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			b, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}
}

// loadConfig reads the config file and applies any flags the user set.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	f := cmd.Flags()
	if f.Lookup("keys") == nil {
		return cfg, nil
	}
	if f.Changed("keys") {
		cfg.Keys, _ = f.GetStringSlice("keys")
	}
	if v, _ := f.GetInt("observers"); v > 0 {
		cfg.Observers = v
	}
	if v, _ := f.GetString("provider"); v != "" {
		cfg.L2.Provider = v
	}
	if v, _ := f.GetString("codec"); v != "" {
		cfg.L2.Codec = v
	}
	if v, _ := f.GetString("gen-store"); v != "" {
		cfg.L2.GenStore = v
	}
	if v, _ := f.GetString("redis"); v != "" {
		cfg.L2.RedisAddr = v
	}
	if f.Changed("memcache") {
		cfg.L2.Memcache, _ = f.GetStringSlice("memcache")
	}
	if v, _ := f.GetString("log"); v != "" {
		cfg.Log.Backend = v
	}
	if v, _ := f.GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v, _ := f.GetString("hooks"); v != "" {
		cfg.Hooks = v
	}
	if v, _ := f.GetInt("latency-ms"); v >= 0 {
		cfg.Fetch.LatencyMs = v
	}
	if v, _ := f.GetInt("fail-every"); v >= 0 {
		cfg.Fetch.FailEvery = v
	}
	if f.Changed("keep-errors") {
		cfg.KeepErrors, _ = f.GetBool("keep-errors")
	}
	if v, _ := f.GetInt("max-idle"); v >= 0 {
		cfg.MaxIdleStreams = v
	}
	return cfg, cfg.Validate()
}
