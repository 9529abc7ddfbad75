// Package config holds the CLI configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration loaded from file and flags.
type Config struct {
	Namespace      string   `json:"namespace" yaml:"namespace"`
	Keys           []string `json:"keys" yaml:"keys"`
	Observers      int      `json:"observers" yaml:"observers"` // per key
	KeepErrors     bool     `json:"keepErrors" yaml:"keepErrors"`
	MaxIdleStreams int      `json:"maxIdleStreams" yaml:"maxIdleStreams"`
	Hooks          string   `json:"hooks" yaml:"hooks"` // stats|slog

	Fetch    FetchConfig    `json:"fetch" yaml:"fetch"`
	L2       L2Config       `json:"l2" yaml:"l2"`
	Log      LogConfig      `json:"log" yaml:"log"`
	Scenario ScenarioConfig `json:"scenario" yaml:"scenario"`
}

// FetchConfig shapes the simulated backend.
type FetchConfig struct {
	LatencyMs int `json:"latencyMs" yaml:"latencyMs"`
	FailEvery int `json:"failEvery" yaml:"failEvery"` // every n-th fetch fails; 0 never
	TimeoutMs int `json:"timeoutMs" yaml:"timeoutMs"`
}

// L2Config selects the byte store in front of the fetcher.
type L2Config struct {
	Provider   string   `json:"provider" yaml:"provider"` // none|ristretto|bigcache|redis|memcache
	Codec      string   `json:"codec" yaml:"codec"`       // json|msgpack|cbor
	GenStore   string   `json:"genStore" yaml:"genStore"` // local|redis
	RedisAddr  string   `json:"redisAddr" yaml:"redisAddr"`
	Memcache   []string `json:"memcache" yaml:"memcache"`
	MaxBytes   int64    `json:"maxBytes" yaml:"maxBytes"`
	TTLSeconds int      `json:"ttlSeconds" yaml:"ttlSeconds"`
}

type LogConfig struct {
	Backend string `json:"backend" yaml:"backend"` // logrus|zap|slog
	Level   string `json:"level" yaml:"level"`     // debug|info|warn|error
}

// ScenarioConfig times the demo steps.
type ScenarioConfig struct {
	ReloadKey     string `json:"reloadKey" yaml:"reloadKey"`
	RenderTicks   int    `json:"renderTicks" yaml:"renderTicks"`
	TickMs        int    `json:"tickMs" yaml:"tickMs"`
	SettleTimeout int    `json:"settleTimeoutMs" yaml:"settleTimeoutMs"`
}

// Default returns built-in defaults: two products, two observers each,
// no L2, logrus at info.
func Default() Config {
	return Config{
		Namespace: "demo",
		Keys:      []string{"SKU1", "SKU2"},
		Observers: 2,
		Hooks:     "stats",
		Fetch: FetchConfig{
			LatencyMs: 50,
			TimeoutMs: 2000,
		},
		L2: L2Config{
			Provider:   "none",
			Codec:      "json",
			GenStore:   "local",
			MaxBytes:   16 << 20,
			TTLSeconds: 600,
		},
		Log: LogConfig{
			Backend: "logrus",
			Level:   "info",
		},
		Scenario: ScenarioConfig{
			ReloadKey:     "SKU1",
			RenderTicks:   5,
			TickMs:        20,
			SettleTimeout: 5000,
		},
	}
}

// Load reads a JSON or YAML file (by extension) over the defaults.
// If path is empty, returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	default:
		err = json.Unmarshal(b, &cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

var (
	errNoKeys      = errors.New("config: at least one key is required")
	errNoObservers = errors.New("config: observers must be positive")
)

func (c Config) Validate() error {
	if len(c.Keys) == 0 {
		return errNoKeys
	}
	if c.Observers <= 0 {
		return errNoObservers
	}
	if c.MaxIdleStreams < 0 {
		return fmt.Errorf("config: maxIdleStreams must not be negative, got %d", c.MaxIdleStreams)
	}
	switch c.Hooks {
	case "", "stats", "slog":
	default:
		return fmt.Errorf("config: unknown hooks sink %q", c.Hooks)
	}
	switch c.L2.Provider {
	case "", "none", "ristretto", "bigcache", "redis", "memcache":
	default:
		return fmt.Errorf("config: unknown l2 provider %q", c.L2.Provider)
	}
	switch c.L2.GenStore {
	case "", "local", "redis":
	default:
		return fmt.Errorf("config: unknown gen store %q", c.L2.GenStore)
	}
	switch c.Log.Backend {
	case "", "logrus", "zap", "slog":
	default:
		return fmt.Errorf("config: unknown log backend %q", c.Log.Backend)
	}
	return nil
}

func (c Config) FetchLatency() time.Duration {
	return time.Duration(c.Fetch.LatencyMs) * time.Millisecond
}

func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutMs) * time.Millisecond
}

func (c Config) TTL() time.Duration {
	return time.Duration(c.L2.TTLSeconds) * time.Second
}

func (c Config) Tick() time.Duration {
	return time.Duration(c.Scenario.TickMs) * time.Millisecond
}

func (c Config) SettleTimeout() time.Duration {
	return time.Duration(c.Scenario.SettleTimeout) * time.Millisecond
}
