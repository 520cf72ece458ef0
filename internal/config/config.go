// Package config provides configuration management with CLI > env > file precedence.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for mathpipe.
type Config struct {
	Model           string        `yaml:"model"`
	APIKey          string        `yaml:"api-key"`
	APIBase         string        `yaml:"api-base"`
	MaxInflight     int           `yaml:"max-inflight"`
	RequestTimeout  time.Duration `yaml:"request-timeout"`
	MaxRetries      int           `yaml:"max-retries"`
	BackoffBase     time.Duration `yaml:"backoff-base"`
	BackoffCap      time.Duration `yaml:"backoff-cap"`
	HonorRetryAfter bool          `yaml:"honor-retry-after"`
	ShutdownGrace   time.Duration `yaml:"shutdown-grace"`

	Temperature     float64 `yaml:"temperature"`
	MaxTokens       int     `yaml:"max-tokens"`
	ReasoningEffort string  `yaml:"reasoning-effort"`

	Threshold   int     `yaml:"threshold"`
	ValFrac     float64 `yaml:"val-frac"`
	Seed        uint64  `yaml:"seed"`
	RuntimePath string  `yaml:"runtime-config"`
	MetricsAddr string  `yaml:"metrics-addr"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Model:           "qwen3-32b",
		APIBase:         "http://127.0.0.1:8080/v1",
		MaxInflight:     8,
		RequestTimeout:  300 * time.Second,
		MaxRetries:      3,
		BackoffBase:     time.Second,
		BackoffCap:      60 * time.Second,
		HonorRetryAfter: true,
		ShutdownGrace:   30 * time.Second,
		Temperature:     1.0,
		MaxTokens:       4096,
		Threshold:       6,
		ValFrac:         0.1,
		Seed:            42,
	}
}

// Load builds a Config by merging CLI flags, environment variables, and config files.
// Precedence: CLI args > env vars > config files (cwd then $HOME).
func Load(args []string) (*Config, error) {
	cfg := DefaultConfig()

	// Load config files (lowest precedence first, then overwrite).
	if home, err := os.UserHomeDir(); err == nil {
		_ = cfg.loadYAML(filepath.Join(home, ".mathpipe.yml"))
	}
	_ = cfg.loadYAML(".mathpipe.yml")

	// Load .env files.
	_ = godotenv.Load()

	// Apply env vars.
	cfg.applyEnv()

	// Parse CLI flags (highest precedence).
	if err := cfg.parseFlags(args); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) applyEnv() {
	if v := os.Getenv("MATHPIPE_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_BASE"); v != "" {
		c.APIBase = v
	}
	if v := os.Getenv("MATHPIPE_RUNTIME_CONFIG"); v != "" {
		c.RuntimePath = v
	}
}

func (c *Config) parseFlags(args []string) error {
	fs := flag.NewFlagSet("mathpipe", flag.ContinueOnError)
	fs.StringVar(&c.Model, "model", c.Model, "Model name to use")
	fs.StringVar(&c.APIKey, "api-key", c.APIKey, "API key")
	fs.StringVar(&c.APIBase, "api-base", c.APIBase, "API base URL")
	fs.IntVar(&c.MaxInflight, "max-inflight", c.MaxInflight, "Maximum concurrent requests")
	fs.DurationVar(&c.RequestTimeout, "request-timeout", c.RequestTimeout, "Per-request timeout")
	fs.IntVar(&c.MaxRetries, "max-retries", c.MaxRetries, "Retries after the initial attempt")
	fs.DurationVar(&c.BackoffBase, "backoff-base", c.BackoffBase, "Initial backoff delay")
	fs.DurationVar(&c.BackoffCap, "backoff-cap", c.BackoffCap, "Maximum backoff delay")
	fs.BoolVar(&c.HonorRetryAfter, "honor-retry-after", c.HonorRetryAfter, "Let a 429 Retry-After hint extend backoff")
	fs.DurationVar(&c.ShutdownGrace, "shutdown-grace", c.ShutdownGrace, "Grace period before in-flight requests are canceled on shutdown")
	fs.Float64Var(&c.Temperature, "temperature", c.Temperature, "Sampling temperature")
	fs.IntVar(&c.MaxTokens, "max-tokens", c.MaxTokens, "Maximum output tokens")
	fs.StringVar(&c.ReasoningEffort, "reasoning-effort", c.ReasoningEffort, "Reasoning effort level (low, medium, high)")
	fs.IntVar(&c.Threshold, "threshold", c.Threshold, "Heuristic classifier score threshold")
	fs.Float64Var(&c.ValFrac, "val-frac", c.ValFrac, "Fraction of records assigned to the val split")
	fs.Uint64Var(&c.Seed, "seed", c.Seed, "Seed for the train/val shuffle")
	fs.StringVar(&c.RuntimePath, "runtime-config", c.RuntimePath, "Hot-reloadable JSON settings file")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", c.MetricsAddr, "Prometheus metrics listen address (empty disables)")
	return fs.Parse(args)
}
