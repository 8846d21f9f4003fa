package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Dispatcher   DispatcherConfig   `yaml:"dispatcher"`
	LLM          LLMConfig          `yaml:"llm"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	History      HistoryConfig      `yaml:"history"`
	Roles        []RoleConfig       `yaml:"roles"`
	Logger       LoggerConfig       `yaml:"logger"`
	Tracer       TracerConfig       `yaml:"tracer"`
}

// DispatcherConfig holds dispatch engine settings.
type DispatcherConfig struct {
	// SendTimeout bounds a single provider call. 0 uses the default (120s).
	SendTimeout time.Duration `yaml:"send_timeout"`
	// FanoutLimit caps concurrent fan-out branches. 0 uses the default (8).
	FanoutLimit int `yaml:"fanout_limit"`
	// MinInterval is the advisory spacing between calls to one adapter.
	// 0 uses the default (1s).
	MinInterval time.Duration `yaml:"min_interval"`
}

// LLMConfig holds provider settings.
type LLMConfig struct {
	Providers      []ProviderConfig     `yaml:"providers"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	// Pricing overrides or extends the built-in per-million-token price table.
	Pricing map[string]ModelPriceConfig `yaml:"pricing,omitempty"`
}

// ProviderConfig holds settings for a single provider connector.
type ProviderConfig struct {
	ID          string        `yaml:"id,omitempty"` // auto-generated when empty
	Type        string        `yaml:"type"`         // "openai", "gemini", "ollama", "bedrock", "mock"
	BaseURL     string        `yaml:"base_url,omitempty"`
	APIKey      string        `yaml:"api_key,omitempty"`
	Model       string        `yaml:"model"`
	Region      string        `yaml:"region,omitempty"` // bedrock only
	ConnTimeout time.Duration `yaml:"conn_timeout"`
	RespTimeout time.Duration `yaml:"resp_timeout"`
	Pool        PoolConfig    `yaml:"pool"`
}

// PoolConfig holds HTTP connection pool settings for provider connectors.
type PoolConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
}

// CircuitBreakerConfig holds circuit breaker settings for provider connectors.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// ModelPriceConfig is a per-million-token price pair.
type ModelPriceConfig struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

// OrchestratorConfig holds intent router settings.
type OrchestratorConfig struct {
	// Threshold is the normalized-score cutoff for specialist selection.
	// 0 uses the default (0.3).
	Threshold float64 `yaml:"threshold"`
	// MaxConcurrent caps concurrent specialist calls. 0 uses the default (4).
	MaxConcurrent int `yaml:"max_concurrent"`
}

// HistoryConfig holds conversation log settings.
type HistoryConfig struct {
	Backend    string `yaml:"backend"` // "memory" (default) or "sqlite"
	Path       string `yaml:"path"`    // sqlite database path
	MaxEntries int    `yaml:"max_entries"`
}

// RoleConfig binds a role name to a provider id at startup.
type RoleConfig struct {
	Role    string `yaml:"role"`
	Adapter string `yaml:"adapter"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
	Output string `yaml:"output"` // "stdout", "stderr", or a file path
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // "stdout" or "noop"
}

// Defaults returns a Config populated with sensible defaults.
func Defaults() *Config {
	return &Config{
		Dispatcher: DispatcherConfig{
			SendTimeout: 120 * time.Second,
			FanoutLimit: 8,
			MinInterval: time.Second,
		},
		LLM: LLMConfig{
			CircuitBreaker: CircuitBreakerConfig{Enabled: false},
		},
		Orchestrator: OrchestratorConfig{
			Threshold:     0.3,
			MaxConcurrent: 4,
		},
		History: HistoryConfig{
			Backend:    "memory",
			MaxEntries: 1000,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{Enabled: false, Exporter: "noop"},
	}
}

// Load reads, merges and validates the configuration at path.
// A missing file yields defaults plus environment overrides.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyEnvOverrides(cfg)

	passphrase := os.Getenv("CONDUCTOR_CONFIG_KEY")
	if passphrase != "" {
		if err := decryptSecrets(cfg, passphrase); err != nil {
			return nil, fmt.Errorf("decrypt secrets: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnvOverrides maps CONDUCTOR_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CONDUCTOR_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("CONDUCTOR_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("CONDUCTOR_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("CONDUCTOR_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
	if v := os.Getenv("CONDUCTOR_SEND_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Dispatcher.SendTimeout = d
		}
	}
	if v := os.Getenv("CONDUCTOR_FANOUT_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Dispatcher.FanoutLimit = n
		}
	}
	if v := os.Getenv("CONDUCTOR_HISTORY_BACKEND"); v != "" {
		cfg.History.Backend = v
	}
	if v := os.Getenv("CONDUCTOR_HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}
}

// Validate checks the configuration for inconsistencies.
func Validate(cfg *Config) error {
	switch cfg.History.Backend {
	case "", "memory":
	case "sqlite":
		if cfg.History.Path == "" {
			return fmt.Errorf("config: history.path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("config: unknown history backend %q", cfg.History.Backend)
	}

	if cfg.Orchestrator.Threshold < 0 || cfg.Orchestrator.Threshold > 1 {
		return fmt.Errorf("config: orchestrator.threshold must be in [0, 1], got %v", cfg.Orchestrator.Threshold)
	}

	seen := make(map[string]bool, len(cfg.LLM.Providers))
	for i, p := range cfg.LLM.Providers {
		if p.Type == "" {
			return fmt.Errorf("config: llm.providers[%d] has no type", i)
		}
		if p.ID != "" {
			if seen[p.ID] {
				return fmt.Errorf("config: duplicate provider id %q", p.ID)
			}
			seen[p.ID] = true
		}
	}

	for _, r := range cfg.Roles {
		if r.Role == "" || r.Adapter == "" {
			return fmt.Errorf("config: roles entries need both role and adapter")
		}
	}

	for model, price := range cfg.LLM.Pricing {
		if price.Input < 0 || price.Output < 0 {
			return fmt.Errorf("config: negative price for model %q", model)
		}
	}

	return nil
}
