package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration. The supervisor and
// worker processes share one file; each reads only its own section.
type Config struct {
	Logger     LoggerConfig     `yaml:"logger"`
	Tracer     TracerConfig     `yaml:"tracer"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	Worker     WorkerConfig     `yaml:"worker"`
}

// SupervisorConfig holds dispatcher settings.
type SupervisorConfig struct {
	ID             string          `yaml:"id"`
	Addr           string          `yaml:"addr"`
	RegistryFile   string          `yaml:"registry_file"`
	Agents         []AgentEntry    `yaml:"agents"`
	WorkerTimeout  time.Duration   `yaml:"worker_timeout"`
	HealthInterval time.Duration   `yaml:"health_interval"`
	ProbeTimeout   time.Duration   `yaml:"probe_timeout"`
	HistorySize    int             `yaml:"history_size"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
	Pool           PoolConfig      `yaml:"pool"`
}

// AgentEntry declares one worker inline in the supervisor config.
type AgentEntry struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	URL          string   `yaml:"url"`
	Description  string   `yaml:"description,omitempty"`
	Capabilities []string `yaml:"capabilities"`
	Keywords     []string `yaml:"keywords,omitempty"`
}

// RateLimitConfig holds per-IP token bucket settings for the supervisor API.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// WorkerConfig holds settings for one worker service.
type WorkerConfig struct {
	ID         string          `yaml:"id"`
	Addr       string          `yaml:"addr"`
	Capability string          `yaml:"capability"`
	Mode       string          `yaml:"mode"` // "auto", "cloud", "mock"
	Cache      CacheConfig     `yaml:"cache"`
	Embedding  EmbeddingConfig `yaml:"embedding"`
	Enricher   EnricherConfig  `yaml:"enricher"`
}

// CacheConfig holds semantic cache settings.
type CacheConfig struct {
	Path       string  `yaml:"path"`
	Threshold  float64 `yaml:"threshold"`   // cosine similarity, (0, 1]
	MaxEntries int     `yaml:"max_entries"` // 0 = unbounded
}

// EmbeddingConfig holds text embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // "hash", "openai", "ollama", "gemini"
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url,omitempty"`
	APIKey     string `yaml:"api_key,omitempty"`
	Dimensions int    `yaml:"dimensions"` // 0 = provider default
	CacheSize  int    `yaml:"cache_size"` // 0 = disabled
}

// EnricherConfig holds the generative backend used to enrich drafts.
type EnricherConfig struct {
	Provider       ProviderConfig       `yaml:"provider"`
	Timeout        time.Duration        `yaml:"timeout"`
	MaxTokens      int                  `yaml:"max_tokens"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig holds circuit breaker settings for the enricher backend.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// PoolConfig holds HTTP connection pool settings.
type PoolConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
}

// ProviderConfig holds settings for a single generative provider.
type ProviderConfig struct {
	Name        string        `yaml:"name"`
	Type        string        `yaml:"type"` // "gemini", "ollama", "openai"
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	ConnTimeout time.Duration `yaml:"conn_timeout"`
	RespTimeout time.Duration `yaml:"resp_timeout"`
	Pool        PoolConfig    `yaml:"pool"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"`
	SampleRatio float64 `yaml:"sample_ratio"` // 0 or 1 = always sample
}

// defaultDataDir returns the persistent data directory under $HOME/.tutorgrid.
// Falls back to "./data" if $HOME cannot be determined.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".tutorgrid")
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
		Supervisor: SupervisorConfig{
			ID:             "SupervisorAgent_Main",
			Addr:           ":8000",
			WorkerTimeout:  30 * time.Second,
			HealthInterval: 15 * time.Second,
			ProbeTimeout:   2 * time.Second,
			HistorySize:    10,
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerSecond: 20,
				Burst:             40,
			},
			Pool: PoolConfig{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		Worker: WorkerConfig{
			ID:         "AssignmentCoachAgent",
			Addr:       ":5020",
			Capability: "assignment-guidance",
			Mode:       "auto",
			Cache: CacheConfig{
				Path:      filepath.Join(defaultDataDir(), "semcache.db"),
				Threshold: 0.7,
			},
			Embedding: EmbeddingConfig{
				Provider:  "hash",
				CacheSize: 512,
			},
			Enricher: EnricherConfig{
				Provider: ProviderConfig{
					Name:        "gemini",
					Type:        "gemini",
					Model:       "gemini-2.0-flash",
					ConnTimeout: 10 * time.Second,
					RespTimeout: 60 * time.Second,
				},
				Timeout:   20 * time.Second,
				MaxTokens: 2048,
				CircuitBreaker: CircuitBreakerConfig{
					Enabled:     true,
					MaxFailures: 5,
					Timeout:     30 * time.Second,
					Interval:    60 * time.Second,
				},
			},
		},
	}
}

// Load reads a YAML config file, applies env var overrides, and decrypts secrets.
// A missing file yields the defaults.
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

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	if err := validatePermissions(absPath); err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyEnvOverrides(cfg)

	if passphrase := os.Getenv("TUTORGRID_CONFIG_KEY"); passphrase != "" {
		if err := decryptSecrets(cfg, passphrase); err != nil {
			return nil, fmt.Errorf("decrypt secrets: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps TUTORGRID_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TUTORGRID_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("TUTORGRID_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("TUTORGRID_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("TUTORGRID_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}

	if v := os.Getenv("TUTORGRID_SUPERVISOR_ADDR"); v != "" {
		cfg.Supervisor.Addr = v
	}
	if v := os.Getenv("TUTORGRID_SUPERVISOR_REGISTRY_FILE"); v != "" {
		cfg.Supervisor.RegistryFile = v
	}
	if v := os.Getenv("TUTORGRID_SUPERVISOR_WORKER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Supervisor.WorkerTimeout = d
		}
	}
	if v := os.Getenv("TUTORGRID_SUPERVISOR_HEALTH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Supervisor.HealthInterval = d
		}
	}

	if v := os.Getenv("TUTORGRID_WORKER_ID"); v != "" {
		cfg.Worker.ID = v
	}
	if v := os.Getenv("TUTORGRID_WORKER_ADDR"); v != "" {
		cfg.Worker.Addr = v
	}
	if v := os.Getenv("TUTORGRID_WORKER_MODE"); v != "" {
		cfg.Worker.Mode = strings.ToLower(v)
	}
	if v := os.Getenv("TUTORGRID_WORKER_CACHE_PATH"); v != "" {
		cfg.Worker.Cache.Path = v
	}
	if v := os.Getenv("TUTORGRID_WORKER_CACHE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Worker.Cache.Threshold = f
		}
	}
	if v := os.Getenv("TUTORGRID_WORKER_CACHE_MAX_ENTRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Worker.Cache.MaxEntries = n
		}
	}

	if v := os.Getenv("TUTORGRID_EMBEDDING_PROVIDER"); v != "" {
		cfg.Worker.Embedding.Provider = v
	}
	if v := os.Getenv("TUTORGRID_EMBEDDING_MODEL"); v != "" {
		cfg.Worker.Embedding.Model = v
	}
	if v := os.Getenv("TUTORGRID_EMBEDDING_API_KEY"); v != "" {
		cfg.Worker.Embedding.APIKey = v
	}

	if v := os.Getenv("TUTORGRID_ENRICHER_PROVIDER_TYPE"); v != "" {
		cfg.Worker.Enricher.Provider.Type = v
	}
	if v := os.Getenv("TUTORGRID_ENRICHER_MODEL"); v != "" {
		cfg.Worker.Enricher.Provider.Model = v
	}
	if v := os.Getenv("TUTORGRID_ENRICHER_API_KEY"); v != "" {
		cfg.Worker.Enricher.Provider.APIKey = v
	}

	// Vendor-standard key names fill only what is still empty.
	vendorKeys := map[string]string{
		"gemini": "GEMINI_API_KEY",
		"openai": "OPENAI_API_KEY",
	}
	if env, ok := vendorKeys[cfg.Worker.Enricher.Provider.Type]; ok && cfg.Worker.Enricher.Provider.APIKey == "" {
		cfg.Worker.Enricher.Provider.APIKey = os.Getenv(env)
	}
	if env, ok := vendorKeys[cfg.Worker.Embedding.Provider]; ok && cfg.Worker.Embedding.APIKey == "" {
		cfg.Worker.Embedding.APIKey = os.Getenv(env)
	}
}

// validatePermissions checks the config file has restrictive permissions.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	// Allow 0600 and 0644 (readable by others but not writable)
	if mode&0o077 > 0o044 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
