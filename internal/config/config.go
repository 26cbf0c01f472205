package config

import (
	"strconv"
	"time"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Auth       AuthConfig       `yaml:"auth"`
	Provider   ProviderConfig   `yaml:"provider"`
	Generation GenerationConfig `yaml:"generation"`
	Cache      CacheConfig      `yaml:"cache"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Policy     PolicyConfig     `yaml:"policy"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	Debug            bool          `yaml:"debug"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

func (d DatabaseConfig) DSN() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + strconv.Itoa(d.Port) + "/" + d.Name + "?sslmode=disable"
}

type RedisConfig struct {
	Addresses []string `yaml:"addresses"`
	Password  string   `yaml:"password"`
	DB        int      `yaml:"db"`
	PoolSize  int      `yaml:"pool_size"`
}

// AuthConfig covers the three coexisting credential variants: a static
// API token, locally signed JWTs, and CAS single-sign-on tickets.
type AuthConfig struct {
	RequireAuth     bool          `yaml:"require_auth"`
	APIToken        string        `yaml:"api_token"`
	JWT             JWTConfig     `yaml:"jwt"`
	CAS             CASConfig     `yaml:"cas"`
	SessionCacheTTL time.Duration `yaml:"session_cache_ttl"`
	DefaultScopes   []string      `yaml:"default_scopes"`
}

type JWTConfig struct {
	Secret    string        `yaml:"secret"`
	Algorithm string        `yaml:"algorithm"`
	Issuer    string        `yaml:"issuer"`
	Expiry    time.Duration `yaml:"expiry"`
}

type CASConfig struct {
	ServerURL  string        `yaml:"server_url"`
	ServiceURL string        `yaml:"service_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

type ProviderConfig struct {
	BaseURL      string            `yaml:"base_url"`
	APIKey       string            `yaml:"api_key"`
	Timeout      time.Duration     `yaml:"timeout"`
	MaxAttempts  int               `yaml:"max_attempts"`
	RetryBackoff time.Duration     `yaml:"retry_backoff"`
	Headers      map[string]string `yaml:"headers,omitempty"`

	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

type CircuitBreakerConfig struct {
	FailureThreshold      int           `yaml:"failure_threshold"`
	RecoveryProbeInterval time.Duration `yaml:"recovery_probe_interval"`
}

// GenerationConfig holds the process-wide generation defaults. The
// solution temperature must stay at or below the completion temperature
// so solution-class requests remain the more deterministic of the two.
type GenerationConfig struct {
	Model               string  `yaml:"model"`
	MaxTokens           int     `yaml:"max_tokens"`
	MaxTokensCeiling    int     `yaml:"max_tokens_ceiling"`
	Temperature         float64 `yaml:"temperature"`
	SolutionTemperature float64 `yaml:"solution_temperature"`

	// TokenBudget caps estimated prompt tokens + max completion tokens
	// for a single request. Requests over budget are rejected before
	// any provider call.
	TokenBudget int `yaml:"token_budget"`
}

type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	// Backend selects the store binding: "memory" or "redis".
	Backend    string        `yaml:"backend"`
	MaxEntries int           `yaml:"max_entries"`
	TTL        time.Duration `yaml:"ttl"`
	// TemperatureThreshold marks the start of the non-deterministic
	// regime: requests resolved above it bypass the cache entirely.
	TemperatureThreshold float64 `yaml:"temperature_threshold"`
}

type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	// DailyTokenLimit caps total tokens per subject per UTC day.
	// 0 disables the quota.
	DailyTokenLimit int64 `yaml:"daily_token_limit"`
}

type PolicyConfig struct {
	Enabled           bool          `yaml:"enabled"`
	BundlePath        string        `yaml:"bundle_path"`
	EvaluationTimeout time.Duration `yaml:"evaluation_timeout"`
}

type TelemetryConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	MetricsPort int    `yaml:"metrics_port"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8000,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     120 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Name:            "lumen",
			User:            "lumen",
			MaxOpenConns:    25,
			MaxIdleConns:    10,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addresses: []string{"localhost:6379"},
			DB:        0,
			PoolSize:  50,
		},
		Auth: AuthConfig{
			RequireAuth: false,
			JWT: JWTConfig{
				Algorithm: "HS256",
				Issuer:    "lumen-gateway",
				Expiry:    30 * time.Minute,
			},
			CAS: CASConfig{
				Timeout: 5 * time.Second,
			},
			SessionCacheTTL: 5 * time.Minute,
			DefaultScopes:   []string{"completion", "solution"},
		},
		Provider: ProviderConfig{
			BaseURL:      "https://api.openai.com/v1",
			Timeout:      30 * time.Second,
			MaxAttempts:  3,
			RetryBackoff: 500 * time.Millisecond,
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold:      5,
				RecoveryProbeInterval: 15 * time.Second,
			},
		},
		Generation: GenerationConfig{
			Model:               "gpt-4o-mini",
			MaxTokens:           2048,
			MaxTokensCeiling:    4096,
			Temperature:         0.3,
			SolutionTemperature: 0.1,
			TokenBudget:         8192,
		},
		Cache: CacheConfig{
			Enabled:              true,
			Backend:              "memory",
			MaxEntries:           1024,
			TTL:                  15 * time.Minute,
			TemperatureThreshold: 0.5,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 60,
		},
		Policy: PolicyConfig{
			Enabled:           false,
			BundlePath:        "/etc/lumen/policies",
			EvaluationTimeout: 100 * time.Millisecond,
		},
		Telemetry: TelemetryConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			MetricsPort: 9090,
		},
	}
}
