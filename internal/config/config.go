// Package config provides YAML configuration loading with validation and
// environment variable substitution for the library gateway.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level gateway configuration.
type Config struct {
	Server         ServerConfig         `yaml:"server" json:"server"`
	Metrics        MetricsConfig        `yaml:"metrics" json:"metrics"`
	Logging        LoggingConfig        `yaml:"logging" json:"logging"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit" json:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker" json:"circuit_breaker"`
	Retry          RetryConfig          `yaml:"retry" json:"retry"`
	Dependencies   DependenciesConfig   `yaml:"dependencies" json:"dependencies"`
	Admin          AdminConfig          `yaml:"admin" json:"admin"`

	// Warnings holds non-fatal config issues detected during loading.
	// Stored on the Config itself (not a package-level var) so it is
	// safe to call Load concurrently from the hot-reload goroutine.
	Warnings []string `yaml:"-" json:"-"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port" json:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	TrustedProxies  []string      `yaml:"trusted_proxies" json:"trusted_proxies"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" json:"max_body_bytes"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
// Enabled defaults to true; set to false to disable metrics.
type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// IsEnabled returns whether metrics are enabled (defaults to true).
func (m MetricsConfig) IsEnabled() bool {
	if m.Enabled == nil {
		return true
	}
	return *m.Enabled
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`   // "debug", "info", "warn", "error"; default: "info"
	Output string `yaml:"output" json:"output"` // "stdout" or "stderr"; default: "stdout"
}

// RateLimitConfig holds the per-client rate limiter settings.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" json:"burst_size"`
}

// CircuitBreakerConfig holds breaker settings applied to every dependency.
type CircuitBreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold" json:"failure_threshold"`
	RetryTimeout     time.Duration `yaml:"retry_timeout" json:"retry_timeout"`
}

// RetryConfig holds retry queue worker settings.
type RetryConfig struct {
	// Cooldown is how long the worker pauses after a failed drain attempt
	// before popping the next task.
	Cooldown time.Duration `yaml:"cooldown" json:"cooldown"`
	// PollInterval bounds how long the worker blocks on an empty queue
	// before re-checking for cancellation.
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`
}

// DependenciesConfig names the three backend services the gateway fronts.
type DependenciesConfig struct {
	Catalog DependencyConfig `yaml:"catalog" json:"catalog"`
	Rating  DependencyConfig `yaml:"rating" json:"rating"`
	Rental  DependencyConfig `yaml:"rental" json:"rental"`
}

// DependencyConfig holds the connection settings for one backend service.
type DependencyConfig struct {
	BaseURL string        `yaml:"base_url" json:"base_url"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// AdminConfig holds admin API settings.
type AdminConfig struct {
	Enabled     bool     `yaml:"enabled" json:"enabled"`           // default: false
	IPAllowlist []string `yaml:"ip_allowlist" json:"ip_allowlist"` // CIDR notation
}

var envVarRe = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns in s with the corresponding
// environment variable value.
func expandEnvVars(s string) string {
	return envVarRe.ReplaceAllStringFunc(s, func(match string) string {
		key := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		return match
	})
}

// Load reads and parses a YAML configuration file, applies environment
// variable substitution, sets defaults, and validates the result.
// Warnings are stored on cfg.Warnings (goroutine-safe, no package-level state).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses configuration from raw YAML bytes. Useful for testing.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	cfg.Warnings = collectWarnings(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 1048576 // 1 MB
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = 100
	}
	if cfg.RateLimit.BurstSize == 0 {
		cfg.RateLimit.BurstSize = 50
	}

	if cfg.CircuitBreaker.FailureThreshold == 0 {
		cfg.CircuitBreaker.FailureThreshold = 3
	}
	if cfg.CircuitBreaker.RetryTimeout == 0 {
		cfg.CircuitBreaker.RetryTimeout = 10 * time.Second
	}

	if cfg.Retry.Cooldown == 0 {
		cfg.Retry.Cooldown = 2 * time.Second
	}
	if cfg.Retry.PollInterval == 0 {
		cfg.Retry.PollInterval = 1 * time.Second
	}

	for _, dep := range []*DependencyConfig{
		&cfg.Dependencies.Catalog,
		&cfg.Dependencies.Rating,
		&cfg.Dependencies.Rental,
	} {
		if dep.Timeout == 0 {
			dep.Timeout = 2 * time.Second
		}
	}
}

// ValidLogLevels are the accepted logging.level strings.
var ValidLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}
	if cfg.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}

	if !ValidLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Output != "stdout" && cfg.Logging.Output != "stderr" {
		return fmt.Errorf("logging.output must be \"stdout\" or \"stderr\", got %q", cfg.Logging.Output)
	}

	if cfg.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("rate_limit.requests_per_second must be positive")
	}
	if cfg.RateLimit.BurstSize <= 0 {
		return fmt.Errorf("rate_limit.burst_size must be positive")
	}

	if cfg.CircuitBreaker.FailureThreshold < 1 {
		return fmt.Errorf("circuit_breaker.failure_threshold must be positive")
	}
	if cfg.CircuitBreaker.RetryTimeout <= 0 {
		return fmt.Errorf("circuit_breaker.retry_timeout must be positive")
	}

	if cfg.Retry.Cooldown <= 0 {
		return fmt.Errorf("retry.cooldown must be positive")
	}
	if cfg.Retry.PollInterval <= 0 {
		return fmt.Errorf("retry.poll_interval must be positive")
	}

	deps := []struct {
		name string
		cfg  DependencyConfig
	}{
		{"catalog", cfg.Dependencies.Catalog},
		{"rating", cfg.Dependencies.Rating},
		{"rental", cfg.Dependencies.Rental},
	}
	for _, dep := range deps {
		if dep.cfg.BaseURL == "" {
			return fmt.Errorf("dependencies.%s.base_url is required", dep.name)
		}
		u, err := url.Parse(dep.cfg.BaseURL)
		if err != nil {
			return fmt.Errorf("dependencies.%s.base_url: invalid URL: %w", dep.name, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("dependencies.%s.base_url: scheme must be http or https, got %q", dep.name, u.Scheme)
		}
		if u.Host == "" {
			return fmt.Errorf("dependencies.%s.base_url: host is required", dep.name)
		}
		if dep.cfg.Timeout <= 0 {
			return fmt.Errorf("dependencies.%s.timeout must be positive", dep.name)
		}
	}

	for i, cidr := range cfg.Server.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return fmt.Errorf("server.trusted_proxies[%d]: invalid CIDR %q: %w", i, cidr, err)
		}
	}

	if cfg.Admin.Enabled {
		if len(cfg.Admin.IPAllowlist) == 0 {
			return fmt.Errorf("admin.ip_allowlist is required when admin is enabled")
		}
		for i, cidr := range cfg.Admin.IPAllowlist {
			if _, _, err := net.ParseCIDR(cidr); err != nil {
				return fmt.Errorf("admin.ip_allowlist[%d]: invalid CIDR %q: %w", i, cidr, err)
			}
		}
	}

	return nil
}

func collectWarnings(cfg *Config) []string {
	var warnings []string
	for name, dep := range map[string]DependencyConfig{
		"catalog": cfg.Dependencies.Catalog,
		"rating":  cfg.Dependencies.Rating,
		"rental":  cfg.Dependencies.Rental,
	} {
		if strings.Contains(dep.BaseURL, "${") {
			warnings = append(warnings, fmt.Sprintf("dependencies.%s.base_url contains unresolved environment variable", name))
		}
	}
	return warnings
}
