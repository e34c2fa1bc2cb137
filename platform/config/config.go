// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort            = "3001"
	DefaultUpstreamURL     = "http://127.0.0.1:5000"
	DefaultUpstreamTimeout = 30 * time.Second
	DefaultMaxUploadBytes  = 30 * 1024 * 1024
	DefaultMaxFieldBytes   = 30 * 1024 * 1024
	DefaultServiceName     = "stego-gateway"

	// MaxLimitBytes caps MAX_UPLOAD_BYTES and MAX_FIELD_BYTES.
	MaxLimitBytes = 1 << 30
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
	IsProduction() bool
}

// UpstreamConfig provides settings for the upstream steganography service.
type UpstreamConfig interface {
	GetUpstreamURL() string
	GetUpstreamTimeout() time.Duration
	GetUpstreamMaxRPS() float64
	GetUpstreamBurst() int
}

// UploadConfig provides limits applied to inbound multipart uploads.
type UploadConfig interface {
	GetMaxUploadBytes() int64
	GetMaxFieldBytes() int64
	GetMaxConcurrentUploads() int64
}

// TelemetryConfig provides settings for trace export.
type TelemetryConfig interface {
	GetOTLPEndpoint() string
	GetServiceName() string
	GetEnv() string
	IsTracingEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
// It is built once by Load and treated as read-only afterwards.
type Config struct {
	Env                  string
	HTTPAddr             string
	UpstreamURL          string
	UpstreamTimeout      time.Duration
	UpstreamMaxRPS       float64
	UpstreamBurst        int
	MaxUploadBytes       int64
	MaxFieldBytes        int64
	MaxConcurrentUploads int64
	CORSAllowAll         bool
	CORSOrigins          []string
	CORSAllowCreds       bool
	OTLPEndpoint         string
	ServiceName          string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }
func (c *Config) IsProduction() bool       { return strings.EqualFold(c.Env, "production") }

// UpstreamConfig implementation
func (c *Config) GetUpstreamURL() string            { return c.UpstreamURL }
func (c *Config) GetUpstreamTimeout() time.Duration { return c.UpstreamTimeout }
func (c *Config) GetUpstreamMaxRPS() float64        { return c.UpstreamMaxRPS }
func (c *Config) GetUpstreamBurst() int             { return c.UpstreamBurst }

// UploadConfig implementation
func (c *Config) GetMaxUploadBytes() int64       { return c.MaxUploadBytes }
func (c *Config) GetMaxFieldBytes() int64        { return c.MaxFieldBytes }
func (c *Config) GetMaxConcurrentUploads() int64 { return c.MaxConcurrentUploads }

// TelemetryConfig implementation
func (c *Config) GetOTLPEndpoint() string { return c.OTLPEndpoint }
func (c *Config) GetServiceName() string  { return c.ServiceName }
func (c *Config) GetEnv() string          { return c.Env }
func (c *Config) IsTracingEnabled() bool  { return c.OTLPEndpoint != "" }

// fileConfig mirrors the optional YAML file named by CONFIG_FILE.
// Zero values mean "not set" and keep the built-in default.
type fileConfig struct {
	Env      string `yaml:"env"`
	Port     string `yaml:"port"`
	HTTPAddr string `yaml:"http_addr"`
	Upstream struct {
		URL     string  `yaml:"url"`
		Timeout string  `yaml:"timeout"`
		MaxRPS  float64 `yaml:"max_rps"`
		Burst   int     `yaml:"burst"`
	} `yaml:"upstream"`
	Upload struct {
		MaxFileBytes  int64 `yaml:"max_file_bytes"`
		MaxFieldBytes int64 `yaml:"max_field_bytes"`
		MaxConcurrent int64 `yaml:"max_concurrent"`
	} `yaml:"upload"`
	CORS struct {
		Origins          []string `yaml:"origins"`
		AllowCredentials *bool    `yaml:"allow_credentials"`
	} `yaml:"cors"`
	Telemetry struct {
		OTLPEndpoint string `yaml:"otlp_endpoint"`
		ServiceName  string `yaml:"service_name"`
	} `yaml:"telemetry"`
}

// Load reads configuration from defaults, an optional YAML file and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if containsWildcard(cfg.CORSOrigins) {
		cfg.CORSAllowAll = true
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Env:             "development",
		HTTPAddr:        ":" + DefaultPort,
		UpstreamURL:     DefaultUpstreamURL,
		UpstreamTimeout: DefaultUpstreamTimeout,
		UpstreamBurst:   1,
		MaxUploadBytes:  DefaultMaxUploadBytes,
		MaxFieldBytes:   DefaultMaxFieldBytes,
		CORSOrigins:     []string{"*"},
		ServiceName:     DefaultServiceName,
	}
}

func applyFile(cfg *Config, path string) error {
	// #nosec G304 -- path comes from operator-controlled environment
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.Env != "" {
		cfg.Env = fc.Env
	}
	if fc.Port != "" {
		cfg.HTTPAddr = ":" + fc.Port
	}
	if fc.HTTPAddr != "" {
		cfg.HTTPAddr = fc.HTTPAddr
	}
	if fc.Upstream.URL != "" {
		cfg.UpstreamURL = fc.Upstream.URL
	}
	if fc.Upstream.Timeout != "" {
		d, err := time.ParseDuration(fc.Upstream.Timeout)
		if err != nil {
			return fmt.Errorf("config file upstream.timeout: %w", err)
		}
		cfg.UpstreamTimeout = d
	}
	if fc.Upstream.MaxRPS != 0 {
		cfg.UpstreamMaxRPS = fc.Upstream.MaxRPS
	}
	if fc.Upstream.Burst != 0 {
		cfg.UpstreamBurst = fc.Upstream.Burst
	}
	if fc.Upload.MaxFileBytes != 0 {
		cfg.MaxUploadBytes = fc.Upload.MaxFileBytes
	}
	if fc.Upload.MaxFieldBytes != 0 {
		cfg.MaxFieldBytes = fc.Upload.MaxFieldBytes
	}
	if fc.Upload.MaxConcurrent != 0 {
		cfg.MaxConcurrentUploads = fc.Upload.MaxConcurrent
	}
	if len(fc.CORS.Origins) > 0 {
		cfg.CORSOrigins = fc.CORS.Origins
	}
	if fc.CORS.AllowCredentials != nil {
		cfg.CORSAllowCreds = *fc.CORS.AllowCredentials
	}
	if fc.Telemetry.OTLPEndpoint != "" {
		cfg.OTLPEndpoint = fc.Telemetry.OTLPEndpoint
	}
	if fc.Telemetry.ServiceName != "" {
		cfg.ServiceName = fc.Telemetry.ServiceName
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.Env = getEnv("APP_ENV", cfg.Env)

	if port, ok := os.LookupEnv("PORT"); ok && strings.TrimSpace(port) != "" {
		cfg.HTTPAddr = ":" + strings.TrimSpace(port)
	}
	cfg.HTTPAddr = getEnv("HTTP_ADDR", cfg.HTTPAddr)

	cfg.UpstreamURL = getEnv("PYTHON_API_URL", cfg.UpstreamURL)
	cfg.UpstreamURL = getEnv("UPSTREAM_URL", cfg.UpstreamURL)

	var err error
	if raw, ok := os.LookupEnv("UPSTREAM_TIMEOUT"); ok {
		if cfg.UpstreamTimeout, err = time.ParseDuration(raw); err != nil {
			return fmt.Errorf("UPSTREAM_TIMEOUT: %w", err)
		}
	}
	if raw, ok := os.LookupEnv("UPSTREAM_MAX_RPS"); ok {
		if cfg.UpstreamMaxRPS, err = strconv.ParseFloat(raw, 64); err != nil {
			return fmt.Errorf("UPSTREAM_MAX_RPS: %w", err)
		}
	}
	if raw, ok := os.LookupEnv("UPSTREAM_BURST"); ok {
		if cfg.UpstreamBurst, err = strconv.Atoi(raw); err != nil {
			return fmt.Errorf("UPSTREAM_BURST: %w", err)
		}
	}
	if cfg.MaxUploadBytes, err = envInt64("MAX_UPLOAD_BYTES", cfg.MaxUploadBytes); err != nil {
		return err
	}
	if cfg.MaxFieldBytes, err = envInt64("MAX_FIELD_BYTES", cfg.MaxFieldBytes); err != nil {
		return err
	}
	if cfg.MaxConcurrentUploads, err = envInt64("MAX_CONCURRENT_UPLOADS", cfg.MaxConcurrentUploads); err != nil {
		return err
	}

	if raw, ok := os.LookupEnv("CORS_ORIGINS"); ok {
		cfg.CORSOrigins = splitCSV(raw)
	}
	if raw, ok := os.LookupEnv("CORS_ALLOW_CREDENTIALS"); ok {
		cfg.CORSAllowCreds = strings.EqualFold(raw, "true")
	}

	cfg.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint)
	cfg.ServiceName = getEnv("SERVICE_NAME", cfg.ServiceName)
	return nil
}

func (c *Config) validate() error {
	parsed, err := url.Parse(c.UpstreamURL)
	if err != nil {
		return fmt.Errorf("upstream URL %q: %w", c.UpstreamURL, err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("upstream URL %q must be an absolute http(s) URL", c.UpstreamURL)
	}
	c.UpstreamURL = strings.TrimRight(c.UpstreamURL, "/")

	if c.UpstreamTimeout <= 0 {
		return errors.New("UPSTREAM_TIMEOUT must be positive")
	}
	if c.UpstreamMaxRPS < 0 {
		return errors.New("UPSTREAM_MAX_RPS cannot be negative")
	}
	if c.UpstreamMaxRPS > 0 && c.UpstreamBurst < 1 {
		return errors.New("UPSTREAM_BURST must be at least 1 when UPSTREAM_MAX_RPS is set")
	}
	if c.MaxUploadBytes <= 0 || c.MaxUploadBytes > MaxLimitBytes {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be between 1 and %d", MaxLimitBytes)
	}
	if c.MaxFieldBytes <= 0 || c.MaxFieldBytes > MaxLimitBytes {
		return fmt.Errorf("MAX_FIELD_BYTES must be between 1 and %d", MaxLimitBytes)
	}
	if c.MaxConcurrentUploads < 0 {
		return errors.New("MAX_CONCURRENT_UPLOADS cannot be negative")
	}
	if c.HTTPAddr == "" {
		return errors.New("HTTP_ADDR cannot be empty")
	}
	if c.CORSAllowAll && c.CORSAllowCreds {
		return errors.New("CORS_ALLOW_CREDENTIALS cannot be true when CORS allows all origins")
	}
	if !c.CORSAllowAll {
		if len(c.CORSOrigins) == 0 {
			return errors.New("CORS_ORIGINS cannot be empty")
		}
		for _, origin := range c.CORSOrigins {
			if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
				return fmt.Errorf("CORS origin %q must start with http:// or https://", origin)
			}
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func envInt64(key string, fallback int64) (int64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	result, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return result, nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
