// Package config provides the unified configuration system for tileserv.
// It defines a single Config structure covering the serving workers, the
// resource pools, the index cache and the descriptor books, so every
// component is configured from one validated document.
//
// The configuration is organised into logical sections:
//   - Server: worker count and the administrative HTTP listener
//   - Cache: index-cache entry count and validity window
//   - HTTP: remote-fetch client tuning (timeouts, HTTP/2, circuit breaker)
//   - Storage: backend defaults for file, S3 and GCS contexts
//   - Books: tile-matrix-set and style descriptor directories
//   - Logging: log level and encoding
//   - Observability: metrics and tracing toggles
//
// Example usage:
//
//	cfg := config.Default()
//	cfg.Cache.Size = 500
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"runtime"
	"time"

	"github.com/tileforge/tileserv/pkg/errors"
)

// Config is the single configuration structure for the tileserv core.
type Config struct {
	// Server controls the serving workers and the admin listener
	Server ServerConfig `yaml:"server" json:"server"`

	// Cache controls the slab-index cache
	Cache CacheConfig `yaml:"cache" json:"cache"`

	// HTTP tunes the per-worker remote-fetch clients
	HTTP HTTPConfig `yaml:"http" json:"http"`

	// Storage holds backend defaults for storage contexts
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Books locates the descriptor directories
	Books BooksConfig `yaml:"books" json:"books"`

	// Logging configures the structured logger
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Observability configures metrics and tracing
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// ServerConfig contains worker and listener settings.
type ServerConfig struct {
	// Workers is the number of serving worker goroutines. Each worker owns
	// one HTTP client and one projection context for its whole lifetime.
	Workers int `yaml:"workers" json:"workers"`
	// AdminAddr is the listen address for /metrics and /healthz
	AdminAddr string `yaml:"admin_addr" json:"admin_addr"`
	// ShutdownTimeout bounds graceful shutdown
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// CacheConfig contains the index-cache bounds.
//
// Size is the maximum number of resident entries; 0 means the cache holds
// nothing and every put is a no-op. ValiditySeconds is the maximum entry age;
// a value of 0 or less means every entry is always expired and every read is
// a miss.
type CacheConfig struct {
	Size            int `yaml:"size" json:"size"`
	ValiditySeconds int `yaml:"validity" json:"validity"`
}

// Validity returns the validity window as a duration.
func (c CacheConfig) Validity() time.Duration {
	return time.Duration(c.ValiditySeconds) * time.Second
}

// HTTPConfig configures the remote-fetch HTTP clients.
type HTTPConfig struct {
	// Connection settings
	MaxIdleConns        int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host" json:"max_idle_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout" json:"idle_conn_timeout"`
	EnableHTTP2         bool          `yaml:"enable_http2" json:"enable_http2"`

	// Timeouts
	DialTimeout           time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout" json:"tls_handshake_timeout"`
	ResponseHeaderTimeout time.Duration `yaml:"response_header_timeout" json:"response_header_timeout"`
	RequestTimeout        time.Duration `yaml:"request_timeout" json:"request_timeout"`
	KeepAlive             time.Duration `yaml:"keep_alive" json:"keep_alive"`

	// TLS settings
	InsecureSkipVerify bool `yaml:"insecure_skip_verify" json:"insecure_skip_verify"`

	// Circuit breaker
	CircuitBreakerEnabled bool          `yaml:"circuit_breaker_enabled" json:"circuit_breaker_enabled"`
	FailureThreshold      int           `yaml:"failure_threshold" json:"failure_threshold"`
	SuccessThreshold      int           `yaml:"success_threshold" json:"success_threshold"`
	BreakerTimeout        time.Duration `yaml:"breaker_timeout" json:"breaker_timeout"`
}

// StorageConfig contains backend defaults for storage contexts.
type StorageConfig struct {
	// FileRoot is the root directory for file-backend locations
	FileRoot string `yaml:"file_root" json:"file_root"`
	// S3Region is the default region for S3-backend locations
	S3Region string `yaml:"s3_region" json:"s3_region"`
	// GCSCredentialsFile optionally points at a service-account key file
	GCSCredentialsFile string `yaml:"gcs_credentials_file" json:"gcs_credentials_file"`
	// RequestTimeout bounds individual backend reads
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

// BooksConfig locates the descriptor directories for the registries.
type BooksConfig struct {
	// TMSDirectory holds tile-matrix-set JSON descriptors
	TMSDirectory string `yaml:"tms_directory" json:"tms_directory"`
	// StyleDirectory holds style JSON descriptors
	StyleDirectory string `yaml:"style_directory" json:"style_directory"`
	// Inspire enables INSPIRE-mode descriptor validation
	Inspire bool `yaml:"inspire" json:"inspire"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level       string `yaml:"level" json:"level"`
	Encoding    string `yaml:"encoding" json:"encoding"`
	Development bool   `yaml:"development" json:"development"`
}

// ObservabilityConfig configures metrics and tracing.
type ObservabilityConfig struct {
	EnableMetrics  bool    `yaml:"enable_metrics" json:"enable_metrics"`
	EnableTracing  bool    `yaml:"enable_tracing" json:"enable_tracing"`
	TraceExporter  string  `yaml:"trace_exporter" json:"trace_exporter"`
	SamplingRate   float64 `yaml:"sampling_rate" json:"sampling_rate"`
	ServiceName    string  `yaml:"service_name" json:"service_name"`
	ServiceVersion string  `yaml:"service_version" json:"service_version"`
}

// Default returns a Config with production defaults. The cache defaults
// (100 entries, 300 second validity) match the historical behaviour of the
// index cache this core descends from.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Workers:         runtime.NumCPU(),
			AdminAddr:       ":9100",
			ShutdownTimeout: 15 * time.Second,
		},
		Cache: CacheConfig{
			Size:            100,
			ValiditySeconds: 300,
		},
		HTTP: HTTPConfig{
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			EnableHTTP2:           true,
			DialTimeout:           10 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 10 * time.Second,
			RequestTimeout:        30 * time.Second,
			KeepAlive:             30 * time.Second,
			CircuitBreakerEnabled: true,
			FailureThreshold:      5,
			SuccessThreshold:      3,
			BreakerTimeout:        30 * time.Second,
		},
		Storage: StorageConfig{
			S3Region:       "us-east-1",
			RequestTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "json",
		},
		Observability: ObservabilityConfig{
			EnableMetrics:  true,
			EnableTracing:  false,
			TraceExporter:  "stdout",
			SamplingRate:   1.0,
			ServiceName:    "tileserv",
			ServiceVersion: "dev",
		},
	}
}

// Validate checks the configuration and fails fast on invalid values, so
// eviction and pooling behaviour is never undefined at runtime.
func (c *Config) Validate() error {
	if c.Server.Workers <= 0 {
		return errors.Newf(errors.ErrorTypeConfig, "server.workers must be positive, got %d", c.Server.Workers)
	}

	if c.Cache.Size < 0 {
		return errors.Newf(errors.ErrorTypeConfig, "cache.size must not be negative, got %d", c.Cache.Size)
	}

	if c.HTTP.RequestTimeout <= 0 {
		return errors.New(errors.ErrorTypeConfig, "http.request_timeout must be positive")
	}

	if c.HTTP.CircuitBreakerEnabled {
		if c.HTTP.FailureThreshold <= 0 {
			return errors.New(errors.ErrorTypeConfig, "http.failure_threshold must be positive when the circuit breaker is enabled")
		}
		if c.HTTP.SuccessThreshold <= 0 {
			return errors.New(errors.ErrorTypeConfig, "http.success_threshold must be positive when the circuit breaker is enabled")
		}
	}

	if c.Observability.SamplingRate < 0 || c.Observability.SamplingRate > 1 {
		return errors.Newf(errors.ErrorTypeConfig, "observability.sampling_rate must be in [0,1], got %g", c.Observability.SamplingRate)
	}

	return nil
}
