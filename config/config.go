// Package config loads the stream client's configuration from a YAML
// file and environment variables, producing a stream.Config ready to
// pass to stream.New. Grounded on internal/config/config.go's
// viper-based Load/bindEnvVars/setDefaults/Validate shape, trimmed to
// this domain's field list (no Ethereum/Binance/Uniswap/Arbitrage
// sections) and re-pointed at the ARB_ prefix's natural successor,
// KSTREAM_.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/marketfeed/kstream/breaker"
	"github.com/marketfeed/kstream/sequence"
	"github.com/marketfeed/kstream/stream"
	"github.com/marketfeed/kstream/transport"
)

// File mirrors stream.Config's binding field list in a mapstructure-
// tagged shape viper can unmarshal into, plus an App section for the
// surrounding process's own identity/log-level settings (not part of
// stream.Config, consumed by the caller directly).
type File struct {
	App       AppConfig       `mapstructure:"app"`
	Stream    StreamConfig    `mapstructure:"stream"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds the surrounding process's own identity settings.
type AppConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
}

// StreamConfig is the mapstructure-tagged mirror of stream.Config's
// binding field list.
type StreamConfig struct {
	URL       string `mapstructure:"url"`
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	UserAgent string `mapstructure:"user_agent"`

	QueueEnabled  bool `mapstructure:"queue_enabled"`
	QueueCapacity int  `mapstructure:"queue_capacity"`

	ChecksumValidation bool `mapstructure:"checksum_validation"`

	ReconnectAttempts int           `mapstructure:"reconnect_attempts"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay"`

	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	HeartbeatIdle  time.Duration `mapstructure:"heartbeat_idle"`

	TLSVerifyPeer bool `mapstructure:"tls_verify_peer"`

	RateLimiterEnabled bool    `mapstructure:"rate_limiter_enabled"`
	RateLimiterRate    float64 `mapstructure:"rate_limiter_rate"`
	RateLimiterBurst   float64 `mapstructure:"rate_limiter_burst"`

	BreakerFailureThreshold uint32        `mapstructure:"breaker_failure_threshold"`
	BreakerSuccessThreshold uint32        `mapstructure:"breaker_success_threshold"`
	BreakerFailureWindow    time.Duration `mapstructure:"breaker_failure_window"`
	BreakerMinOpenTime      time.Duration `mapstructure:"breaker_min_open_time"`

	GapTolerance  int64 `mapstructure:"gap_tolerance"`
	TrackReorders bool  `mapstructure:"track_reorders"`
}

// TelemetryConfig holds observability settings, consumed by the
// telemetry package rather than stream.Config.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	PrometheusPort int    `mapstructure:"prometheus_port"`

	// TraceExporter selects the span exporter: "console", "zipkin",
	// "otlp", or "" to leave tracing disabled even when metrics are on.
	TraceExporter string `mapstructure:"trace_exporter"`
}

// Load reads configuration from configPath (or ./config.yaml if empty)
// and environment variables prefixed KSTREAM_, falling back to the
// defaults set below wherever neither supplies a value.
func Load(configPath string) (*File, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("KSTREAM")
	v.AutomaticEnv()
	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var f File
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &f, nil
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("app.name", "KSTREAM_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.log_level", "KSTREAM_LOG_LEVEL", "LOG_LEVEL")

	v.BindEnv("stream.url", "KSTREAM_URL")
	v.BindEnv("stream.api_key", "KSTREAM_API_KEY", "API_KEY")
	v.BindEnv("stream.api_secret", "KSTREAM_API_SECRET", "API_SECRET")

	v.BindEnv("telemetry.enabled", "KSTREAM_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "KSTREAM_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "KSTREAM_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("telemetry.trace_exporter", "KSTREAM_TRACE_EXPORTER")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "kstream")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("stream.url", "wss://ws.example.com")
	v.SetDefault("stream.queue_enabled", true)
	v.SetDefault("stream.queue_capacity", 1024)
	v.SetDefault("stream.checksum_validation", true)
	v.SetDefault("stream.reconnect_attempts", 10)
	v.SetDefault("stream.reconnect_delay", "1s")
	v.SetDefault("stream.connect_timeout", "10s")
	v.SetDefault("stream.read_timeout", "30s")
	v.SetDefault("stream.write_timeout", "10s")
	v.SetDefault("stream.heartbeat_idle", "60s")
	v.SetDefault("stream.breaker_failure_threshold", 5)
	v.SetDefault("stream.breaker_success_threshold", 1)
	v.SetDefault("stream.breaker_failure_window", "60s")
	v.SetDefault("stream.breaker_min_open_time", "30s")
	v.SetDefault("stream.gap_tolerance", 1)
	v.SetDefault("stream.tls_verify_peer", true)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "kstream")
	v.SetDefault("telemetry.prometheus_port", 9090)
	v.SetDefault("telemetry.trace_exporter", "console")
}

// Validate checks the minimal set of fields the client cannot run
// without.
func (f *File) Validate() error {
	if f.Stream.URL == "" {
		return fmt.Errorf("stream.url is required")
	}
	if f.Stream.QueueEnabled && f.Stream.QueueCapacity <= 0 {
		return fmt.Errorf("stream.queue_capacity must be positive when queueing is enabled")
	}
	return nil
}

// StreamConfig builds a stream.Config from the loaded file, starting
// from stream.DefaultConfig and overriding it with the file's fields.
// Backoff is left nil so the runtime derives it from the legacy
// reconnect fields; gap detection is built from the file's own fields.
func (f *File) StreamConfig() stream.Config {
	cfg := stream.DefaultConfig(f.Stream.URL)
	cfg.APIKey = f.Stream.APIKey
	cfg.APISecret = f.Stream.APISecret
	cfg.UserAgent = f.Stream.UserAgent
	cfg.QueueEnabled = f.Stream.QueueEnabled
	cfg.QueueCapacity = f.Stream.QueueCapacity
	cfg.ChecksumValidation = f.Stream.ChecksumValidation
	cfg.ReconnectAttempts = f.Stream.ReconnectAttempts
	cfg.ReconnectDelay = f.Stream.ReconnectDelay
	cfg.Backoff = nil // forces resolveBackoff to rebuild from the legacy fields above
	cfg.GapDetection = sequence.Config{
		GapTolerance:  f.Stream.GapTolerance,
		TrackReorders: f.Stream.TrackReorders,
	}
	cfg.ConnectTimeout = f.Stream.ConnectTimeout
	cfg.ReadTimeout = f.Stream.ReadTimeout
	cfg.WriteTimeout = f.Stream.WriteTimeout
	cfg.HeartbeatIdle = f.Stream.HeartbeatIdle
	cfg.TLS = transport.TLSConfig{VerifyPeer: f.Stream.TLSVerifyPeer}
	cfg.RateLimiterEnabled = f.Stream.RateLimiterEnabled
	cfg.RateLimiterRate = f.Stream.RateLimiterRate
	cfg.RateLimiterBurst = f.Stream.RateLimiterBurst
	cfg.Breaker = breaker.Config{
		Name:             "stream",
		FailureThreshold: f.Stream.BreakerFailureThreshold,
		SuccessThreshold: f.Stream.BreakerSuccessThreshold,
		FailureWindow:    f.Stream.BreakerFailureWindow,
		MinOpenTime:      f.Stream.BreakerMinOpenTime,
	}
	return cfg
}
