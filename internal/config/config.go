package config

import "time"

// IngesterConfig is the root configuration for an ingester instance.
type IngesterConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	Feed     FeedConfig     `yaml:"feed"`
	API      APIConfig      `yaml:"api"`
	Redis    RedisConfig    `yaml:"redis"`
	Database DatabaseConfig `yaml:"database"`
	Writers  WritersConfig  `yaml:"writers"`
	Poller   PollerConfig   `yaml:"poller"`
	Rollover RolloverConfig `yaml:"rollover"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// InstanceConfig identifies this ingester.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// FeedConfig holds live ticker stream settings.
type FeedConfig struct {
	WSURL                 string        `yaml:"ws_url"`
	TLSInsecureSkipVerify bool          `yaml:"tls_insecure_skip_verify"`
	PingTimeout           time.Duration `yaml:"ping_timeout"`
	WriteTimeout          time.Duration `yaml:"write_timeout"`
	BufferSize            int           `yaml:"buffer_size"`
	ReconnectBaseDelay    time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay     time.Duration `yaml:"reconnect_max_delay"`
	ReconnectFactor       float64       `yaml:"reconnect_factor"`
	ReconnectJitter       float64       `yaml:"reconnect_jitter"`
}

// APIConfig holds exchange REST API settings.
type APIConfig struct {
	RestURL      string        `yaml:"rest_url"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// RedisConfig holds the ranking cache connection.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
	TopN      int    `yaml:"top_n"`
}

// DatabaseConfig holds the TimescaleDB connection for historical snapshots.
type DatabaseConfig struct {
	Timescale DBConfig `yaml:"timescale"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// WritersConfig holds historical writer settings.
type WritersConfig struct {
	BatchSize    int    `yaml:"batch_size"`
	HourlyTable  string `yaml:"hourly_table"`
	DailyTable   string `yaml:"daily_table"`
	CombinedView string `yaml:"combined_view"` // view over both tables, printed by -schema
}

// PollerConfig holds hourly snapshot poller settings.
type PollerConfig struct {
	HourlyEnabled *bool         `yaml:"hourly_enabled"`
	Timeout       time.Duration `yaml:"timeout"`
}

// RolloverConfig holds day rollover detection settings.
type RolloverConfig struct {
	CheckInterval time.Duration `yaml:"check_interval"`
	NearWindow    time.Duration `yaml:"near_window"`
	NearInterval  time.Duration `yaml:"near_interval"`
	MidWindow     time.Duration `yaml:"mid_window"`
	MidInterval   time.Duration `yaml:"mid_interval"`
	BaseInterval  time.Duration `yaml:"base_interval"`
}

// MetricsConfig holds Prometheus and health endpoint settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// HourlyPollingEnabled reports whether the hourly capture should run.
func (p PollerConfig) HourlyPollingEnabled() bool {
	return p.HourlyEnabled == nil || *p.HourlyEnabled
}
