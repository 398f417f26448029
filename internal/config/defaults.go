package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultWSURL              = "wss://stream.binance.com:9443/ws/!ticker@arr"
	DefaultRestURL            = "https://api.binance.com"
	DefaultAPITimeout         = 30 * time.Second
	DefaultMaxRetries         = 3
	DefaultRetryBackoff       = 1 * time.Second
	DefaultPingTimeout        = 10 * time.Minute
	DefaultWriteTimeout       = 5 * time.Second
	DefaultFeedBufferSize     = 256
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 60 * time.Second
	DefaultReconnectFactor    = 2.0
	DefaultReconnectJitter    = 0.2
	DefaultRedisAddr          = "localhost:6379"
	DefaultKeyPrefix          = "market"
	DefaultTopN               = 20
	MaxTopN                   = 20
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 10
	DefaultMinConns           = 2
	DefaultBatchSize          = 500
	DefaultHourlyTable        = "ticker_data_full"
	DefaultDailyTable         = "ticker_data_daily"
	DefaultCombinedView       = "ticker_data_all"
	DefaultPollTimeout        = 30 * time.Second
	DefaultCheckInterval      = 1 * time.Hour
	DefaultNearWindow         = 10 * time.Minute
	DefaultNearInterval       = 60 * time.Second
	DefaultMidWindow          = 30 * time.Minute
	DefaultMidInterval        = 180 * time.Second
	DefaultBaseInterval       = 300 * time.Second
	DefaultMetricsPort        = 9090
	DefaultMetricsPath        = "/metrics"
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
)

func (c *IngesterConfig) applyDefaults() {
	// Feed defaults
	if c.Feed.WSURL == "" {
		c.Feed.WSURL = DefaultWSURL
	}
	if c.Feed.PingTimeout == 0 {
		c.Feed.PingTimeout = DefaultPingTimeout
	}
	if c.Feed.WriteTimeout == 0 {
		c.Feed.WriteTimeout = DefaultWriteTimeout
	}
	if c.Feed.BufferSize == 0 {
		c.Feed.BufferSize = DefaultFeedBufferSize
	}
	if c.Feed.ReconnectBaseDelay == 0 {
		c.Feed.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Feed.ReconnectMaxDelay == 0 {
		c.Feed.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Feed.ReconnectFactor == 0 {
		c.Feed.ReconnectFactor = DefaultReconnectFactor
	}
	if c.Feed.ReconnectJitter == 0 {
		c.Feed.ReconnectJitter = DefaultReconnectJitter
	}

	// API defaults
	if c.API.RestURL == "" {
		c.API.RestURL = DefaultRestURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}
	if c.API.RetryBackoff == 0 {
		c.API.RetryBackoff = DefaultRetryBackoff
	}

	// Redis defaults
	if c.Redis.Addr == "" {
		c.Redis.Addr = DefaultRedisAddr
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = DefaultKeyPrefix
	}
	if c.Redis.TopN == 0 {
		c.Redis.TopN = DefaultTopN
	}

	// Database defaults
	applyDBDefaults(&c.Database.Timescale)

	// Writers defaults
	if c.Writers.BatchSize == 0 {
		c.Writers.BatchSize = DefaultBatchSize
	}
	if c.Writers.HourlyTable == "" {
		c.Writers.HourlyTable = DefaultHourlyTable
	}
	if c.Writers.DailyTable == "" {
		c.Writers.DailyTable = DefaultDailyTable
	}
	if c.Writers.CombinedView == "" {
		c.Writers.CombinedView = DefaultCombinedView
	}

	// Poller defaults
	if c.Poller.Timeout == 0 {
		c.Poller.Timeout = DefaultPollTimeout
	}

	// Rollover defaults
	if c.Rollover.CheckInterval == 0 {
		c.Rollover.CheckInterval = DefaultCheckInterval
	}
	if c.Rollover.NearWindow == 0 {
		c.Rollover.NearWindow = DefaultNearWindow
	}
	if c.Rollover.NearInterval == 0 {
		c.Rollover.NearInterval = DefaultNearInterval
	}
	if c.Rollover.MidWindow == 0 {
		c.Rollover.MidWindow = DefaultMidWindow
	}
	if c.Rollover.MidInterval == 0 {
		c.Rollover.MidInterval = DefaultMidInterval
	}
	if c.Rollover.BaseInterval == 0 {
		c.Rollover.BaseInterval = DefaultBaseInterval
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
