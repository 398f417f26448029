package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Validate checks that all required fields are set and values are valid.
func (c *IngesterConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if !strings.HasPrefix(c.Feed.WSURL, "ws://") && !strings.HasPrefix(c.Feed.WSURL, "wss://") {
		return fmt.Errorf("feed.ws_url must be a ws:// or wss:// url, got %q", c.Feed.WSURL)
	}
	if c.Feed.BufferSize < 1 {
		return errors.New("feed.buffer_size must be >= 1")
	}
	if c.Feed.ReconnectBaseDelay > c.Feed.ReconnectMaxDelay {
		return fmt.Errorf("feed.reconnect_base_delay (%v) cannot exceed reconnect_max_delay (%v)",
			c.Feed.ReconnectBaseDelay, c.Feed.ReconnectMaxDelay)
	}
	if c.Feed.ReconnectJitter < 0 || c.Feed.ReconnectJitter > 1 {
		return fmt.Errorf("feed.reconnect_jitter must be between 0 and 1, got %v", c.Feed.ReconnectJitter)
	}

	if c.API.RestURL == "" {
		return errors.New("api.rest_url is required")
	}

	if c.Redis.Addr == "" {
		return errors.New("redis.addr is required")
	}
	if c.Redis.TopN < 1 || c.Redis.TopN > MaxTopN {
		return fmt.Errorf("redis.top_n must be between 1 and %d, got %d", MaxTopN, c.Redis.TopN)
	}

	if err := c.Database.Timescale.validate("database.timescale"); err != nil {
		return err
	}

	if c.Writers.BatchSize < 1 {
		return errors.New("writers.batch_size must be >= 1")
	}
	if !tableNamePattern.MatchString(c.Writers.HourlyTable) {
		return fmt.Errorf("writers.hourly_table %q is not a valid table name", c.Writers.HourlyTable)
	}
	if !tableNamePattern.MatchString(c.Writers.DailyTable) {
		return fmt.Errorf("writers.daily_table %q is not a valid table name", c.Writers.DailyTable)
	}
	if !tableNamePattern.MatchString(c.Writers.CombinedView) {
		return fmt.Errorf("writers.combined_view %q is not a valid view name", c.Writers.CombinedView)
	}
	if c.Writers.HourlyTable == c.Writers.DailyTable {
		return errors.New("writers.hourly_table and writers.daily_table must differ")
	}

	if c.Rollover.NearWindow > c.Rollover.MidWindow {
		return fmt.Errorf("rollover.near_window (%v) cannot exceed mid_window (%v)",
			c.Rollover.NearWindow, c.Rollover.MidWindow)
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
