package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/multierr"
)

type Config struct {
	Host string
	Port int
	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`
	// postgres
	PostgresHost   string `toml:"postgres_host"`
	PostgresPort   string `toml:"postgres_port"`
	PostgresDBName string `toml:"postgres_db_name"`
	PostgresUser   string `toml:"postgres_user"`
	// redis
	RedisHost string `toml:"redis_host"`
	RedisPort string `toml:"redis_port"`
	// metrics
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`
	// http
	AllowedOrigins []string `toml:"allowed_origins"`
	SecureCookies  bool     `toml:"secure_cookies"`
	// domain
	LoginRateLimitAllowedPerMin int    `toml:"login_rate_limit_allowed_per_min"`
	SessionTTL                  string `toml:"session_ttl"`
	Timezone                    string `toml:"timezone"`
	AnalyticsCacheTTL           string `toml:"analytics_cache_ttl"`
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	var cfg *Config
	switch strings.ToLower(env) {
	case "dev", "development":
		cfg = t.Development
	case "prod", "production":
		cfg = t.Production
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
	if cfg == nil {
		return nil, fmt.Errorf("no config section for env: %s", env)
	}
	return cfg, nil
}

// Load reads the toml file at path and returns the section for env.
func Load(env, path string) (*Config, error) {
	var t Toml
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("decode config file %s: %w", path, err)
	}

	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var err error
	if c.Port <= 0 {
		err = multierr.Append(err, errors.New("port must be positive"))
	}
	if _, locErr := c.Location(); locErr != nil {
		err = multierr.Append(err, locErr)
	}
	if ttl, ttlErr := c.SessionTTLDuration(); ttlErr != nil {
		err = multierr.Append(err, ttlErr)
	} else if ttl <= 0 {
		err = multierr.Append(err, errors.New("session ttl must be positive"))
	}
	if _, cacheErr := c.AnalyticsCacheTTLDuration(); cacheErr != nil {
		err = multierr.Append(err, cacheErr)
	}
	return err
}

// Location returns the timezone all calendar computations run in.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c *Config) SessionTTLDuration() (time.Duration, error) {
	if c.SessionTTL == "" {
		return 7 * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(c.SessionTTL)
	if err != nil {
		return 0, fmt.Errorf("parse session ttl: %w", err)
	}
	return d, nil
}

func (c *Config) AnalyticsCacheTTLDuration() (time.Duration, error) {
	if c.AnalyticsCacheTTL == "" {
		return time.Minute, nil
	}
	d, err := time.ParseDuration(c.AnalyticsCacheTTL)
	if err != nil {
		return 0, fmt.Errorf("parse analytics cache ttl: %w", err)
	}
	return d, nil
}
