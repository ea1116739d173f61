// Package config loads the YAML configuration file and applies defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	// Addr is the HTTP listen address for the admin API.
	Addr string `yaml:"addr"`
	// DBPath is the SQLite database file path.
	DBPath string `yaml:"db_path"`
	// BaseURL is the marketplace root, e.g. "https://marketplace.example.com".
	BaseURL string `yaml:"base_url"`

	Fetch    FetchConfig    `yaml:"fetch"`
	Queue    QueueConfig    `yaml:"queue"`
	Mail     MailConfig     `yaml:"mail"`
	Tracking TrackingConfig `yaml:"tracking"`

	// Schedules are the cron entries the scheduler registers at startup.
	Schedules []ScheduleConfig `yaml:"schedules"`
}

// FetchConfig mirrors the fetcher's pacing knobs.
type FetchConfig struct {
	DelayMs        int   `yaml:"delay_ms"`
	MaxRetries     int   `yaml:"max_retries"`
	MaxConcurrency int64 `yaml:"max_concurrency"`
	TimeoutSec     int   `yaml:"timeout_sec"`
}

// QueueConfig configures job retry policy and worker polling.
type QueueConfig struct {
	MaxAttempts     int `yaml:"max_attempts"`
	RetryBackoffSec int `yaml:"retry_backoff_sec"`
	PollIntervalSec int `yaml:"poll_interval_sec"`
}

// MailConfig configures the daily digest sender.
type MailConfig struct {
	SMTPHost   string   `yaml:"smtp_host"`
	SMTPPort   int      `yaml:"smtp_port"`
	SMTPUser   string   `yaml:"smtp_user"`
	SMTPPass   string   `yaml:"smtp_pass"`
	FromAddr   string   `yaml:"from_address"`
	Recipients []string `yaml:"recipients"`
}

// TrackingConfig seeds the tracked-entity registry.
type TrackingConfig struct {
	Apps       []string `yaml:"apps"`
	Keywords   []string `yaml:"keywords"`
	Categories []string `yaml:"categories"`
}

// ScheduleConfig is one cron entry.
type ScheduleConfig struct {
	Name    string `yaml:"name"`
	Cron    string `yaml:"cron"`
	JobType string `yaml:"job_type"`
}

// Default returns a Config with production defaults and the standard
// schedule table.
func Default() *Config {
	return &Config{
		Addr:   ":8090",
		DBPath: "data/appmetry.db",
		Fetch: FetchConfig{
			DelayMs:        2000,
			MaxRetries:     3,
			MaxConcurrency: 2,
			TimeoutSec:     30,
		},
		Queue: QueueConfig{
			MaxAttempts:     3,
			RetryBackoffSec: 30,
			PollIntervalSec: 5,
		},
		Schedules: []ScheduleConfig{
			{Name: "daily_apps", Cron: "0 3 * * *", JobType: "app_details"},
			{Name: "daily_categories", Cron: "30 3 * * *", JobType: "category"},
			{Name: "reviews_12h", Cron: "0 */12 * * *", JobType: "reviews"},
			{Name: "daily_keywords", Cron: "0 4 * * *", JobType: "keyword_search"},
			{Name: "featured_12h", Cron: "30 */12 * * *", JobType: "featured"},
			{Name: "daily_similar", Cron: "0 5 * * *", JobType: "similar_apps"},
			{Name: "daily_metrics", Cron: "0 6 * * *", JobType: "compute_metrics"},
			{Name: "daily_digest", Cron: "0 7 * * *", JobType: "daily_digest"},
		},
	}
}

func (c *Config) defaults() {
	d := Default()
	if c.Addr == "" {
		c.Addr = d.Addr
	}
	if c.DBPath == "" {
		c.DBPath = d.DBPath
	}
	if c.Fetch.DelayMs <= 0 {
		c.Fetch.DelayMs = d.Fetch.DelayMs
	}
	if c.Fetch.MaxRetries <= 0 {
		c.Fetch.MaxRetries = d.Fetch.MaxRetries
	}
	if c.Fetch.MaxConcurrency <= 0 {
		c.Fetch.MaxConcurrency = d.Fetch.MaxConcurrency
	}
	if c.Fetch.TimeoutSec <= 0 {
		c.Fetch.TimeoutSec = d.Fetch.TimeoutSec
	}
	if c.Queue.MaxAttempts <= 0 {
		c.Queue.MaxAttempts = d.Queue.MaxAttempts
	}
	if c.Queue.RetryBackoffSec <= 0 {
		c.Queue.RetryBackoffSec = d.Queue.RetryBackoffSec
	}
	if c.Queue.PollIntervalSec <= 0 {
		c.Queue.PollIntervalSec = d.Queue.PollIntervalSec
	}
	if c.Mail.SMTPPort == 0 {
		c.Mail.SMTPPort = 587
	}
	if len(c.Schedules) == 0 {
		c.Schedules = d.Schedules
	}
}

// Load reads a YAML config file and applies defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		cfg.defaults()
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.defaults()
	return &cfg, nil
}

// FetchDelay returns the fetch delay as a Duration.
func (c *Config) FetchDelay() time.Duration {
	return time.Duration(c.Fetch.DelayMs) * time.Millisecond
}

// FetchTimeout returns the fetch timeout as a Duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSec) * time.Second
}

// RetryBackoff returns the queue retry backoff as a Duration.
func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.Queue.RetryBackoffSec) * time.Second
}

// PollInterval returns the worker poll interval as a Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Queue.PollIntervalSec) * time.Second
}
