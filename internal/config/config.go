package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"leadpath/internal/notify"
)

type Config struct {
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Redis struct {
		Address        string `yaml:"address"`
		Password       string `yaml:"password"`
		DB             int    `yaml:"db"`
		DedupeTTLHours int    `yaml:"dedupe_ttl_hours"`
	} `yaml:"redis"`

	SMTP notify.SMTPConfig `yaml:"smtp"`

	SMS notify.SMSConfig `yaml:"sms"`

	Scheduler struct {
		// CronSpec drives the unlock and reminder ticks. Default: hourly
		// at minute 0.
		CronSpec string `yaml:"cron_spec"`
		// SupportCronSpec drives the daily struggling-user email pass.
		// Default: 13:00 UTC (8:00 ET).
		SupportCronSpec string `yaml:"support_cron_spec"`
		// SupportMinMisses is how many active days a lesson must sit
		// available before the support email fires.
		SupportMinMisses int `yaml:"support_min_misses"`
		// MaxConcurrentTicks bounds overlapping tick executions.
		MaxConcurrentTicks int `yaml:"max_concurrent_ticks"`
		// NotifyRatePerSecond paces gateway sends; 0 disables pacing.
		NotifyRatePerSecond float64 `yaml:"notify_rate_per_second"`
		NotifyBurst         int     `yaml:"notify_burst"`
	} `yaml:"scheduler"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/leadpath.db"
	}
	if cfg.Scheduler.CronSpec == "" {
		cfg.Scheduler.CronSpec = "0 * * * *"
	}
	if cfg.Scheduler.SupportCronSpec == "" {
		cfg.Scheduler.SupportCronSpec = "0 13 * * *"
	}
	if cfg.Scheduler.SupportMinMisses <= 0 {
		cfg.Scheduler.SupportMinMisses = 3
	}
	if cfg.Scheduler.MaxConcurrentTicks <= 0 {
		cfg.Scheduler.MaxConcurrentTicks = 3
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// DedupeTTL returns the reminder idempotency-key lifetime.
func (c *Config) DedupeTTL() time.Duration {
	if c.Redis.DedupeTTLHours <= 0 {
		return 48 * time.Hour
	}
	return time.Duration(c.Redis.DedupeTTLHours) * time.Hour
}
