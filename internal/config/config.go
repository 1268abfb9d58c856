package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kellyfolio/portfolio-engine/internal/stats"
)

type Provider struct {
	BaseURL            string `yaml:"base_url"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
	DailyCap           int    `yaml:"daily_cap"`
	TimeoutSeconds     int    `yaml:"timeout_seconds"`
	MaxRetries         int    `yaml:"max_retries"`
	BackoffBaseMs      int    `yaml:"backoff_base_ms"`
}

type Store struct {
	Backend      string `yaml:"backend"` // json | sqlite
	DataDir      string `yaml:"data_dir"`
	SQLitePath   string `yaml:"sqlite_path"`
	SettingsPath string `yaml:"settings_path"`
}

type Schedule struct {
	DailyRefresh      string `yaml:"daily_refresh"`      // cron spec
	WeeklyCorrelation string `yaml:"weekly_correlation"` // cron spec
}

type Synthetic struct {
	Volatility     float64 `yaml:"volatility"`
	ExpectedReturn float64 `yaml:"expected_return"`
}

type Root struct {
	Symbols         []string  `yaml:"symbols"`
	Years           int       `yaml:"years"`
	RiskFreeRate    float64   `yaml:"risk_free_rate"`
	KellyMultiplier float64   `yaml:"kelly_multiplier"`
	HTTPAddr        string    `yaml:"http_addr"`
	Provider        Provider  `yaml:"provider"`
	Store           Store     `yaml:"store"`
	Schedule        Schedule  `yaml:"schedule"`
	Synthetic       Synthetic `yaml:"synthetic"`

	// Estimator fields left at zero fall back to stats defaults.
	Estimator stats.EstimatorConfig `yaml:"estimator"`
}

func Load(path string) (Root, error) {
	var c Root
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, err
	}

	if c.Years == 0 {
		c.Years = 5
	}
	if c.RiskFreeRate == 0 {
		c.RiskFreeRate = 0.04
	}
	if c.KellyMultiplier == 0 {
		c.KellyMultiplier = 0.5
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8090"
	}

	if c.Store.Backend == "" {
		c.Store.Backend = "json"
	}
	if c.Store.Backend != "json" && c.Store.Backend != "sqlite" {
		return c, fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.DataDir == "" {
		c.Store.DataDir = "data"
	}
	if c.Store.SQLitePath == "" {
		c.Store.SQLitePath = "data/prices.db"
	}
	if c.Store.SettingsPath == "" {
		c.Store.SettingsPath = "data/stock_settings.json"
	}

	if c.Schedule.DailyRefresh == "" {
		c.Schedule.DailyRefresh = "0 30 21 * * 1-5" // 21:30 UTC weekdays, after US close
	}
	if c.Schedule.WeeklyCorrelation == "" {
		c.Schedule.WeeklyCorrelation = "0 0 22 * * 5" // Friday 22:00 UTC
	}

	return c, nil
}
