package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"OptionSentinel/internal/model"
)

// Config holds all application configuration.
type Config struct {
	Pricing struct {
		RiskFreeRate float64 `yaml:"risk_free_rate"`
	} `yaml:"pricing"`
	Density struct {
		NumPoints       int     `yaml:"num_points"`
		SmoothingFactor float64 `yaml:"smoothing_factor"`
	} `yaml:"density"`
	DataSource struct {
		Kind            string             `yaml:"kind"` // file or mock
		ChainDir        string             `yaml:"chain_dir"`
		ExpirationIndex int                `yaml:"expiration_index"`
		MockSpots       map[string]float64 `yaml:"mock_spots"`
	} `yaml:"data_source"`
	Watchlist []string  `yaml:"watchlist"`
	Scanner   Scanner   `yaml:"scanner"`
	Portfolio Portfolio `yaml:"portfolio"`
	Schedule  struct {
		ScanCron      string `yaml:"scan_cron"`
		PortfolioCron string `yaml:"portfolio_cron"`
		RunOnStart    bool   `yaml:"run_on_start"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Log struct {
		Level    string `yaml:"level"`
		Format   string `yaml:"format"`
		Filename string `yaml:"filename"`
	} `yaml:"log"`
}

// Scanner holds the alert thresholds.
type Scanner struct {
	UnusualVolumeRatio float64 `yaml:"unusual_volume_ratio"`
	IVPercentileAlert  float64 `yaml:"iv_percentile_alert"`
	PutCallRatio       float64 `yaml:"put_call_ratio"`
	BearishSkew        float64 `yaml:"bearish_skew"`
	BullishSkew        float64 `yaml:"bullish_skew"`
	DirectionalProb    float64 `yaml:"directional_prob"`
	IVChange           float64 `yaml:"iv_change"`
	MinAlertScore      int     `yaml:"min_alert_score"`
}

// Portfolio lists the held positions.
type Portfolio struct {
	Positions []model.Position `yaml:"positions"`
}

// Load reads .env (if present), then the YAML file, then applies environment
// variable overrides and defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("RISK_FREE_RATE"); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RISK_FREE_RATE: %w", err)
		}
		c.Pricing.RiskFreeRate = rate
	}
	if v := os.Getenv("CHAIN_DIR"); v != "" {
		c.DataSource.ChainDir = v
	}
	if v := os.Getenv("DATA_SOURCE"); v != "" {
		c.DataSource.Kind = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("CRON_SCAN"); v != "" {
		c.Schedule.ScanCron = v
	}
	if v := os.Getenv("RUN_ON_START"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("RUN_ON_START: %w", err)
		}
		c.Schedule.RunOnStart = on
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Pricing.RiskFreeRate == 0 {
		c.Pricing.RiskFreeRate = 0.05
	}
	if c.Density.NumPoints == 0 {
		c.Density.NumPoints = 200
	}
	if c.Density.SmoothingFactor == 0 {
		c.Density.SmoothingFactor = 0.1
	}
	if c.DataSource.Kind == "" {
		c.DataSource.Kind = "file"
	}
	if c.DataSource.ChainDir == "" {
		c.DataSource.ChainDir = "data/chains"
	}
	if len(c.Watchlist) == 0 {
		c.Watchlist = []string{"SPY", "QQQ"}
	}

	s := &c.Scanner
	if s.UnusualVolumeRatio == 0 {
		s.UnusualVolumeRatio = 2.0
	}
	if s.IVPercentileAlert == 0 {
		s.IVPercentileAlert = 80
	}
	if s.PutCallRatio == 0 {
		s.PutCallRatio = 1.5
	}
	if s.BearishSkew == 0 {
		s.BearishSkew = -0.5
	}
	if s.BullishSkew == 0 {
		s.BullishSkew = 0.3
	}
	if s.DirectionalProb == 0 {
		s.DirectionalProb = 0.6
	}
	if s.IVChange == 0 {
		s.IVChange = 0.05
	}
	if s.MinAlertScore == 0 {
		s.MinAlertScore = 2
	}

	if c.Schedule.ScanCron == "" {
		c.Schedule.ScanCron = "0 */15 9-16 * * 1-5"
	}
	if c.Schedule.PortfolioCron == "" {
		c.Schedule.PortfolioCron = "0 0 17 * * 1-5"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/option_sentinel.db"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.Pricing.RiskFreeRate < -1 || c.Pricing.RiskFreeRate > 1 {
		return fmt.Errorf("pricing.risk_free_rate must be within [-1, 1], got %g", c.Pricing.RiskFreeRate)
	}
	if c.Density.NumPoints < 10 {
		return fmt.Errorf("density.num_points must be at least 10, got %d", c.Density.NumPoints)
	}
	if c.Density.SmoothingFactor < 0 {
		return fmt.Errorf("density.smoothing_factor must not be negative")
	}
	switch c.DataSource.Kind {
	case "file":
		if c.DataSource.ChainDir == "" {
			return fmt.Errorf("data_source.chain_dir is required for the file source")
		}
	case "mock":
		if len(c.DataSource.MockSpots) == 0 {
			return fmt.Errorf("data_source.mock_spots is required for the mock source")
		}
	default:
		return fmt.Errorf("data_source.kind must be file or mock, got %q", c.DataSource.Kind)
	}
	if c.DataSource.ExpirationIndex < 0 {
		return fmt.Errorf("data_source.expiration_index must not be negative")
	}
	if len(c.Watchlist) == 0 {
		return fmt.Errorf("watchlist must not be empty")
	}
	for i, p := range c.Portfolio.Positions {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("portfolio.positions[%d]: %w", i, err)
		}
	}
	return nil
}
