package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LinkedIn struct {
		BaseURL        string `yaml:"base_url"`
		ProfilePattern string `yaml:"profile_pattern"`
	} `yaml:"linkedin"`
	Browser struct {
		Headless    bool   `yaml:"headless"`
		Bin         string `yaml:"bin"`
		UserDataDir string `yaml:"user_data_dir"`
		ControlURL  string `yaml:"control_url"`
		CookiesPath string `yaml:"cookies_path"`
	} `yaml:"browser"`
	Campaign struct {
		DefaultDelayMinutes float64 `yaml:"default_delay_minutes"`
	} `yaml:"campaign"`
	Automation struct {
		StepTimeout   time.Duration `yaml:"step_timeout"`
		ScrapeTimeout time.Duration `yaml:"scrape_timeout"`
		ScreenshotDir string        `yaml:"screenshot_dir"`
	} `yaml:"automation"`
	Tracking struct {
		TrackVisits bool `yaml:"track_visits"`
	} `yaml:"tracking"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

func Load(path string) (*Config, error) {
	_ = godotenv.Load() // optional
	cfg := defaultConfig()
	if b, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	applyEnvOverrides(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the compiled-in configuration without reading any file or env.
func Default() *Config {
	cfg := defaultConfig()
	return &cfg
}

func defaultConfig() Config {
	var cfg Config
	cfg.LinkedIn.BaseURL = "https://www.linkedin.com/"
	cfg.LinkedIn.ProfilePattern = "linkedin.com/in/"
	cfg.Browser.Headless = false
	cfg.Browser.UserDataDir = ".cache/chrome"
	cfg.Browser.CookiesPath = ".cache/cookies.json"
	cfg.Campaign.DefaultDelayMinutes = 1
	cfg.Automation.StepTimeout = 10 * time.Second
	cfg.Automation.ScrapeTimeout = 2 * time.Second
	cfg.Tracking.TrackVisits = false
	cfg.Server.Addr = "127.0.0.1:8787"
	cfg.Database.Path = "outreach.db"
	cfg.Logging.Level = "info"
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OUTREACH_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("OUTREACH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("OUTREACH_HEADLESS"); v == "1" || v == "true" {
		cfg.Browser.Headless = true
	}
	if v := os.Getenv("OUTREACH_CONTROL_URL"); v != "" {
		cfg.Browser.ControlURL = v
	}
	if v := os.Getenv("OUTREACH_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("OUTREACH_TRACK_VISITS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tracking.TrackVisits = b
		}
	}
}

func validate(cfg *Config) error {
	if cfg.LinkedIn.BaseURL == "" {
		return errors.New("linkedin.base_url is required")
	}
	if cfg.LinkedIn.ProfilePattern == "" {
		return errors.New("linkedin.profile_pattern is required")
	}
	if cfg.Campaign.DefaultDelayMinutes <= 0 {
		return errors.New("campaign.default_delay_minutes must be > 0")
	}
	if cfg.Automation.StepTimeout <= 0 {
		return errors.New("automation.step_timeout must be > 0")
	}
	if cfg.Automation.ScrapeTimeout <= 0 {
		return errors.New("automation.scrape_timeout must be > 0")
	}
	if cfg.Database.Path == "" {
		return errors.New("database.path is required")
	}
	if cfg.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	return nil
}
