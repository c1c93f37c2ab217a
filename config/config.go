package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ExpressVPN ExpressVPNConfig
	Postgres   PostgresConfig
	S3         S3Config
	Proxy      ProxyConfig
	Scheduler  SchedulerConfig
	Scraper    ScraperConfig
	Pricing    PricingConfig
	API        APIConfig
	DBPath     string
	LogLevel   string
	Sources    map[string]*SourceConfig
	Targets    []Target
	Lexicons   Lexicons
}

type ExpressVPNConfig struct {
	ActivationCode string
	AutoConnect    bool
	Region         string
}

type PostgresConfig struct {
	URL string
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

type ProxyConfig struct {
	URL string
}

type SchedulerConfig struct {
	Interval     time.Duration
	Cron         string
	StartupDelay time.Duration
}

type ScraperConfig struct {
	MinDelayMS       int
	MaxDelayMS       int
	FailureThreshold int
	MaxPages         int
	Headless         bool
}

type PricingConfig struct {
	CutoffRatio        float64
	ThresholdExcellent float64
	ThresholdGood      float64
	ThresholdFair      float64
	MinSamples         int
	BaselineYear       int
	DepreciationRate   float64
	SampleFloor        float64
	SampleCeiling      float64
}

type APIConfig struct {
	Addr string
}

type SourceConfig struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Handler     string `yaml:"handler"`
	BaseURL     string `yaml:"base_url"`
	RateLimitMS int    `yaml:"rate_limit_ms"`
	MaxPages    int    `yaml:"max_pages"`
	Enabled     bool   `yaml:"enabled"`
}

// Target is one (model, year window, price band) search cell.
type Target struct {
	Make       string  `yaml:"make"`
	Model      string  `yaml:"model"`
	SearchTerm string  `yaml:"search_term"`
	YearFrom   int     `yaml:"year_from"`
	YearTo     int     `yaml:"year_to"`
	MinPrice   float64 `yaml:"min_price"`
	MaxPrice   float64 `yaml:"max_price"`
}

type Lexicons struct {
	Severe   []string `yaml:"severe"`
	Cosmetic []string `yaml:"cosmetic"`
	Exclude  []string `yaml:"exclude"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ExpressVPN: ExpressVPNConfig{
			ActivationCode: os.Getenv("EXPRESSVPN_ACTIVATION_CODE"),
			AutoConnect:    os.Getenv("EXPRESSVPN_AUTOCONNECT") == "true",
			Region:         getEnv("EXPRESSVPN_REGION", "nl"),
		},
		Postgres: PostgresConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "eu-central-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		Proxy: ProxyConfig{
			URL: os.Getenv("PROXY_URL"),
		},
		Scheduler: SchedulerConfig{
			Cron:         os.Getenv("SCRAPE_CRON"),
			StartupDelay: getEnvDuration("SCRAPE_STARTUP_DELAY", 0),
		},
		Scraper: ScraperConfig{
			MinDelayMS:       getEnvInt("SCRAPE_MIN_DELAY_MS", 2000),
			MaxDelayMS:       getEnvInt("SCRAPE_MAX_DELAY_MS", 5000),
			FailureThreshold: getEnvInt("SCRAPE_FAILURE_THRESHOLD", 3),
			MaxPages:         getEnvInt("SCRAPE_MAX_PAGES", 5),
			Headless:         getEnv("SCRAPE_HEADLESS", "true") == "true",
		},
		Pricing: PricingConfig{
			CutoffRatio:        getEnvFloat("PRICING_CUTOFF_RATIO", 0.75),
			ThresholdExcellent: getEnvFloat("PRICING_THRESHOLD_EXCELLENT", 50),
			ThresholdGood:      getEnvFloat("PRICING_THRESHOLD_GOOD", 30),
			ThresholdFair:      getEnvFloat("PRICING_THRESHOLD_FAIR", 15),
			MinSamples:         getEnvInt("PRICING_MIN_SAMPLES", 3),
			BaselineYear:       getEnvInt("PRICING_BASELINE_YEAR", 2020),
			DepreciationRate:   getEnvFloat("PRICING_DEPRECIATION_RATE", 0.9),
			SampleFloor:        getEnvFloat("PRICING_SAMPLE_FLOOR", 1000),
			SampleCeiling:      getEnvFloat("PRICING_SAMPLE_CEILING", 25000),
		},
		API: APIConfig{
			Addr: getEnv("API_ADDR", ":8090"),
		},
		DBPath:   getEnv("DB_PATH", "schadescout.db"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Sources:  make(map[string]*SourceConfig),
	}

	if interval := os.Getenv("SCRAPE_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	if err := cfg.loadSourceConfigs(); err != nil {
		return nil, err
	}
	if err := cfg.loadTargets(); err != nil {
		return nil, err
	}
	if err := cfg.loadLexicons(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadSourceConfigs() error {
	configDir := "config/sources"
	entries, err := os.ReadDir(configDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(configDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var source SourceConfig
		if err := yaml.Unmarshal(data, &source); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		c.Sources[source.ID] = &source
	}

	return nil
}

func (c *Config) loadTargets() error {
	data, err := os.ReadFile("config/targets.yaml")
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var doc struct {
		Targets []Target `yaml:"targets"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse targets.yaml: %w", err)
	}
	c.Targets = doc.Targets
	return nil
}

func (c *Config) loadLexicons() error {
	data, err := os.ReadFile("config/lexicons.yaml")
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := yaml.Unmarshal(data, &c.Lexicons); err != nil {
		return fmt.Errorf("parse lexicons.yaml: %w", err)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
