package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"arenda/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Cache      CacheConfig      `yaml:"cache"`
	Throttle   ThrottleConfig   `yaml:"throttle"`
	Session    SessionConfig    `yaml:"session"`
	API        APIConfig        `yaml:"api"`
	Worker     WorkerConfig     `yaml:"worker"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// CacheConfig независимые TTL для трех семейств кэша списков.
type CacheConfig struct {
	AreaTTL    int `yaml:"area_ttl"`   // секунды
	IndexTTL   int `yaml:"index_ttl"`  // секунды
	DetailTTL  int `yaml:"detail_ttl"` // секунды
	PageTTL    int `yaml:"page_ttl"`   // секунды
	PageSize   int `yaml:"page_size"`
	HomeHouses int `yaml:"home_houses"`
}

type ThrottleConfig struct {
	MaxFailures int `yaml:"max_failures"`
	WindowSecs  int `yaml:"window_secs"`
}

type SessionConfig struct {
	TTLSecs int `yaml:"ttl_secs"`
}

type APIConfig struct {
	Port      int                `yaml:"port"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type WorkerConfig struct {
	PollIntervalSecs int     `yaml:"poll_interval_secs"`
	BatchSize        int     `yaml:"batch_size"`
	MaxRetries       int     `yaml:"max_retries"`
	InitialDelaySecs int     `yaml:"initial_delay_secs"`
	MaxDelaySecs     int     `yaml:"max_delay_secs"`
	BackoffFactor    float64 `yaml:"backoff_factor"`
	MaxBookingDays   int     `yaml:"max_booking_days"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

func Load(configPath string) (*Config, error) {
	// Загружаем .env файл если существует
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Cache.PageSize < 1 {
		return errors.New("cache page_size must be positive")
	}
	if c.Throttle.MaxFailures < 1 {
		return errors.New("throttle max_failures must be positive")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.Cache.AreaTTL == 0 {
		c.Cache.AreaTTL = 7200
	}
	if c.Cache.IndexTTL == 0 {
		c.Cache.IndexTTL = 7200
	}
	if c.Cache.DetailTTL == 0 {
		c.Cache.DetailTTL = 7200
	}
	if c.Cache.PageTTL == 0 {
		c.Cache.PageTTL = 7200
	}
	if c.Cache.PageSize == 0 {
		c.Cache.PageSize = models.DefaultPageCapacity
	}
	if c.Cache.HomeHouses == 0 {
		c.Cache.HomeHouses = models.HomePageMaxHouses
	}

	if c.Throttle.MaxFailures == 0 {
		c.Throttle.MaxFailures = models.DefaultLoginMaxFailures
	}
	if c.Throttle.WindowSecs == 0 {
		c.Throttle.WindowSecs = models.DefaultLoginLockoutSecs
	}

	if c.Session.TTLSecs == 0 {
		c.Session.TTLSecs = models.DefaultSessionTTL
	}

	if c.Worker.PollIntervalSecs == 0 {
		c.Worker.PollIntervalSecs = 2
	}
	if c.Worker.BatchSize == 0 {
		c.Worker.BatchSize = 20
	}
	if c.Worker.MaxRetries == 0 {
		c.Worker.MaxRetries = 5
	}
	if c.Worker.InitialDelaySecs == 0 {
		c.Worker.InitialDelaySecs = 2
	}
	if c.Worker.MaxDelaySecs == 0 {
		c.Worker.MaxDelaySecs = 60
	}
	if c.Worker.BackoffFactor == 0 {
		c.Worker.BackoffFactor = 2
	}
	if c.Worker.MaxBookingDays == 0 {
		c.Worker.MaxBookingDays = 365
	}
}

func (c CacheConfig) AreaTTLDuration() time.Duration { return time.Duration(c.AreaTTL) * time.Second }

func (c CacheConfig) IndexTTLDuration() time.Duration {
	return time.Duration(c.IndexTTL) * time.Second
}

func (c CacheConfig) DetailTTLDuration() time.Duration {
	return time.Duration(c.DetailTTL) * time.Second
}

func (c CacheConfig) PageTTLDuration() time.Duration { return time.Duration(c.PageTTL) * time.Second }

func (c ThrottleConfig) Window() time.Duration { return time.Duration(c.WindowSecs) * time.Second }

func (c SessionConfig) TTL() time.Duration { return time.Duration(c.TTLSecs) * time.Second }
