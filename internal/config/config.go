// Package config loads the bot configuration: the reusable core section plus
// storage, exchange, cache, event and scheduler settings.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coreconfig "github.com/m3rciful/moexbot/core/config"
	coredatabase "github.com/m3rciful/moexbot/core/database"
	"github.com/m3rciful/moexbot/internal/events"
	"github.com/m3rciful/moexbot/internal/store/s3snapshot"
)

// Storage drivers.
const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverS3       = "s3"
)

// StorageConfig selects where users are persisted.
type StorageConfig struct {
	Driver   string              `yaml:"driver" envconfig:"STORAGE_DRIVER"`
	Path     string              `yaml:"path" envconfig:"STORAGE_PATH"`
	Database coredatabase.Config `yaml:"database"`
	S3       s3snapshot.Config   `yaml:"s3"`
}

// MoexConfig configures the ISS client.
type MoexConfig struct {
	BaseURL        string `yaml:"base_url" envconfig:"MOEX_BASE_URL"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"MOEX_TIMEOUT_SECONDS"`
}

// RedisConfig enables the last-price cache.
type RedisConfig struct {
	Enabled         bool   `yaml:"enabled" envconfig:"REDIS_ENABLED"`
	Addr            string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password        string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB              int    `yaml:"db" envconfig:"REDIS_DB"`
	PoolSize        int    `yaml:"pool_size" envconfig:"REDIS_POOL_SIZE"`
	TLS             bool   `yaml:"tls" envconfig:"REDIS_TLS"`
	PriceTTLSeconds int    `yaml:"price_ttl_seconds" envconfig:"REDIS_PRICE_TTL_SECONDS"`
}

// KafkaConfig enables notification events.
type KafkaConfig struct {
	Enabled            bool `yaml:"enabled" envconfig:"KAFKA_ENABLED"`
	events.KafkaConfig `yaml:",inline"`
}

// SchedulerConfig configures the notification loop.
type SchedulerConfig struct {
	Timezone        string `yaml:"timezone" envconfig:"SCHEDULER_TIMEZONE"`
	IntervalSeconds int    `yaml:"interval_seconds" envconfig:"SCHEDULER_INTERVAL_SECONDS"`
	QueueSize       int    `yaml:"queue_size" envconfig:"SCHEDULER_QUEUE_SIZE"`
	Workers         int    `yaml:"workers" envconfig:"SCHEDULER_WORKERS"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Storage   StorageConfig   `yaml:"storage"`
	Moex      MoexConfig      `yaml:"moex"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	location *time.Location
}

// CoreConfig exposes the embedded core section.
func (c *Config) CoreConfig() *coreconfig.Config { return &c.Config }

// Location is the scheduler time zone.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

// MoexTimeout is the ISS request timeout.
func (c *Config) MoexTimeout() time.Duration {
	return time.Duration(c.Moex.TimeoutSeconds) * time.Second
}

// PriceTTL is how long cached prices stay valid.
func (c *Config) PriceTTL() time.Duration {
	return time.Duration(c.Redis.PriceTTLSeconds) * time.Second
}

// SchedulerInterval is the time between ticks.
func (c *Config) SchedulerInterval() time.Duration {
	return time.Duration(c.Scheduler.IntervalSeconds) * time.Second
}

// Load reads .env (if present), the YAML file and environment overrides.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates both sections and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}

	st := &cfg.Storage
	st.Driver = strings.ToLower(strings.TrimSpace(st.Driver))
	switch st.Driver {
	case "", DriverFile:
		st.Driver = DriverFile
		if st.Path == "" {
			st.Path = "data/users.json"
		}
	case DriverPostgres:
		if st.Database.Host == "" || st.Database.Name == "" {
			return fmt.Errorf("storage.database.host and storage.database.name are required for the postgres driver")
		}
		if st.Database.Port == "" {
			st.Database.Port = "5432"
		}
	case DriverS3:
		if st.S3.Bucket == "" || st.S3.Region == "" {
			return fmt.Errorf("storage.s3.bucket and storage.s3.region are required for the s3 driver")
		}
	default:
		return fmt.Errorf("invalid storage.driver %q; allowed: file, postgres, s3", st.Driver)
	}

	if cfg.Moex.TimeoutSeconds <= 0 {
		cfg.Moex.TimeoutSeconds = 10
	}
	if cfg.Moex.TimeoutSeconds > 120 {
		return fmt.Errorf("moex.timeout_seconds must be <= 120")
	}

	if cfg.Redis.Enabled {
		if cfg.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required when redis is enabled")
		}
		if cfg.Redis.PriceTTLSeconds <= 0 {
			cfg.Redis.PriceTTLSeconds = 30
		}
	}

	if cfg.Kafka.Enabled && (len(cfg.Kafka.Brokers) == 0 || cfg.Kafka.Topic == "") {
		return fmt.Errorf("kafka.brokers and kafka.topic are required when kafka is enabled")
	}

	sch := &cfg.Scheduler
	if sch.IntervalSeconds <= 0 {
		sch.IntervalSeconds = 60
	}
	if sch.QueueSize <= 0 {
		sch.QueueSize = 256
	}
	if sch.Workers <= 0 {
		sch.Workers = 2
	}
	tz := strings.TrimSpace(sch.Timezone)
	if tz == "" {
		tz = "Europe/Moscow"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("invalid scheduler.timezone %q: %w", sch.Timezone, err)
	}
	sch.Timezone = tz
	cfg.location = loc
	return nil
}
