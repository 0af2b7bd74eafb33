package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"clinic/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	LockBackendRedis  = "redis"
	LockBackendSQLite = "sqlite"
	LockBackendMemory = "memory"
)

type Config struct {
	App         AppConfig         `yaml:"app"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	API         APIConfig         `yaml:"api"`
	Auth        AuthConfig        `yaml:"auth"`
	Booking     BookingConfig     `yaml:"booking"`
	Backup      BackupConfig      `yaml:"backup"`
	Monitoring  MonitoringConfig  `yaml:"monitoring"`
	Logging     LoggingConfig     `yaml:"logging"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
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

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type APIGRPCConfig struct {
	Enabled    bool `yaml:"enabled"`
	Port       int  `yaml:"port"`
	Reflection bool `yaml:"reflection"`
}

// APIRateLimitConfig ограничивает частоту запросов одного клиента (по IP).
type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type AuthConfig struct {
	TokenTTL           time.Duration `yaml:"token_ttl"`
	BcryptCost         int           `yaml:"bcrypt_cost"`
	RegisterRateLimit  int           `yaml:"register_rate_limit"`
	RegisterRateWindow time.Duration `yaml:"register_rate_window"`
}

type BookingConfig struct {
	LockBackend string        `yaml:"lock_backend"`
	LockTTL     time.Duration `yaml:"lock_ttl"`
	// LockWait 0 means fail fast with a contention error.
	LockWait          time.Duration `yaml:"lock_wait"`
	ReserveRateLimit  int           `yaml:"reserve_rate_limit"`
	ReserveRateWindow time.Duration `yaml:"reserve_rate_window"`
}

type BackupConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	RetentionDays int           `yaml:"retention_days"`
	StoragePath   string        `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type MaintenanceConfig struct {
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

func Load(configPath string) (*Config, error) {
	// Загружаем .env файл если существует
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

// Parse разбирает YAML с подстановкой переменных окружения.
func Parse(data []byte) (*Config, error) {
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

	switch c.Booking.LockBackend {
	case LockBackendRedis:
		if c.Redis.Address == "" {
			return errors.New("redis address is required for the redis lock backend")
		}
	case LockBackendSQLite, LockBackendMemory:
	default:
		return fmt.Errorf("unknown lock backend %q", c.Booking.LockBackend)
	}

	if c.Booking.LockTTL <= 0 {
		return errors.New("booking lock_ttl must be positive")
	}
	if c.Booking.LockWait < 0 {
		return errors.New("booking lock_wait must not be negative")
	}
	if c.Booking.LockWait >= c.Booking.LockTTL {
		return fmt.Errorf("booking lock_wait (%s) must be shorter than lock_ttl (%s)", c.Booking.LockWait, c.Booking.LockTTL)
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth token_ttl must be positive")
	}
	if c.Backup.Enabled && c.Backup.StoragePath == "" {
		return errors.New("backup storage path is required when backups are enabled")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "clinic"
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.API.HTTP.ReadTimeout == 0 {
		c.API.HTTP.ReadTimeout = 10 * time.Second
	}
	if c.API.HTTP.WriteTimeout == 0 {
		c.API.HTTP.WriteTimeout = 15 * time.Second
	}
	if c.API.HTTP.ShutdownTimeout == 0 {
		c.API.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	// Auth defaults
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = models.DefaultTokenTTL
	}
	if c.Auth.RegisterRateLimit == 0 {
		c.Auth.RegisterRateLimit = models.RegisterRateLimit
	}
	if c.Auth.RegisterRateWindow == 0 {
		c.Auth.RegisterRateWindow = models.RegisterRateWindow
	}

	// Booking defaults
	if c.Booking.LockBackend == "" {
		if c.Redis.Address != "" {
			c.Booking.LockBackend = LockBackendRedis
		} else {
			c.Booking.LockBackend = LockBackendSQLite
		}
	}
	if c.Booking.LockTTL == 0 {
		c.Booking.LockTTL = models.DefaultLockTTL
	}
	if c.Booking.ReserveRateLimit == 0 {
		c.Booking.ReserveRateLimit = models.ReserveRateLimit
	}
	if c.Booking.ReserveRateWindow == 0 {
		c.Booking.ReserveRateWindow = models.ReserveRateWindow
	}

	if c.Backup.Interval == 0 {
		c.Backup.Interval = 24 * time.Hour
	}
	if c.Maintenance.SweepInterval == 0 {
		c.Maintenance.SweepInterval = 5 * time.Minute
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}
