package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NewRelic NewRelicConfig
	Engine   EngineConfig
	Log      LogConfig
	Kafka    KafkaConfig
	Storage  StorageConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port                   string
	ReadTimeout            time.Duration
	WriteTimeout           time.Duration
	ShutdownTimeout        time.Duration
	AllowedOrigins         []string
	AdminRequestsPerMinute int // Per actor
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	// Driver selects the repository backend: "postgres" or "memory".
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// EngineConfig holds booking and commission rules.
type EngineConfig struct {
	BaseCommissionRate float64
	StatementDueDay    int
	SweepLockTTL       time.Duration
	SweepLockWait      time.Duration
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level  string
	Format string // json or console
}

// KafkaConfig holds the offer event consumer configuration.
type KafkaConfig struct {
	Enabled     bool
	Brokers     []string
	GroupID     string
	OffersTopic string
}

// StorageConfig holds payment slip storage configuration.
type StorageConfig struct {
	Region    string
	Bucket    string
	CDNDomain string
}

// Load loads configuration from defaults, an optional config.yaml and environment variables.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:                   v.GetString("SERVER_PORT"),
			ReadTimeout:            v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout:           v.GetDuration("SERVER_WRITE_TIMEOUT"),
			ShutdownTimeout:        v.GetDuration("SERVER_SHUTDOWN_TIMEOUT"),
			AllowedOrigins:         splitList(v.GetString("SERVER_ALLOWED_ORIGINS")),
			AdminRequestsPerMinute: v.GetInt("SERVER_ADMIN_REQUESTS_PER_MINUTE"),
		},
		Database: DatabaseConfig{
			Driver:   v.GetString("STORAGE_DRIVER"),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("REDIS_ENABLED"),
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		NewRelic: NewRelicConfig{
			AppName:    v.GetString("NEW_RELIC_APP_NAME"),
			LicenseKey: v.GetString("NEW_RELIC_LICENSE_KEY"),
			Enabled:    v.GetBool("NEW_RELIC_ENABLED"),
		},
		Engine: EngineConfig{
			BaseCommissionRate: v.GetFloat64("ENGINE_BASE_COMMISSION_RATE"),
			StatementDueDay:    v.GetInt("ENGINE_STATEMENT_DUE_DAY"),
			SweepLockTTL:       v.GetDuration("ENGINE_SWEEP_LOCK_TTL"),
			SweepLockWait:      v.GetDuration("ENGINE_SWEEP_LOCK_WAIT"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Kafka: KafkaConfig{
			Enabled:     v.GetBool("KAFKA_ENABLED"),
			Brokers:     splitList(v.GetString("KAFKA_BROKERS")),
			GroupID:     v.GetString("KAFKA_GROUP_ID"),
			OffersTopic: v.GetString("KAFKA_OFFERS_TOPIC"),
		},
		Storage: StorageConfig{
			Region:    v.GetString("S3_REGION"),
			Bucket:    v.GetString("S3_BUCKET"),
			CDNDomain: v.GetString("S3_CDN_DOMAIN"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_READ_TIMEOUT", 10*time.Second)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 30*time.Second)
	v.SetDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", "*")
	v.SetDefault("SERVER_ADMIN_REQUESTS_PER_MINUTE", 60)

	v.SetDefault("STORAGE_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "driverbook")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("NEW_RELIC_APP_NAME", "driverbook")
	v.SetDefault("NEW_RELIC_LICENSE_KEY", "")
	v.SetDefault("NEW_RELIC_ENABLED", false)

	v.SetDefault("ENGINE_BASE_COMMISSION_RATE", 0.08)
	v.SetDefault("ENGINE_STATEMENT_DUE_DAY", 5)
	v.SetDefault("ENGINE_SWEEP_LOCK_TTL", 2*time.Minute)
	v.SetDefault("ENGINE_SWEEP_LOCK_WAIT", 5*time.Second)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("KAFKA_ENABLED", false)
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_GROUP_ID", "driverbook")
	v.SetDefault("KAFKA_OFFERS_TOPIC", "offers.accepted")

	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_BUCKET", "")
	v.SetDefault("S3_CDN_DOMAIN", "")
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Database.Driver)
	}
	if c.Engine.BaseCommissionRate <= 0 || c.Engine.BaseCommissionRate >= 1 {
		return fmt.Errorf("ENGINE_BASE_COMMISSION_RATE must be in (0, 1), got %v", c.Engine.BaseCommissionRate)
	}
	if c.Engine.StatementDueDay < 1 || c.Engine.StatementDueDay > 28 {
		return fmt.Errorf("ENGINE_STATEMENT_DUE_DAY must be in [1, 28], got %d", c.Engine.StatementDueDay)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
