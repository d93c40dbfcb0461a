package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all configuration for our application
type Config struct {
	// Server configuration
	Port         string
	GinMode      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// Kafka configuration
	Kafka KafkaConfig

	// Background workers
	Workers WorkerConfig

	// Pricing rules
	Pricing PricingConfig

	// Logging
	LogLevel string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	DSN      string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Addr     string
}

// KafkaConfig holds Kafka configuration for the notification sink
type KafkaConfig struct {
	Brokers           []string
	NotificationTopic string
}

// WorkerConfig holds tick intervals and batch limits for the three
// background workers plus the financial rules they apply
type WorkerConfig struct {
	ReaperInterval     time.Duration `validate:"gt=0"`
	AutoCancelInterval time.Duration `validate:"gt=0"`
	MaturationInterval time.Duration `validate:"gt=0"`

	CancellationWindowDays int     `validate:"gt=0"`
	MaturationDelayDays    int     `validate:"gt=0"`
	OccupancyThreshold     float64 `validate:"gt=0,lte=1"`
	CommissionRate         float64 `validate:"gte=0,lt=1"`
	BatchSize              int     `validate:"gt=0"`
	MaturationMaxFailures  int     `validate:"gt=0"`
}

// PricingConfig holds the early-bird discount rules
type PricingConfig struct {
	EarlyBirdWindowDays int     `validate:"gt=0"`
	MinAdvanceDays      int     `validate:"gte=0"`
	DiscountRate        float64 `validate:"gt=0,lt=1"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		// Server configuration
		Port:         getEnv("PORT", "8080"),
		GinMode:      getEnv("GIN_MODE", "debug"),
		ReadTimeout:  getDurationEnv("READ_TIMEOUT", 15*time.Second),
		WriteTimeout: getDurationEnv("WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:  getDurationEnv("IDLE_TIMEOUT", 60*time.Second),

		// Database configuration
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			Name:     getEnv("DB_NAME", "tourly_db"),
			User:     getEnv("DB_USER", "tourly_user"),
			Password: getEnv("DB_PASSWORD", "tourly_password"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},

		// Redis configuration
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},

		// Kafka configuration
		Kafka: KafkaConfig{
			Brokers:           getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
			NotificationTopic: getEnv("NOTIFICATION_TOPIC", "operator-notifications"),
		},

		// Background workers
		Workers: WorkerConfig{
			ReaperInterval:     getDurationEnv("REAPER_INTERVAL", 5*time.Minute),
			AutoCancelInterval: getDurationEnv("AUTO_CANCEL_INTERVAL", 6*time.Hour),
			MaturationInterval: getDurationEnv("MATURATION_INTERVAL", 1*time.Hour),

			CancellationWindowDays: getIntEnv("CANCELLATION_WINDOW_DAYS", 2),
			MaturationDelayDays:    getIntEnv("MATURATION_DELAY_DAYS", 3),
			OccupancyThreshold:     getFloatEnv("OCCUPANCY_THRESHOLD", 0.5),
			CommissionRate:         getFloatEnv("COMMISSION_RATE", 0.10),
			BatchSize:              getIntEnv("WORKER_BATCH_SIZE", 50),
			MaturationMaxFailures:  getIntEnv("MATURATION_MAX_FAILURES", 5),
		},

		// Pricing rules
		Pricing: PricingConfig{
			EarlyBirdWindowDays: getIntEnv("EARLY_BIRD_WINDOW_DAYS", 14),
			MinAdvanceDays:      getIntEnv("MIN_ADVANCE_DAYS", 30),
			DiscountRate:        getFloatEnv("EARLY_BIRD_DISCOUNT_RATE", 0.25),
		},

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "debug"),
	}

	// Build composite values
	cfg.Database.DSN = buildDatabaseDSN(cfg.Database)
	cfg.Redis.Addr = cfg.Redis.Host + ":" + cfg.Redis.Port

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// buildDatabaseDSN builds the database connection string
func buildDatabaseDSN(db DatabaseConfig) string {
	return "host=" + db.Host +
		" port=" + db.Port +
		" user=" + db.User +
		" password=" + db.Password +
		" dbname=" + db.Name +
		" sslmode=" + db.SSLMode
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getIntEnv gets an integer environment variable with a fallback value
func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return fallback
}

// getFloatEnv gets a float environment variable with a fallback value
func getFloatEnv(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return fallback
}

// getDurationEnv gets a duration environment variable with a fallback value
func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return fallback
}

// getStringSliceEnv gets a comma-separated string environment variable as a slice
func getStringSliceEnv(key string, fallback []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		var result []string
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GinMode == "release"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GinMode == "debug"
}

// GetServerAddress returns the full server address
func (c *Config) GetServerAddress() string {
	return ":" + c.Port
}

// CancellationWindow returns the auto-cancel decision window as a duration
func (w WorkerConfig) CancellationWindow() time.Duration {
	return time.Duration(w.CancellationWindowDays) * 24 * time.Hour
}

// MaturationDelay returns the post-completion grace period as a duration
func (w WorkerConfig) MaturationDelay() time.Duration {
	return time.Duration(w.MaturationDelayDays) * 24 * time.Hour
}
