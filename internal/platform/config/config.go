package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type Config struct {
	APIPort            string `env:"API_PORT" envDefault:"8080"`
	JWTSecret          string `env:"JWT_SECRET" envDefault:"defaultsecret"`
	JWTExpirationHours int    `env:"JWT_EXPIRATION_HOURS" envDefault:"72"`

	// Derived in Parse.
	JWTKey    []byte
	JWTExp    time.Duration
	DBConnStr string

	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"postgres"`

	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER" envDefault:"user"`
	DBPassword string `env:"DB_PASSWORD" envDefault:"password"`
	DBName     string `env:"DB_NAME" envDefault:"tle_zone_contests"`
	DBSslMode  string `env:"DB_SSLMODE" envDefault:"disable"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	FinalizationQueueName string `env:"FINALIZATION_QUEUE_NAME" envDefault:"contest_finalization_queue"`
	LockKeyPrefix         string `env:"LOCK_KEY_PREFIX" envDefault:"tle_zone_lock:"`
	LockTTLSeconds        int    `env:"LOCK_TTL_SECONDS" envDefault:"30"`
	LockWaitSeconds       int    `env:"LOCK_WAIT_SECONDS" envDefault:"10"`
	FinalizationAttempts  int    `env:"FINALIZATION_MAX_ATTEMPTS" envDefault:"5"`
	WebhookSecret         string `env:"WEBHOOK_SECRET"`

	// Optional admin account created on startup when missing.
	AdminUsername string `env:"ADMIN_USERNAME" envDefault:"admin"`
	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	DefaultRating      int     `env:"DEFAULT_RATING" envDefault:"1200"`
	MaxRatingChange    int     `env:"MAX_RATING_CHANGE" envDefault:"400"`
	RatingKFactor      float64 `env:"RATING_K_FACTOR" envDefault:"160"`
	ReadyWindowMinutes int     `env:"READY_WINDOW_MINUTES" envDefault:"60"`
}

var AppConfig *Config

// Load reads .env (if present) and the process environment into AppConfig.
func Load() error {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, relying on environment variables")
	}

	cfg, err := Parse()
	if err != nil {
		return err
	}
	AppConfig = cfg
	return nil
}

// Parse builds a Config from the current environment without touching AppConfig.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config.Parse: %w", err)
	}

	cfg.JWTKey = []byte(cfg.JWTSecret)
	cfg.JWTExp = time.Duration(cfg.JWTExpirationHours) * time.Hour
	cfg.DBConnStr = "host=" + cfg.DBHost +
		" port=" + cfg.DBPort +
		" user=" + cfg.DBUser +
		" password=" + cfg.DBPassword +
		" dbname=" + cfg.DBName +
		" sslmode=" + cfg.DBSslMode

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageDriver {
	case StorageDriverPostgres, StorageDriverMemory:
	default:
		return fmt.Errorf("config: unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.DefaultRating < 0 {
		return fmt.Errorf("config: DEFAULT_RATING must be >= 0, got %d", c.DefaultRating)
	}
	if c.MaxRatingChange <= 0 {
		return fmt.Errorf("config: MAX_RATING_CHANGE must be > 0, got %d", c.MaxRatingChange)
	}
	if c.RatingKFactor <= 0 {
		return fmt.Errorf("config: RATING_K_FACTOR must be > 0, got %v", c.RatingKFactor)
	}
	if c.FinalizationAttempts < 1 {
		return fmt.Errorf("config: FINALIZATION_MAX_ATTEMPTS must be >= 1, got %d", c.FinalizationAttempts)
	}
	if c.LockTTLSeconds <= 0 || c.LockWaitSeconds <= 0 {
		return fmt.Errorf("config: lock timings must be positive")
	}
	return nil
}

func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

func (c *Config) LockWait() time.Duration {
	return time.Duration(c.LockWaitSeconds) * time.Second
}

func (c *Config) ReadyWindow() time.Duration {
	return time.Duration(c.ReadyWindowMinutes) * time.Minute
}
