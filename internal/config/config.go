package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Store backends understood by bootstrap.OpenStore.
const (
	BackendMemory   = "memory"
	BackendBolt     = "bolt"
	BackendPostgres = "postgres"
	BackendFirebase = "firebase"
)

// Config holds the environment driven configuration shared by every binary.
type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogJSON  bool   `env:"LOG_JSON" envDefault:"false"`

	JWTSecret     string        `env:"JWT_SECRET"`
	TokenTTL      time.Duration `env:"JWT_TTL" envDefault:"72h"`
	AuthRateLimit float64       `env:"AUTH_RATE_LIMIT" envDefault:"20"`

	StoreBackend string `env:"STORE_BACKEND" envDefault:"postgres"`
	FanoutMode   string `env:"FANOUT_MODE" envDefault:"atomic"`
	BoltPath     string `env:"BOLT_PATH" envDefault:"juggle.db"`

	DBUser     string `env:"DB_USER"`
	DBPassword string `env:"DB_PASSWORD"`
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBName     string `env:"DB_NAME" envDefault:"juggle"`

	FirebaseCredentialsFile string `env:"FIREBASE_CREDENTIALS_FILE"`
	FirebaseDatabaseURL     string `env:"FIREBASE_DATABASE_URL"`

	RedisAddr        string `env:"REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	RelayConcurrency int    `env:"RELAY_CONCURRENCY" envDefault:"5"`
	TriggersEnabled  bool   `env:"TRIGGERS_ENABLED" envDefault:"true"`
	PushProvider     string `env:"PUSH_PROVIDER" envDefault:"log"` // log or fcm

	S3Endpoint      string `env:"S3_ENDPOINT"`
	S3PublicBaseURL string `env:"S3_PUBLIC_BASE_URL"`
	S3Region        string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Bucket        string `env:"S3_BUCKET"`
	S3AccessKeyID   string `env:"S3_ACCESS_KEY_ID"`
	S3SecretKey     string `env:"S3_SECRET_ACCESS_KEY"`
	S3UsePathStyle  bool   `env:"S3_USE_PATH_STYLE" envDefault:"true"`
	MaxImageBytes   int64  `env:"MAX_IMAGE_BYTES" envDefault:"5242880"`
}

// Load reads an optional .env file and parses the environment into Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return parse(env.Options{})
}

// FromMap parses configuration from an explicit variable set instead of the
// process environment.
func FromMap(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	cfg.FanoutMode = strings.ToLower(strings.TrimSpace(cfg.FanoutMode))
	cfg.PushProvider = strings.ToLower(strings.TrimSpace(cfg.PushProvider))
	cfg.S3Bucket = strings.TrimSpace(cfg.S3Bucket)
	cfg.S3PublicBaseURL = strings.TrimRight(strings.TrimSpace(cfg.S3PublicBaseURL), "/")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendBolt, BackendPostgres, BackendFirebase:
	default:
		return fmt.Errorf("unsupported STORE_BACKEND %q", c.StoreBackend)
	}
	switch c.FanoutMode {
	case "atomic", "independent":
	default:
		return fmt.Errorf("unsupported FANOUT_MODE %q", c.FanoutMode)
	}
	switch c.PushProvider {
	case "log", "fcm":
	default:
		return fmt.Errorf("unsupported PUSH_PROVIDER %q", c.PushProvider)
	}
	if c.StoreBackend == BackendFirebase && c.FirebaseDatabaseURL == "" {
		return errors.New("FIREBASE_DATABASE_URL is required for the firebase backend")
	}
	if c.RelayConcurrency <= 0 {
		c.RelayConcurrency = 1
	}
	if c.MaxImageBytes <= 0 {
		c.MaxImageBytes = 5 * 1024 * 1024
	}
	return nil
}

// DatabaseURL builds the Postgres DSN from the DB_* variables.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		c.DBUser,
		c.DBPassword,
		c.DBHost,
		c.DBPort,
		c.DBName,
	)
}

// NeedsFirebase reports whether a Firebase app has to be initialised.
func (c *Config) NeedsFirebase() bool {
	return c.StoreBackend == BackendFirebase || c.PushProvider == "fcm"
}
