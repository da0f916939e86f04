package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the server configuration.
// Precedence: defaults < YAML file named by CONFIG_FILE < environment (.env included).
type Config struct {
	Port     string `yaml:"port" validate:"required,numeric"`
	Env      string `yaml:"env" validate:"oneof=development production test"`
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`

	MongoURI      string `yaml:"mongo_uri" validate:"required"`
	MongoDatabase string `yaml:"mongo_database" validate:"required"`
	PostgresURL   string `yaml:"postgres_url" validate:"required"`

	JWTSecret               string `yaml:"jwt_secret" validate:"required_without=FirebaseCredentialsPath"`
	FirebaseCredentialsPath string `yaml:"firebase_credentials_path"`

	StreamBufferSize     int           `yaml:"stream_buffer_size" validate:"min=1"`
	HeartbeatInterval    time.Duration `yaml:"heartbeat_interval" validate:"min=0"`
	MessagePreviewLength int           `yaml:"message_preview_length" validate:"min=1"`
	NotificationTimeout  time.Duration `yaml:"notification_timeout" validate:"min=0"`
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() *Config {
	return &Config{
		Port:                 "8080",
		Env:                  "development",
		LogLevel:             "info",
		MongoDatabase:        "findmate",
		StreamBufferSize:     16,
		HeartbeatInterval:    25 * time.Second,
		MessagePreviewLength: 50,
		NotificationTimeout:  10 * time.Second,
	}
}

// IsProduction reports whether the server runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads .env (if present), the optional YAML file and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.Env = getEnv("ENV", cfg.Env)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.MongoURI = getEnv("MONGO_URI", cfg.MongoURI)
	cfg.MongoDatabase = getEnv("MONGO_DATABASE", cfg.MongoDatabase)
	cfg.PostgresURL = getEnv("POSTGRES_CONN_STR", cfg.PostgresURL)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.FirebaseCredentialsPath = getEnv("FIREBASE_CREDENTIALS_PATH", cfg.FirebaseCredentialsPath)

	var err error
	if cfg.StreamBufferSize, err = getEnvInt("STREAM_BUFFER_SIZE", cfg.StreamBufferSize); err != nil {
		return err
	}
	if cfg.MessagePreviewLength, err = getEnvInt("MESSAGE_PREVIEW_LENGTH", cfg.MessagePreviewLength); err != nil {
		return err
	}
	if cfg.HeartbeatInterval, err = getEnvDuration("HEARTBEAT_INTERVAL", cfg.HeartbeatInterval); err != nil {
		return err
	}
	if cfg.NotificationTimeout, err = getEnvDuration("NOTIFY_TIMEOUT", cfg.NotificationTimeout); err != nil {
		return err
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
