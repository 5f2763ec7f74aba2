package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	LogMode  string
	LogLevel string
	HTTPAddr string

	RepositoryBackend string
	DBUser            string
	DBPassword        string
	DBHost            string
	DBPort            string
	DBName            string
	SQLitePath        string

	ClassifierBackend string
	AnthropicAPIKey   string
	AnthropicModel    string
	StaticCategory    string

	NotifyURL     string
	NotifyTimeout time.Duration

	WorkerCount     int
	QueueSize       int
	ShutdownTimeout time.Duration
}

var defaults = map[string]any{
	"log_mode":            "dev",
	"log_level":           "debug",
	"http_addr":           ":8080",
	"repository_backend":  "memory",
	"mysql_user":          "root",
	"mysql_root_password": "testpass",
	"mysql_host":          "localhost",
	"mysql_port":          "3306",
	"mysql_database":      "classifierdb",
	"sqlite_path":         "classifications.db",
	"classifier_backend":  "static",
	"anthropic_api_key":   "",
	"anthropic_model":     "",
	"static_category":     "COMMERCIAL",
	"notify_url":          "",
	"notify_timeout_ms":   5000,
	"worker_count":        4,
	"queue_size":          1000,
	"shutdown_timeout_ms": 5000,
}

// EnvFile is the dotenv file Load reads: ".env.test" when TESTING is set,
// ".env" otherwise.
func EnvFile() string {
	if os.Getenv("TESTING") != "" {
		return ".env.test"
	}
	return ".env"
}

// Load reads configuration from the environment, layered over EnvFile when
// it exists.
func Load() (*Config, error) {
	return LoadFile(EnvFile())
}

// LoadFile is Load with an explicit dotenv path. A missing file is not an
// error; environment variables always win over file values.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", path, err)
			}
		}
	}

	cfg := &Config{
		LogMode:           v.GetString("log_mode"),
		LogLevel:          v.GetString("log_level"),
		HTTPAddr:          v.GetString("http_addr"),
		RepositoryBackend: v.GetString("repository_backend"),
		DBUser:            v.GetString("mysql_user"),
		DBPassword:        v.GetString("mysql_root_password"),
		DBHost:            v.GetString("mysql_host"),
		DBPort:            v.GetString("mysql_port"),
		DBName:            v.GetString("mysql_database"),
		SQLitePath:        v.GetString("sqlite_path"),
		ClassifierBackend: v.GetString("classifier_backend"),
		AnthropicAPIKey:   v.GetString("anthropic_api_key"),
		AnthropicModel:    v.GetString("anthropic_model"),
		StaticCategory:    v.GetString("static_category"),
		NotifyURL:         v.GetString("notify_url"),
		NotifyTimeout:     time.Duration(v.GetInt("notify_timeout_ms")) * time.Millisecond,
		WorkerCount:       v.GetInt("worker_count"),
		QueueSize:         v.GetInt("queue_size"),
		ShutdownTimeout:   time.Duration(v.GetInt("shutdown_timeout_ms")) * time.Millisecond,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.RepositoryBackend {
	case "memory", "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("REPOSITORY_BACKEND must be memory, mysql or sqlite, got %q", c.RepositoryBackend))
	}
	switch c.ClassifierBackend {
	case "static":
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is required for the anthropic classifier"))
		}
	default:
		errs = append(errs, fmt.Errorf("CLASSIFIER_BACKEND must be static or anthropic, got %q", c.ClassifierBackend))
	}
	if c.WorkerCount <= 0 {
		errs = append(errs, errors.New("WORKER_COUNT must be positive"))
	}
	if c.QueueSize <= 0 {
		errs = append(errs, errors.New("QUEUE_SIZE must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) Prod() bool {
	return c.LogMode == "prod"
}

func (c *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}
