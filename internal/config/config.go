// Package config loads the importer service configuration from YAML with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/drmixer/elevated-importer/internal/database"
)

const (
	defaultServerAddress   = ":8070"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultPollInterval    = 10 * time.Second
	defaultURLCheckTimeout = 6 * time.Second
	defaultImporterID      = "importer"
	defaultDBPort          = 5432
)

// Config is the full importer service configuration.
type Config struct {
	Debug    bool           `yaml:"debug"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Queue    QueueConfig    `yaml:"queue"`
	Importer ImporterConfig `yaml:"importer"`
	URLCheck URLCheckConfig `yaml:"url_check"`
}

// ServerConfig configures the admin HTTP server.
type ServerConfig struct {
	Address      string        `yaml:"address"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// Connection maps the YAML settings onto the database package's config.
func (c DatabaseConfig) Connection() database.Config {
	return database.Config{
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		DBName:   c.DBName,
		SSLMode:  c.SSLMode,
	}
}

// QueueConfig configures the import queue worker.
type QueueConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

// ImporterConfig configures run execution.
type ImporterConfig struct {
	// ID stamps every upserted asset so rows trace back to this deployment.
	ID string `yaml:"id"`

	// Limits holds raw safety limits (maxModules, maxLessons, maxAssets).
	// Values pass through limits.Normalize before use, so strings and
	// floats from YAML are accepted and invalid entries are dropped.
	Limits map[string]any `yaml:"limits"`
}

// URLCheckConfig configures asset reachability probing.
type URLCheckConfig struct {
	Timeout time.Duration `yaml:"timeout"`

	// Bypass skips probing entirely; every URL is treated as reachable.
	Bypass bool `yaml:"bypass"`
}

// Validate checks required settings.
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return errors.New("database.host is required")
	}
	if c.Database.User == "" {
		return errors.New("database.user is required")
	}
	if c.Database.DBName == "" {
		return errors.New("database.dbname is required")
	}
	if c.Queue.PollInterval <= 0 {
		return fmt.Errorf("queue.poll_interval must be positive, got %v", c.Queue.PollInterval)
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = defaultServerAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = defaultDBPort
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Queue.PollInterval == 0 {
		cfg.Queue.PollInterval = defaultPollInterval
	}
	if cfg.Importer.ID == "" {
		cfg.Importer.ID = defaultImporterID
	}
	if cfg.URLCheck.Timeout == 0 {
		cfg.URLCheck.Timeout = defaultURLCheckTimeout
	}
}

func overrideWithEnvVars(cfg *Config) {
	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.Database.DBName = v
	}
	if v := os.Getenv("DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("IMPORTER_PORT"); v != "" {
		cfg.Server.Address = ":" + v
	}
	if v := os.Getenv("IMPORTER_ID"); v != "" {
		cfg.Importer.ID = v
	}
	if v := os.Getenv("QUEUE_POLL_INTERVAL"); v != "" {
		if interval, err := time.ParseDuration(v); err == nil {
			cfg.Queue.PollInterval = interval
		}
	}
	if v := os.Getenv("URL_CHECK_BYPASS"); v != "" {
		cfg.URLCheck.Bypass = parseBool(v)
	}
	if v := os.Getenv("APP_DEBUG"); v != "" {
		cfg.Debug = parseBool(v)
	}
}

// Load reads the YAML file at path, applies defaults and environment
// overrides, and validates the result. A .env file next to the process is
// loaded first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(&cfg)
	overrideWithEnvVars(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// parseBool returns true for "true", "1", "yes" (case-insensitive).
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
}
