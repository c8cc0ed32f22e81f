package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"refdash/internal/apperr"
)

// Config is the application's configuration model.
// It captures the admin API endpoint, credentials, browsing behaviour, storage and observability.
type Config struct {
	API         APIConfig         `yaml:"api"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Browse      BrowseConfig      `yaml:"browse"`
	Storage     StorageConfig     `yaml:"storage"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Server      ServerConfig      `yaml:"server"`
}

type APIConfig struct {
	// Base URL of the admin API, e.g. https://admin.example.com/api/v1. If empty, read REFDASH_API_URL
	BaseURL     string        `yaml:"baseURL" validate:"required,url"`
	Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`
	RPS         float64       `yaml:"rps" validate:"gt=0"`
	Burst       int           `yaml:"burst" validate:"gte=1"`
	MaxAttempts int           `yaml:"maxAttempts" validate:"gte=1"`
	BaseBackoff time.Duration `yaml:"baseBackoff" validate:"gte=0"`
}

type CredentialsConfig struct {
	// Admin login. If empty, read REFDASH_EMAIL / REFDASH_PASSWORD
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	// Pre-issued bearer token. If empty, read REFDASH_TOKEN
	Token string `yaml:"token"`
}

type BrowseConfig struct {
	PageSize         int           `yaml:"pageSize" validate:"gte=1"`
	ReferralPageSize int           `yaml:"referralPageSize" validate:"gte=1"`
	SearchDebounce   time.Duration `yaml:"searchDebounce" validate:"gte=0"`
	// Pause between successive page fetches during a search scan
	ScanDelay time.Duration `yaml:"scanDelay" validate:"gte=0"`
	// Upper bound on pages visited by one scan, 0 means no bound
	MaxScanPages int `yaml:"maxScanPages" validate:"gte=0"`
}

type StorageConfig struct {
	DBPath string `yaml:"dbPath" validate:"required"`
}

type LoggingConfig struct {
	Level      string `yaml:"level" validate:"oneof=debug info warn error"`
	Format     string `yaml:"format" validate:"oneof=json console"`
	OutputPath string `yaml:"outputPath"`
}

type MetricsConfig struct {
	// Listen address for /metrics, empty disables. If empty, read METRICS_ADDR
	Addr string `yaml:"addr"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

// Default returns a sensible default configuration.
func Default() Config {
	return Config{
		API: APIConfig{
			BaseURL:     "http://localhost:8083/api/v1",
			Timeout:     15 * time.Second,
			RPS:         5,
			Burst:       10,
			MaxAttempts: 3,
			BaseBackoff: 500 * time.Millisecond,
		},
		Browse: BrowseConfig{
			PageSize:         10,
			ReferralPageSize: 10,
			SearchDebounce:   300 * time.Millisecond,
			ScanDelay:        50 * time.Millisecond,
		},
		Storage: StorageConfig{DBPath: "./refdash.db"},
		Logging: LoggingConfig{Level: "info", Format: "console", OutputPath: "stderr"},
		Server:  ServerConfig{Addr: "127.0.0.1:8090"},
	}
}

// ResolveEnv fills in config fields from environment variables if not set.
func (c *Config) ResolveEnv() {
	if v := os.Getenv("REFDASH_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if c.Credentials.Email == "" {
		c.Credentials.Email = os.Getenv("REFDASH_EMAIL")
	}
	if c.Credentials.Password == "" {
		c.Credentials.Password = os.Getenv("REFDASH_PASSWORD")
	}
	if c.Credentials.Token == "" {
		c.Credentials.Token = os.Getenv("REFDASH_TOKEN")
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = os.Getenv("METRICS_ADDR")
	}
	if v := os.Getenv("REFDASH_API_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.API.MaxAttempts = n
		}
	}
}

var validate = validator.New()

// Validate checks field constraints and reports the first violations as a ValidationError.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return apperr.ValidationError(err, "invalid config")
	}
	return nil
}

// Load reads YAML config from path on top of Default, resolves env and validates.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	cfg.ResolveEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
