package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/matheus3301/hanger/internal/upload"
)

// EnvPrefix prefixes every environment override, e.g. HANGER_UPLOAD_CLIENT_ID.
const EnvPrefix = "HANGER_"

// Config represents the global ~/.hanger/config.toml.
type Config struct {
	DefaultInstance string       `toml:"default_instance" env:"DEFAULT_INSTANCE"`
	MetricsAddr     string       `toml:"metrics_addr" env:"METRICS_ADDR"`
	ProfileBaseURL  string       `toml:"profile_base_url" env:"PROFILE_BASE_URL"`
	LogLevel        string       `toml:"log_level" env:"LOG_LEVEL"`
	Upload          UploadConfig `toml:"upload" envPrefix:"UPLOAD_"`
}

// UploadConfig is the [upload] table.
type UploadConfig struct {
	Endpoint    string   `toml:"endpoint" env:"ENDPOINT"`
	ClientID    string   `toml:"client_id" env:"CLIENT_ID"`
	MaxAttempts int      `toml:"max_attempts" env:"MAX_ATTEMPTS"`
	BaseDelay   Duration `toml:"base_delay" env:"BASE_DELAY"`
	MaxDelay    Duration `toml:"max_delay" env:"MAX_DELAY"`
	MaxJitter   Duration `toml:"max_jitter" env:"MAX_JITTER"`
	Timeout     Duration `toml:"timeout" env:"TIMEOUT"`
}

// Duration is a time.Duration written as "2s" in TOML and the environment.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		ProfileBaseURL: "https://hanger.app/profile",
		LogLevel:       "info",
		Upload: UploadConfig{
			Endpoint:    upload.DefaultEndpoint,
			MaxAttempts: upload.DefaultMaxAttempts,
			BaseDelay:   Duration{upload.DefaultBaseDelay},
			MaxDelay:    Duration{upload.DefaultMaxDelay},
			MaxJitter:   Duration{upload.DefaultMaxJitter},
			Timeout:     Duration{upload.DefaultTimeout},
		},
	}
}

// Load reads config from the given path on top of the defaults. Returns an
// error if the file is missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, except a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// ApplyEnv loads envFile, if present, into the process environment without
// replacing variables that are already set, then applies HANGER_* overrides.
func ApplyEnv(cfg *Config, envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// UploadPipeline converts the [upload] table into pipeline settings.
func (c *Config) UploadPipeline() upload.Config {
	u := c.Upload
	return upload.Config{
		Endpoint:    u.Endpoint,
		ClientID:    u.ClientID,
		MaxAttempts: u.MaxAttempts,
		BaseDelay:   u.BaseDelay.Duration,
		MaxDelay:    u.MaxDelay.Duration,
		MaxJitter:   u.MaxJitter.Duration,
		Timeout:     u.Timeout.Duration,
	}
}
