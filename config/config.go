// Package config loads config.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"dessertcast/form"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Http struct {
		Port           int           `yaml:"port"`
		Timeout        time.Duration `yaml:"timeout"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
		MaxBodyBytes   int64         `yaml:"max_body_bytes"`
	} `yaml:"http"`
	Log       Log `yaml:"log"`
	// The prediction endpoint itself is fixed (predict.DefaultEndpoint).
	Predictor struct {
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"predictor"`
	Sessions struct {
		Capacity int `yaml:"capacity"`
	} `yaml:"sessions"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Form struct {
		Seed []float64 `yaml:"seed"`
	} `yaml:"form"`
	Predictd struct {
		Port int `yaml:"port"`
	} `yaml:"predictd"`
}

// Log configures the logger. File is optional; when set, output is also
// written there as JSON and rotated.
type Log struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.Http.Port = 8080
	cfg.Http.Timeout = 30 * time.Second
	cfg.Http.AllowedOrigins = []string{"*"}
	cfg.Http.MaxBodyBytes = 1 << 20
	cfg.Log = Log{Level: "info", MaxSizeMB: 50, MaxBackups: 3, MaxAgeDays: 28}
	cfg.Sessions.Capacity = 1024
	cfg.Form.Seed = append([]float64(nil), form.SeedInputs[:]...)
	cfg.Predictd.Port = 5000
	return cfg
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if len(c.Form.Seed) != form.SlotCount {
		return fmt.Errorf("form.seed must have %d values, got %d", form.SlotCount, len(c.Form.Seed))
	}
	if c.Http.Port <= 0 || c.Http.Port > 65535 {
		return fmt.Errorf("http.port out of range: %d", c.Http.Port)
	}
	if c.Predictd.Port <= 0 || c.Predictd.Port > 65535 {
		return fmt.Errorf("predictd.port out of range: %d", c.Predictd.Port)
	}
	if c.Sessions.Capacity <= 0 {
		return fmt.Errorf("sessions.capacity must be positive, got %d", c.Sessions.Capacity)
	}
	if c.Http.Timeout < 0 || c.Predictor.Timeout < 0 {
		return errors.New("timeouts must not be negative")
	}
	return nil
}

// Seed returns the configured seed as a fixed-size array.
func (c *Config) Seed() [form.SlotCount]float64 {
	var seed [form.SlotCount]float64
	copy(seed[:], c.Form.Seed)
	return seed
}
