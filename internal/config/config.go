// Package config provides configuration loading for pdf-describer.
// Supports YAML files, environment variables and .env files.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for a describer run.
type Config struct {
	Inference InferenceConfig `yaml:"inference"`
	Retry     RetryConfig     `yaml:"retry"`
	Render    RenderConfig    `yaml:"render"`
	Output    OutputConfig    `yaml:"output"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// InferenceConfig points at the vision model endpoint.
type InferenceConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	Path           string        `yaml:"path"`
	Model          string        `yaml:"model"`
	TargetLanguage string        `yaml:"target_language"`
	APIKey         string        `yaml:"api_key"`
	Timeout        time.Duration `yaml:"timeout"`
}

// URL returns the full generate endpoint.
func (c InferenceConfig) URL() string {
	path := c.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "http://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port)) + path
}

// RetryConfig holds the fixed-delay retry policy for inference calls.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Delay       time.Duration `yaml:"delay"`
}

// RenderConfig holds rasterization settings.
type RenderConfig struct {
	Density      int    `yaml:"density"`
	Width        int    `yaml:"width"`
	Height       int    `yaml:"height"`
	Format       string `yaml:"format"`
	SaveFilename string `yaml:"save_filename"`
}

// OutputConfig holds where per-document directories are created.
type OutputConfig struct {
	RootDir string `yaml:"root_dir"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads configuration from a YAML file and applies environment overrides.
// A .env file in the working directory is loaded first if present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns the configuration matching a local Ollama install.
func DefaultConfig() *Config {
	return &Config{
		Inference: InferenceConfig{
			Host:           "127.0.0.1",
			Port:           11434,
			Path:           "/api/generate",
			Model:          "gemma3:27b-it-qat",
			TargetLanguage: "Chinese",
			Timeout:        60 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			Delay:       5 * time.Second,
		},
		Render: RenderConfig{
			Density:      150,
			Width:        1600,
			Height:       1600,
			Format:       "png",
			SaveFilename: "page",
		},
		Output: OutputConfig{
			RootDir: "processed_pdfs",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Inference.Host == "" {
		return fmt.Errorf("inference host is required")
	}
	if c.Inference.Port < 1 || c.Inference.Port > 65535 {
		return fmt.Errorf("invalid inference port: %d", c.Inference.Port)
	}
	if c.Inference.Model == "" {
		return fmt.Errorf("inference model is required")
	}
	if c.Inference.TargetLanguage == "" {
		return fmt.Errorf("target language is required")
	}
	if c.Inference.Timeout <= 0 {
		return fmt.Errorf("inference timeout must be positive")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.Delay < 0 {
		return fmt.Errorf("retry delay cannot be negative")
	}
	if c.Render.Density <= 0 || c.Render.Width <= 0 || c.Render.Height <= 0 {
		return fmt.Errorf("render density, width and height must be positive")
	}
	if c.Render.Format != "png" {
		return fmt.Errorf("unsupported render format: %s", c.Render.Format)
	}
	if c.Output.RootDir == "" {
		return fmt.Errorf("output root_dir is required")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		cfg.Inference.Host = v
	}

	if v := os.Getenv("OLLAMA_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Inference.Port = port
		}
	}

	if v := os.Getenv("OLLAMA_MODEL"); v != "" {
		cfg.Inference.Model = v
	}

	if v := os.Getenv("OLLAMA_API_KEY"); v != "" {
		cfg.Inference.APIKey = v
	}

	if v := os.Getenv("TARGET_LANGUAGE"); v != "" {
		cfg.Inference.TargetLanguage = v
	}

	if v := os.Getenv("INFERENCE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Inference.Timeout = d
		}
	}

	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		cfg.Output.RootDir = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
