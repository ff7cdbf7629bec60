package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the complete tool configuration.
type Config struct {
	// Logging configuration
	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`

	// Scratch space for spill files
	TempDir string `json:"temp_dir"`

	// Executor configuration
	Executor ExecutorConfig `json:"executor"`
}

// ExecutorConfig represents query executor configuration.
type ExecutorConfig struct {
	// Memory management
	MemoryLimit int64 `json:"memory_limit"` // sort memory budget in bytes

	// Statistics and monitoring
	EnableStatistics bool `json:"enable_statistics"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		TempDir:   "", // empty means the system temp dir
		Executor: ExecutorConfig{
			MemoryLimit:      256 * 1024 * 1024, // 256MB
			EnableStatistics: false,
		},
	}
}

// LoadFromFile loads configuration from a JSON file.
func LoadFromFile(path string) (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Validate and normalize
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFlags merges command-line flags into the configuration.
func (c *Config) LoadFromFlags(logLevel, tempDir string, memoryLimit int64) {
	if logLevel != "" {
		c.LogLevel = logLevel
	}
	if tempDir != "" {
		c.TempDir = tempDir
	}
	if memoryLimit >= 0 {
		c.Executor.MemoryLimit = memoryLimit
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	// Validate log level
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
		// Valid
	default:
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}

	// Validate log format
	switch c.LogFormat {
	case "text", "json":
		// Valid
	default:
		return fmt.Errorf("invalid log format: %s", c.LogFormat)
	}

	// Validate executor configuration
	if err := c.validateExecutor(); err != nil {
		return fmt.Errorf("invalid executor configuration: %w", err)
	}

	return nil
}

// validateExecutor validates executor-specific configuration
func (c *Config) validateExecutor() error {
	if c.Executor.MemoryLimit <= 0 {
		return fmt.Errorf("memory limit must be positive")
	}

	return nil
}

// GetTempDir returns the directory for spill files.
func (c *Config) GetTempDir() string {
	if c.TempDir == "" {
		return os.TempDir()
	}
	return filepath.Clean(c.TempDir)
}
