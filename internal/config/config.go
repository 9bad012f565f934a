// Package config handles hashsafe configuration
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// MaxBlockSize is the largest accepted engine.block_size.
const MaxBlockSize = 64 * 1024 * 1024

// Config holds all configuration options
type Config struct {
	Engine  EngineConfig  `toml:"engine"`
	Output  OutputConfig  `toml:"output"`
	Logging LoggingConfig `toml:"logging"`
}

// EngineConfig holds hashing engine settings
type EngineConfig struct {
	BlockSize     string `toml:"block_size"`
	MaxConcurrent int    `toml:"max_concurrent"`
	MaxReadRate   string `toml:"max_read_rate"`
}

// OutputConfig holds CLI output settings
type OutputConfig struct {
	Progress   bool   `toml:"progress"`
	JSON       bool   `toml:"json"`
	EventsFile string `toml:"events_file"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			BlockSize:     "1MB",
			MaxConcurrent: 4,
			MaxReadRate:   "0", // unlimited
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/hashsafe/config.toml, falling back
// to ~/.config/hashsafe/config.toml.
func DefaultPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "hashsafe", "config.toml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "hashsafe", "config.toml")
}

// Load reads configuration from a file, merging with defaults
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Use defaults if no config file
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes configuration to a file
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// String renders the configuration as TOML
func (c *Config) String() string {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("<invalid config: %v>", err)
	}
	return string(data)
}

// ValidationError describes a single invalid setting
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every invalid setting found by Validate
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

var validLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the configuration and returns ValidationErrors listing
// every problem, or nil.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if bs, err := c.Engine.BlockSizeBytes(); err != nil {
		errs = append(errs, ValidationError{"engine.block_size", err.Error()})
	} else if bs <= 0 {
		errs = append(errs, ValidationError{"engine.block_size", "must be positive"})
	} else if bs > MaxBlockSize {
		errs = append(errs, ValidationError{"engine.block_size", "must not exceed 64MB"})
	}

	if c.Engine.MaxConcurrent < 1 {
		errs = append(errs, ValidationError{"engine.max_concurrent", "must be at least 1"})
	}

	if _, err := c.Engine.MaxReadRateBytes(); err != nil {
		errs = append(errs, ValidationError{"engine.max_read_rate", err.Error()})
	}

	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, ValidationError{"logging.level",
			fmt.Sprintf("unknown level %q (want debug, info, warn or error)", c.Logging.Level)})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// BlockSizeBytes returns engine.block_size in bytes
func (e EngineConfig) BlockSizeBytes() (int64, error) {
	return ParseSize(e.BlockSize)
}

// MaxReadRateBytes returns engine.max_read_rate in bytes per second, 0 for unlimited
func (e EngineConfig) MaxReadRateBytes() (int64, error) {
	return ParseRate(e.MaxReadRate)
}

// ParseSize parses a size string like "10GB" into bytes
func ParseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}

	size, n := parseNumber(s)
	if n == 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}

	multiplier := int64(1)
	switch unit := strings.TrimSpace(s[n:]); unit {
	case "", "B":
	case "KB", "K", "KIB":
		multiplier = 1024
	case "MB", "M", "MIB":
		multiplier = 1024 * 1024
	case "GB", "G", "GIB":
		multiplier = 1024 * 1024 * 1024
	case "TB", "T", "TIB":
		multiplier = 1024 * 1024 * 1024 * 1024
	default:
		return 0, fmt.Errorf("invalid size unit %q", unit)
	}

	return size * multiplier, nil
}

func parseNumber(s string) (int64, int) {
	var size int64
	var n int
	for i, c := range s {
		if c < '0' || c > '9' {
			break
		}
		size = size*10 + int64(c-'0')
		n = i + 1
	}
	return size, n
}

// ParseRate parses a rate string like "10MB/s" or "100KB" into bytes per second
// Returns 0 for unlimited (empty string, "0", or "unlimited")
func ParseRate(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" || strings.EqualFold(s, "unlimited") {
		return 0, nil
	}

	return ParseSize(strings.TrimSuffix(s, "/s"))
}
