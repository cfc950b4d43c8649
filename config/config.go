// Package config provides configuration loading and management for verifybib.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/verifybib/report"
	"github.com/c360studio/verifybib/validation"
)

// DefaultReportPath is where the report is written when nothing else is set.
const DefaultReportPath = "report/verifybibtex-report.md"

// Config represents the complete verifybib configuration
type Config struct {
	Output   OutputConfig  `yaml:"output"`
	Rules    RulesConfig   `yaml:"rules"`
	Watch    WatchConfig   `yaml:"watch"`
	Metrics  MetricsConfig `yaml:"metrics"`
	LogLevel string        `yaml:"log_level"`
}

// OutputConfig configures the report artifact
type OutputConfig struct {
	// Path is the report file (default: report/verifybibtex-report.md)
	Path string `yaml:"path"`
	// Format is markdown or json
	Format string `yaml:"format"`
}

// RulesConfig tunes the rule engine
type RulesConfig struct {
	// Disabled lists rule IDs that never run
	Disabled []string `yaml:"disabled"`
	// IgnoredBraceFields are the fields the double-braces rule skips
	IgnoredBraceFields []string `yaml:"ignored_brace_fields"`
}

// WatchConfig configures watch mode
type WatchConfig struct {
	// Debounce is the quiet period after a write before re-validating
	Debounce time.Duration `yaml:"debounce"`
}

// MetricsConfig configures metrics export
type MetricsConfig struct {
	// Textfile is a node-exporter textfile path (empty = off)
	Textfile string `yaml:"textfile"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Output: OutputConfig{
			Path:   DefaultReportPath,
			Format: string(report.FormatMarkdown),
		},
		Rules: RulesConfig{
			IgnoredBraceFields: append([]string(nil), validation.DefaultIgnoredBraceFields...),
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
		LogLevel: "info",
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Output.Path == "" {
		return fmt.Errorf("output.path is required")
	}
	if _, err := report.ParseFormat(c.Output.Format); err != nil {
		return fmt.Errorf("output.format: %w", err)
	}
	if c.Watch.Debounce <= 0 {
		return fmt.Errorf("watch.debounce must be positive")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error")
	}
	if _, err := validation.NewValidator(c.ValidatorOptions(), nil); err != nil {
		return fmt.Errorf("rules.disabled: %w", err)
	}
	return nil
}

// ValidatorOptions converts the rules section into validator options.
func (c *Config) ValidatorOptions() validation.Options {
	opts := validation.Options{IgnoredBraceFields: c.Rules.IgnoredBraceFields}
	for _, id := range c.Rules.Disabled {
		opts.Disabled = append(opts.Disabled, validation.RuleID(id))
	}
	return opts
}

// LoadFromFile loads configuration from a YAML file on top of the defaults
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()
	if err := decodeFile(path, config); err != nil {
		return nil, err
	}
	return config, nil
}

// loadLayer loads a YAML file without defaults, so only the keys present
// in the file survive a Merge.
func loadLayer(path string) (*Config, error) {
	config := &Config{}
	if err := decodeFile(path, config); err != nil {
		return nil, err
	}
	return config, nil
}

func decodeFile(path string, into *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, into); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Output
	if other.Output.Path != "" {
		c.Output.Path = other.Output.Path
	}
	if other.Output.Format != "" {
		c.Output.Format = other.Output.Format
	}

	// Rules
	if len(other.Rules.Disabled) > 0 {
		c.Rules.Disabled = other.Rules.Disabled
	}
	if other.Rules.IgnoredBraceFields != nil {
		c.Rules.IgnoredBraceFields = other.Rules.IgnoredBraceFields
	}

	// Watch
	if other.Watch.Debounce != 0 {
		c.Watch.Debounce = other.Watch.Debounce
	}

	// Metrics
	if other.Metrics.Textfile != "" {
		c.Metrics.Textfile = other.Metrics.Textfile
	}

	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
}
