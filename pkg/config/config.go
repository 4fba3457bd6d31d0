// Package config provides configuration management for the frontscan service.
package config

import (
	"bytes"
	"fmt"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Detection DetectionConfig `mapstructure:"detection"`
	Trace     TraceConfig     `mapstructure:"trace"`
	Pattern   PatternConfig   `mapstructure:"pattern"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Log       LogConfig       `mapstructure:"log"`
}

// DetectionConfig holds detection session configuration.
type DetectionConfig struct {
	ScanIntervalMs      int     `mapstructure:"scan_interval_ms"`
	ScanCount           int     `mapstructure:"scan_count"`
	ForceGC             bool    `mapstructure:"force_gc"`
	Framework           string  `mapstructure:"framework"`
	SeverityThreshold   string  `mapstructure:"severity_threshold"`
	SizeThreshold       int64   `mapstructure:"size_threshold"`
	GrowthRateThreshold float64 `mapstructure:"growth_rate_threshold"`
}

// TraceConfig holds reference chain tracing configuration.
type TraceConfig struct {
	MaxPathLength    int  `mapstructure:"max_path_length"`
	MaxPaths         int  `mapstructure:"max_paths"`
	SimplifyPaths    bool `mapstructure:"simplify_paths"`
	IdentifyKeyNodes bool `mapstructure:"identify_key_nodes"`
}

// PatternConfig holds leak pattern classification configuration.
type PatternConfig struct {
	MinConfidence         float64  `mapstructure:"min_confidence"`
	MinSeverity           string   `mapstructure:"min_severity"`
	FeatureThresholdRatio float64  `mapstructure:"feature_threshold_ratio"`
	EnabledPatternTypes   []string `mapstructure:"enabled_pattern_types"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Type     string `mapstructure:"type"` // sqlite, postgres or mysql
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Path     string `mapstructure:"path"` // for sqlite
	MaxConns int    `mapstructure:"max_conns"`
}

// StorageConfig holds report artifact storage configuration.
type StorageConfig struct {
	Type      string `mapstructure:"type"` // cos or local
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	SecretID  string `mapstructure:"secret_id"`
	SecretKey string `mapstructure:"secret_key"`
	Domain    string `mapstructure:"domain"`
	Scheme    string `mapstructure:"scheme"`
	LocalPath string `mapstructure:"local_path"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// Load reads configuration from the specified file path.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/frontscan")
	}

	if err := v.ReadInConfig(); err != nil {
		// Missing config file falls back to defaults; other read errors are fatal.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadFromReader loads configuration from raw content (useful for testing).
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Detection defaults
	v.SetDefault("detection.scan_interval_ms", 1000)
	v.SetDefault("detection.scan_count", 2)
	v.SetDefault("detection.force_gc", true)
	v.SetDefault("detection.severity_threshold", "low")
	v.SetDefault("detection.size_threshold", 10240)
	v.SetDefault("detection.growth_rate_threshold", 0.5)

	// Trace defaults
	v.SetDefault("trace.max_path_length", 50)
	v.SetDefault("trace.max_paths", 10)
	v.SetDefault("trace.simplify_paths", true)
	v.SetDefault("trace.identify_key_nodes", true)

	// Pattern defaults
	v.SetDefault("pattern.min_confidence", 0.6)
	v.SetDefault("pattern.min_severity", "low")
	v.SetDefault("pattern.feature_threshold_ratio", 0.25)

	// Database defaults
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.path", "./frontscan.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.max_conns", 10)

	// Storage defaults
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "./reports")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("sqlite database path is required")
		}
	case "postgres", "mysql":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	if c.Detection.ScanIntervalMs < 0 {
		return fmt.Errorf("scan interval must not be negative")
	}
	if c.Trace.MaxPaths < 1 {
		return fmt.Errorf("trace max_paths must be at least 1")
	}
	if c.Pattern.MinConfidence < 0 || c.Pattern.MinConfidence > 1 {
		return fmt.Errorf("pattern min_confidence must be within [0, 1]")
	}

	return nil
}
