// Package config provides configuration loading and validation for the
// CodePulse server.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidPort         = errors.New("invalid server port")
	ErrInvalidMaxCodeSize  = errors.New("invalid max code size")
	ErrInvalidCacheEntries = errors.New("cache max entries must be positive")
	ErrInvalidCacheTTL     = errors.New("cache ttl must be positive")
	ErrInvalidHeartbeat    = errors.New("heartbeat interval must be positive")
)

// Default configuration values.
const (
	defaultPort            = 8000
	defaultHost            = "0.0.0.0"
	defaultCacheEntries    = 500
	defaultHeartbeatMisses = 2
	maxPort                = 65535
)

// Config holds all configuration for the CodePulse server.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Host              string        `mapstructure:"host"`
	MaxCodeSize       string        `mapstructure:"max_code_size"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	HeartbeatMisses   int           `mapstructure:"heartbeat_misses"`
	Port              int           `mapstructure:"port"`
}

// MaxCodeBytes parses the humanized MaxCodeSize into bytes.
func (sc ServerConfig) MaxCodeBytes() (int, error) {
	size, err := humanize.ParseBytes(sc.MaxCodeSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidMaxCodeSize, sc.MaxCodeSize, err)
	}

	return int(size), nil
}

// CacheConfig holds result cache configuration.
type CacheConfig struct {
	MaxEntries      int           `mapstructure:"max_entries"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// AnalysisConfig holds analysis-specific configuration.
type AnalysisConfig struct {
	DefaultLanguage string        `mapstructure:"default_language"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds OTel exporter configuration.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	Environment  string  `mapstructure:"environment"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	Insecure     bool    `mapstructure:"insecure"`
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("config")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/codepulse")
	}

	viperCfg.SetEnvPrefix("CODEPULSE")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	// Server defaults.
	viperCfg.SetDefault("server.host", defaultHost)
	viperCfg.SetDefault("server.port", defaultPort)
	viperCfg.SetDefault("server.read_timeout", "30s")
	viperCfg.SetDefault("server.write_timeout", "30s")
	viperCfg.SetDefault("server.idle_timeout", "120s")
	viperCfg.SetDefault("server.max_code_size", "1MB")
	viperCfg.SetDefault("server.heartbeat_interval", "25s")
	viperCfg.SetDefault("server.heartbeat_misses", defaultHeartbeatMisses)

	// Cache defaults.
	viperCfg.SetDefault("cache.max_entries", defaultCacheEntries)
	viperCfg.SetDefault("cache.ttl", "1h")
	viperCfg.SetDefault("cache.cleanup_interval", "10m")

	// Analysis defaults.
	viperCfg.SetDefault("analysis.default_language", "javascript")
	viperCfg.SetDefault("analysis.timeout", "60s")

	// Logging defaults.
	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", "json")

	// Telemetry defaults.
	viperCfg.SetDefault("telemetry.environment", "production")
	viperCfg.SetDefault("telemetry.sample_ratio", 0.0)
}

// validateConfig validates the configuration.
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > maxPort {
		return fmt.Errorf("%w: %d", ErrInvalidPort, config.Server.Port)
	}

	if _, err := config.Server.MaxCodeBytes(); err != nil {
		return err
	}

	if config.Server.HeartbeatInterval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidHeartbeat, config.Server.HeartbeatInterval)
	}

	if config.Cache.MaxEntries <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCacheEntries, config.Cache.MaxEntries)
	}

	if config.Cache.TTL <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidCacheTTL, config.Cache.TTL)
	}

	return nil
}
