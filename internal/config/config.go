// Package config loads sidecar configuration from environment variables
// and an optional config file, in that order of precedence, over baked-in
// defaults. Command-line flags are layered on top by the caller.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// QualityPreset maps a coarse quality name to an average encoder bitrate.
type QualityPreset string

const (
	QualityLow    QualityPreset = "low"
	QualityMedium QualityPreset = "medium"
	QualityHigh   QualityPreset = "high"
)

// Bitrate returns the average bitrate, in bits per second, for the preset.
// Unknown presets fall back to QualityMedium's bitrate.
func (q QualityPreset) Bitrate() uint32 {
	switch QualityPreset(strings.ToLower(string(q))) {
	case QualityLow:
		return 1_000_000
	case QualityHigh:
		return 4_500_000
	default:
		return 2_500_000
	}
}

// Config holds the sidecar's full runtime configuration.
type Config struct {
	ServerURL string `mapstructure:"url"`
	PID       uint32 `mapstructure:"pid"`
	GPUIndex  *uint32
	StreamKey string `mapstructure:"stream_key"`
	SessionID string `mapstructure:"session_id"`
	Quality   string `mapstructure:"quality"`

	LogLevel      string `mapstructure:"log_level"`
	LogFormat     string `mapstructure:"log_format"`
	LogFile       string `mapstructure:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups"`
}

// Default returns a Config populated with the sidecar's baked-in defaults.
func Default() *Config {
	return &Config{
		ServerURL:     "ws://localhost:3000",
		SessionID:     "current-session",
		Quality:       string(QualityMedium),
		LogLevel:      "info",
		LogFormat:     "text",
		LogMaxSizeMB:  50,
		LogMaxBackups: 3,
	}
}

// Load reads configuration from an optional file (cfgFile, or ./sidecar.yaml
// if empty) and environment variables prefixed CAPTURE_SIDECAR_, layering
// them over the defaults. Flags are applied by the caller after Load returns,
// since cobra owns flag parsing.
func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("sidecar")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("CAPTURE_SIDECAR")
	// Unmarshal only sees keys viper knows about, so bind each field's
	// environment variable explicitly; AutomaticEnv alone does not.
	for _, key := range []string{
		"url", "pid", "stream_key", "session_id", "quality",
		"log_level", "log_format", "log_file", "log_max_size_mb", "log_max_backups",
	} {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, nil
}
