package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

var validQualities = map[QualityPreset]bool{
	QualityLow:    true,
	QualityMedium: true,
	QualityHigh:   true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the config for invalid values and returns all errors
// found. Dangerous zero-values that would cause panics or obviously wrong
// behavior downstream are clamped to safe defaults; other problems are
// reported but do not prevent startup, matching the loader's
// layered-config, warn-don't-crash stance.
func (c *Config) Validate() []error {
	var errs []error

	if c.ServerURL != "" {
		u, err := url.Parse(c.ServerURL)
		if err != nil {
			errs = append(errs, fmt.Errorf("url %q is not a valid URL: %w", c.ServerURL, err))
		} else if u.Scheme != "ws" && u.Scheme != "wss" {
			errs = append(errs, fmt.Errorf("url scheme must be ws or wss, got %q", u.Scheme))
		}
	}

	if c.PID == 0 {
		errs = append(errs, fmt.Errorf("pid is required and must be nonzero"))
	}

	if c.SessionID != "" && c.SessionID != "current-session" {
		if _, err := uuid.Parse(c.SessionID); err != nil {
			errs = append(errs, fmt.Errorf("session_id %q is not a valid UUID", c.SessionID))
		}
	}

	if c.Quality != "" && !validQualities[QualityPreset(strings.ToLower(c.Quality))] {
		errs = append(errs, fmt.Errorf("quality %q is not valid (use low, medium, or high), falling back to medium", c.Quality))
		c.Quality = string(QualityMedium)
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel))
	}

	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format %q is not valid (use text or json)", c.LogFormat))
	}

	if c.LogMaxSizeMB < 1 {
		errs = append(errs, fmt.Errorf("log_max_size_mb %d is below minimum 1, clamping", c.LogMaxSizeMB))
		c.LogMaxSizeMB = 1
	} else if c.LogMaxSizeMB > 1000 {
		errs = append(errs, fmt.Errorf("log_max_size_mb %d exceeds maximum 1000, clamping", c.LogMaxSizeMB))
		c.LogMaxSizeMB = 1000
	}

	if c.LogMaxBackups < 0 {
		errs = append(errs, fmt.Errorf("log_max_backups %d is negative, clamping to 0", c.LogMaxBackups))
		c.LogMaxBackups = 0
	}

	for _, err := range errs {
		slog.Warn("config validation", "error", err)
	}

	return errs
}
