package config

import (
	"strings"
	"testing"
)

func TestValidateInvalidURLScheme(t *testing.T) {
	cfg := Default()
	cfg.ServerURL = "http://example.com"
	cfg.PID = 1234

	errs := cfg.Validate()
	found := false
	for _, err := range errs {
		if strings.Contains(err.Error(), "scheme must be ws or wss") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a scheme error, got %v", errs)
	}
}

func TestValidateMissingPID(t *testing.T) {
	cfg := Default()
	cfg.ServerURL = "ws://example.com"

	errs := cfg.Validate()
	found := false
	for _, err := range errs {
		if strings.Contains(err.Error(), "pid is required") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a pid error, got %v", errs)
	}
}

func TestValidateInvalidSessionIDUUID(t *testing.T) {
	cfg := Default()
	cfg.PID = 1234
	cfg.SessionID = "not-a-uuid"

	errs := cfg.Validate()
	found := false
	for _, err := range errs {
		if strings.Contains(err.Error(), "not a valid UUID") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a session_id error, got %v", errs)
	}
}

func TestValidateDefaultSessionIDIsNotValidatedAsUUID(t *testing.T) {
	cfg := Default()
	cfg.PID = 1234

	for _, err := range cfg.Validate() {
		if strings.Contains(err.Error(), "session_id") {
			t.Fatalf("default session_id should not be validated as a UUID: %v", err)
		}
	}
}

func TestValidateUnknownQualityFallsBackToMedium(t *testing.T) {
	cfg := Default()
	cfg.PID = 1234
	cfg.Quality = "ultra"

	errs := cfg.Validate()
	if len(errs) == 0 {
		t.Fatal("expected a warning for an unknown quality preset")
	}
	if cfg.Quality != string(QualityMedium) {
		t.Fatalf("Quality = %q, want %q after fallback", cfg.Quality, QualityMedium)
	}
}

func TestValidateLogMaxSizeClamping(t *testing.T) {
	cfg := Default()
	cfg.PID = 1234
	cfg.LogMaxSizeMB = 0

	cfg.Validate()
	if cfg.LogMaxSizeMB != 1 {
		t.Fatalf("LogMaxSizeMB = %d, want 1 (clamped)", cfg.LogMaxSizeMB)
	}

	cfg.LogMaxSizeMB = 5000
	cfg.Validate()
	if cfg.LogMaxSizeMB != 1000 {
		t.Fatalf("LogMaxSizeMB = %d, want 1000 (clamped)", cfg.LogMaxSizeMB)
	}
}

func TestValidateNegativeLogMaxBackupsClampedToZero(t *testing.T) {
	cfg := Default()
	cfg.PID = 1234
	cfg.LogMaxBackups = -3

	cfg.Validate()
	if cfg.LogMaxBackups != 0 {
		t.Fatalf("LogMaxBackups = %d, want 0 (clamped)", cfg.LogMaxBackups)
	}
}

func TestValidConfigHasNoErrors(t *testing.T) {
	cfg := Default()
	cfg.PID = 1234
	cfg.ServerURL = "wss://example.com"
	cfg.SessionID = "12345678-1234-1234-1234-123456789abc"

	if errs := cfg.Validate(); len(errs) != 0 {
		t.Fatalf("valid config has errors: %v", errs)
	}
}
