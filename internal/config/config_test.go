package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SCAN_QUIET_MS", "")
	t.Setenv("MATCH_OK_THRESHOLD", "")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ScanQuiet != 120*time.Millisecond {
		t.Fatalf("quiet=%v", cfg.ScanQuiet)
	}
	if cfg.MatchOKThreshold != 0.93 {
		t.Fatalf("ok threshold=%v", cfg.MatchOKThreshold)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SCAN_QUIET_MS", "250")
	t.Setenv("SCAN_MIN_LENGTH", "12")
	t.Setenv("IMAP_SECURE", "off")
	t.Setenv("DASHBOARD_RATE_LIMIT_RPS", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ScanQuiet != 250*time.Millisecond {
		t.Fatalf("quiet=%v", cfg.ScanQuiet)
	}
	if cfg.ScanMinLength != 12 {
		t.Fatalf("min length=%d", cfg.ScanMinLength)
	}
	if cfg.IMAPSecure {
		t.Fatal("IMAP_SECURE=off should disable TLS")
	}
	if cfg.DashboardRateLimitRPS != 5 {
		t.Fatalf("bad int should fall back, got %d", cfg.DashboardRateLimitRPS)
	}
}

func TestRequire(t *testing.T) {
	var cfg Config
	if err := cfg.Require("DASHBOARD_API_TOKEN", "  "); err == nil {
		t.Fatal("expected error for blank value")
	}
	if err := cfg.Require("DASHBOARD_API_TOKEN", "x"); err != nil {
		t.Fatal(err)
	}
}
