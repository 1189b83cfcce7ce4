package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "empty base url",
			mutate: func(cfg *Config) {
				cfg.ListingBaseURL = ""
			},
			wantErr: "listing base URL",
		},
		{
			name: "invalid url format",
			mutate: func(cfg *Config) {
				cfg.ListingBaseURL = "http://"
			},
			wantErr: "listing base URL",
		},
		{
			name: "unknown engine",
			mutate: func(cfg *Config) {
				cfg.Engine = "selenium"
			},
			wantErr: "engine",
		},
		{
			name: "fixture engine without dir",
			mutate: func(cfg *Config) {
				cfg.Engine = EngineFixture
			},
			wantErr: "fixture dir",
		},
		{
			name: "negative navigation timeout",
			mutate: func(cfg *Config) {
				cfg.NavigationTimeout = -1 * time.Second
			},
			wantErr: "navigation timeout",
		},
		{
			name: "zero listing timeout",
			mutate: func(cfg *Config) {
				cfg.ListingTimeout = 0
			},
			wantErr: "listing timeout",
		},
		{
			name: "backoff above max",
			mutate: func(cfg *Config) {
				cfg.RetryBackoff = 5 * time.Second
				cfg.RetryBackoffMax = time.Second
			},
			wantErr: "retry backoff",
		},
		{
			name: "ocr without language",
			mutate: func(cfg *Config) {
				cfg.OCRLanguage = ""
			},
			wantErr: "ocr language",
		},
		{
			name: "csv only format",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "csv"
			},
			wantErr: "output format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestListingURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ListingBaseURL = "https://www.ebay.com/itm"
	if got := cfg.ListingURL("111111111111"); got != "https://www.ebay.com/itm/111111111111" {
		t.Fatalf("ListingURL = %q", got)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("CARDGRADE_ENGINE", "static")
	t.Setenv("CARDGRADE_SETTLE_DELAY", "500ms")
	t.Setenv("CARDGRADE_OCR_ENABLED", "false")
	t.Setenv("CARDGRADE_MIN_IMAGE_SIZE", "300")

	cfg := DefaultConfig()
	if err := ApplyEnv(cfg); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if cfg.Engine != EngineStatic {
		t.Fatalf("engine = %q, want static", cfg.Engine)
	}
	if cfg.SettleDelay != 500*time.Millisecond {
		t.Fatalf("settle delay = %v", cfg.SettleDelay)
	}
	if cfg.OCREnabled {
		t.Fatalf("ocr should be disabled")
	}
	if cfg.MinImageSize != 300 {
		t.Fatalf("min image size = %d", cfg.MinImageSize)
	}
}

func TestApplyEnvTransportKeys(t *testing.T) {
	t.Setenv("CARDGRADE_ACCEPT_LANGUAGE", "de-DE,de;q=0.9")
	t.Setenv("CARDGRADE_RETRY_BACKOFF", "50ms")
	t.Setenv("CARDGRADE_RETRY_BACKOFF_MAX", "1s")
	t.Setenv("CARDGRADE_DEDUPE_SIZE", "10")
	t.Setenv("CARDGRADE_VERBOSE", "true")

	cfg := DefaultConfig()
	if err := ApplyEnv(cfg); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if cfg.AcceptLanguage != "de-DE,de;q=0.9" {
		t.Fatalf("accept language = %q", cfg.AcceptLanguage)
	}
	if cfg.RetryBackoff != 50*time.Millisecond || cfg.RetryBackoffMax != time.Second {
		t.Fatalf("backoff = %v / %v", cfg.RetryBackoff, cfg.RetryBackoffMax)
	}
	if cfg.DedupeMaxSize != 10 {
		t.Fatalf("dedupe size = %d", cfg.DedupeMaxSize)
	}
	if !cfg.Verbose {
		t.Fatalf("verbose should be enabled")
	}
}

func TestFileApplyTransportKeys(t *testing.T) {
	name := filepath.Join(t.TempDir(), "cardgrade.json5")
	body := `{
		acceptLanguage: "fr-FR",
		retryBackoff: "10ms",
		retryBackoffMax: "500ms",
		dedupeSize: 42,
		verbose: true,
	}`
	if err := os.WriteFile(name, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	file, err := ReadFile(name)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	cfg := DefaultConfig()
	if err := file.Apply(cfg); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cfg.AcceptLanguage != "fr-FR" {
		t.Fatalf("accept language = %q", cfg.AcceptLanguage)
	}
	if cfg.RetryBackoff != 10*time.Millisecond || cfg.RetryBackoffMax != 500*time.Millisecond {
		t.Fatalf("backoff = %v / %v", cfg.RetryBackoff, cfg.RetryBackoffMax)
	}
	if cfg.DedupeMaxSize != 42 {
		t.Fatalf("dedupe size = %d", cfg.DedupeMaxSize)
	}
	if !cfg.Verbose {
		t.Fatalf("verbose should be enabled")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestApplyEnvRejectsBadDuration(t *testing.T) {
	t.Setenv("CARDGRADE_DELAY", "soon")
	if err := ApplyEnv(DefaultConfig()); err == nil {
		t.Fatalf("expected error for bad duration")
	}
}

func TestReadFileMergesLocalOverride(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "cardgrade.json5")
	base := `{
		// comments are allowed
		engine: "static",
		settleDelay: "1s",
		output: "data/cards.json",
	}`
	local := `{ output: "local/cards.json", headless: false }`
	if err := os.WriteFile(name, []byte(base), 0o644); err != nil {
		t.Fatalf("write base: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "cardgrade.local.json5"), []byte(local), 0o644); err != nil {
		t.Fatalf("write local: %v", err)
	}

	file, err := ReadFile(name)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	cfg := DefaultConfig()
	if err := file.Apply(cfg); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cfg.Engine != EngineStatic {
		t.Fatalf("engine = %q", cfg.Engine)
	}
	if cfg.OutputFile != "local/cards.json" {
		t.Fatalf("output = %q, want local override", cfg.OutputFile)
	}
	if cfg.SettleDelay != time.Second {
		t.Fatalf("settle delay = %v", cfg.SettleDelay)
	}
	if cfg.Headless {
		t.Fatalf("headless should be switched off by local file")
	}
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "absent.json5"))
	if !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
