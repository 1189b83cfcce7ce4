package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// DefaultFile is read from the working directory when CARDGRADE_CONFIG is unset.
const DefaultFile = "cardgrade.json5"

// File mirrors Config for json5 files. Durations are Go duration strings ("3s").
// Pointer booleans let a file switch a default-true option off.
type File struct {
	ListingBaseURL    string `json:"listingBaseUrl"`
	Engine            string `json:"engine"`
	FixtureDir        string `json:"fixtureDir"`
	BrowserBin        string `json:"browserBin"`
	Headless          *bool  `json:"headless"`
	NoSandbox         *bool  `json:"noSandbox"`
	NavigationTimeout string `json:"navigationTimeout"`
	SettleDelay       string `json:"settleDelay"`
	ListingTimeout    string `json:"listingTimeout"`
	ImageTimeout      string `json:"imageTimeout"`
	Delay             string `json:"delay"`
	MaxRetries        *int   `json:"maxRetries"`
	RetryBackoff      string `json:"retryBackoff"`
	RetryBackoffMax   string `json:"retryBackoffMax"`
	MinImageSize      *int   `json:"minImageSize"`
	OCREnabled        *bool  `json:"ocrEnabled"`
	OCRLanguage       string `json:"ocrLanguage"`
	DedupeMaxSize     *int   `json:"dedupeSize"`
	OutputFile        string `json:"output"`
	OutputFormat      string `json:"format"`
	RunLogPath        string `json:"runLog"`
	UserAgent         string `json:"userAgent"`
	AcceptLanguage    string `json:"acceptLanguage"`
	Verbose           *bool  `json:"verbose"`
	MetricsAddr       string `json:"metricsAddr"`
	ListenAddr        string `json:"listenAddr"`
	SampleCacheTTL    string `json:"sampleCacheTtl"`
}

func splitExt(name string) (string, string) {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}

// ReadFile reads name and, when present, its "<base>.local<ext>" sibling, merging the local file on top.
// It returns fs.ErrNotExist when neither file exists.
func ReadFile(name string) (File, error) {
	var out File
	found := false

	data, err := os.ReadFile(name)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return out, fmt.Errorf("read config %q: %w", name, err)
	}
	if len(data) > 0 {
		if err := json5.Unmarshal(data, &out); err != nil {
			return out, fmt.Errorf("parse config %q: %w", name, err)
		}
		found = true
	}

	base, ext := splitExt(name)
	localName := base + ".local" + ext
	localData, err := os.ReadFile(localName)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return out, fmt.Errorf("read config %q: %w", localName, err)
	}
	if len(localData) > 0 {
		var override File
		if err := json5.Unmarshal(localData, &override); err != nil {
			return out, fmt.Errorf("parse config %q: %w", localName, err)
		}
		if err := mergo.Merge(&out, override, mergo.WithOverride); err != nil {
			return out, fmt.Errorf("merge config %q: %w", localName, err)
		}
		slog.Debug("merged local config overrides", slog.String("local", localName))
		found = true
	}

	if !found {
		return out, fs.ErrNotExist
	}
	return out, nil
}

// Apply overlays the non-zero fields of f onto cfg.
func (f File) Apply(cfg *Config) error {
	setString := func(dst *string, value string) {
		if value != "" {
			*dst = value
		}
	}
	setString(&cfg.ListingBaseURL, f.ListingBaseURL)
	setString(&cfg.Engine, f.Engine)
	setString(&cfg.FixtureDir, f.FixtureDir)
	setString(&cfg.BrowserBin, f.BrowserBin)
	setString(&cfg.OCRLanguage, f.OCRLanguage)
	setString(&cfg.OutputFile, f.OutputFile)
	setString(&cfg.OutputFormat, f.OutputFormat)
	setString(&cfg.RunLogPath, f.RunLogPath)
	setString(&cfg.UserAgent, f.UserAgent)
	setString(&cfg.AcceptLanguage, f.AcceptLanguage)
	setString(&cfg.MetricsAddr, f.MetricsAddr)
	setString(&cfg.ListenAddr, f.ListenAddr)

	if f.Headless != nil {
		cfg.Headless = *f.Headless
	}
	if f.NoSandbox != nil {
		cfg.NoSandbox = *f.NoSandbox
	}
	if f.OCREnabled != nil {
		cfg.OCREnabled = *f.OCREnabled
	}
	if f.MaxRetries != nil {
		cfg.MaxRetries = *f.MaxRetries
	}
	if f.MinImageSize != nil {
		cfg.MinImageSize = *f.MinImageSize
	}
	if f.DedupeMaxSize != nil {
		cfg.DedupeMaxSize = *f.DedupeMaxSize
	}
	if f.Verbose != nil {
		cfg.Verbose = *f.Verbose
	}

	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"navigationTimeout", f.NavigationTimeout, &cfg.NavigationTimeout},
		{"settleDelay", f.SettleDelay, &cfg.SettleDelay},
		{"listingTimeout", f.ListingTimeout, &cfg.ListingTimeout},
		{"imageTimeout", f.ImageTimeout, &cfg.ImageTimeout},
		{"delay", f.Delay, &cfg.Delay},
		{"retryBackoff", f.RetryBackoff, &cfg.RetryBackoff},
		{"retryBackoffMax", f.RetryBackoffMax, &cfg.RetryBackoffMax},
		{"sampleCacheTtl", f.SampleCacheTTL, &cfg.SampleCacheTTL},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = parsed
	}
	return nil
}

// Load builds a Config from defaults, the optional config file, .env and CARDGRADE_* variables.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if err := LoadEnv(); err != nil {
		return nil, err
	}

	name := DefaultFile
	if value, ok := EnvString(EnvPrefix + "CONFIG"); ok {
		name = value
	}
	file, err := ReadFile(name)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := file.Apply(cfg); err != nil {
			return nil, fmt.Errorf("apply config %q: %w", name, err)
		}
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
