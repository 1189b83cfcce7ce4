package config

import (
	"fmt"
	"net/url"
	"time"
)

// Fetch engines.
const (
	EngineBrowser = "browser"
	EngineStatic  = "static"
	EngineFixture = "fixture"
)

// Config holds pipeline, fetcher and serving configuration.
type Config struct {
	ListingBaseURL    string
	Engine            string // browser, static or fixture
	FixtureDir        string
	BrowserBin        string
	Headless          bool
	NoSandbox         bool
	NavigationTimeout time.Duration
	SettleDelay       time.Duration
	ListingTimeout    time.Duration
	ImageTimeout      time.Duration
	Delay             time.Duration
	MaxRetries        int
	RetryBackoff      time.Duration
	RetryBackoffMax   time.Duration
	MinImageSize      int
	OCREnabled        bool
	OCRLanguage       string
	DedupeMaxSize     int
	OutputFile        string
	OutputFormat      string // json or dual
	RunLogPath        string
	UserAgent         string
	AcceptLanguage    string
	Verbose           bool
	MetricsAddr       string
	ListenAddr        string
	SampleCacheTTL    time.Duration
}

// DefaultConfig returns conservative defaults for the listing site.
func DefaultConfig() *Config {
	return &Config{
		ListingBaseURL:    "https://www.ebay.com/itm/",
		Engine:            EngineBrowser,
		Headless:          true,
		NoSandbox:         false,
		NavigationTimeout: 30 * time.Second,
		SettleDelay:       3 * time.Second,
		ListingTimeout:    60 * time.Second,
		ImageTimeout:      15 * time.Second,
		Delay:             2 * time.Second,
		MaxRetries:        2,
		RetryBackoff:      200 * time.Millisecond,
		RetryBackoffMax:   2 * time.Second,
		MinImageSize:      200,
		OCREnabled:        true,
		OCRLanguage:       "eng",
		DedupeMaxSize:     100000,
		OutputFile:        "output/cards.json",
		OutputFormat:      "json",
		UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36",
		AcceptLanguage:    "en-US,en;q=0.9",
		Verbose:           false,
		ListenAddr:        ":8080",
		SampleCacheTTL:    time.Minute,
	}
}

// ListingURL builds the listing page URL for an identifier.
func (c *Config) ListingURL(identifier string) string {
	base := c.ListingBaseURL
	if len(base) > 0 && base[len(base)-1] != '/' {
		base += "/"
	}
	return base + url.PathEscape(identifier)
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.ListingBaseURL == "" {
		return fmt.Errorf("listing base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.ListingBaseURL)
	if err != nil {
		return fmt.Errorf("invalid listing base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("listing base URL must include a host")
	}

	switch c.Engine {
	case EngineBrowser, EngineStatic:
	case EngineFixture:
		if c.FixtureDir == "" {
			return fmt.Errorf("fixture dir cannot be empty for the fixture engine")
		}
	default:
		return fmt.Errorf("engine must be browser, static, or fixture")
	}

	if c.NavigationTimeout <= 0 {
		return fmt.Errorf("navigation timeout must be positive")
	}
	if c.SettleDelay < 0 {
		return fmt.Errorf("settle delay cannot be negative")
	}
	if c.ListingTimeout <= 0 {
		return fmt.Errorf("listing timeout must be positive")
	}
	if c.ImageTimeout <= 0 {
		return fmt.Errorf("image timeout must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.MinImageSize < 0 {
		return fmt.Errorf("min image size cannot be negative")
	}
	if c.OCREnabled && c.OCRLanguage == "" {
		return fmt.Errorf("ocr language cannot be empty when OCR is enabled")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be json or dual")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.SampleCacheTTL < 0 {
		return fmt.Errorf("sample cache ttl cannot be negative")
	}

	return nil
}
