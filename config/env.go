package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "CARDGRADE_"

// LoadEnv reads a .env file into the process environment. A missing file is not an error.
func LoadEnv(filenames ...string) error {
	err := godotenv.Load(filenames...)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load .env: %w", err)
}

// EnvString returns the trimmed value of key when set and non-empty.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses key as an integer.
func EnvInt(key string) (int, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, true, nil
}

// EnvBool parses key with strconv.ParseBool.
func EnvBool(key string) (bool, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return false, false, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, false, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, true, nil
}

// EnvDuration parses key with time.ParseDuration.
func EnvDuration(key string) (time.Duration, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, true, nil
}

// ApplyEnv overlays CARDGRADE_* variables onto cfg.
func ApplyEnv(cfg *Config) error {
	strs := map[string]*string{
		"LISTING_BASE_URL": &cfg.ListingBaseURL,
		"ENGINE":           &cfg.Engine,
		"FIXTURE_DIR":      &cfg.FixtureDir,
		"BROWSER_BIN":      &cfg.BrowserBin,
		"OCR_LANGUAGE":     &cfg.OCRLanguage,
		"OUTPUT":           &cfg.OutputFile,
		"FORMAT":           &cfg.OutputFormat,
		"RUNLOG":           &cfg.RunLogPath,
		"USER_AGENT":       &cfg.UserAgent,
		"ACCEPT_LANGUAGE":  &cfg.AcceptLanguage,
		"METRICS_ADDR":     &cfg.MetricsAddr,
		"LISTEN_ADDR":      &cfg.ListenAddr,
	}
	for key, dst := range strs {
		if value, ok := EnvString(EnvPrefix + key); ok {
			*dst = value
		}
	}

	ints := map[string]*int{
		"MAX_RETRIES":    &cfg.MaxRetries,
		"MIN_IMAGE_SIZE": &cfg.MinImageSize,
		"DEDUPE_SIZE":    &cfg.DedupeMaxSize,
	}
	for key, dst := range ints {
		value, ok, err := EnvInt(EnvPrefix + key)
		if err != nil {
			return err
		}
		if ok {
			*dst = value
		}
	}

	bools := map[string]*bool{
		"HEADLESS":    &cfg.Headless,
		"NO_SANDBOX":  &cfg.NoSandbox,
		"OCR_ENABLED": &cfg.OCREnabled,
		"VERBOSE":     &cfg.Verbose,
	}
	for key, dst := range bools {
		value, ok, err := EnvBool(EnvPrefix + key)
		if err != nil {
			return err
		}
		if ok {
			*dst = value
		}
	}

	durations := map[string]*time.Duration{
		"NAV_TIMEOUT":       &cfg.NavigationTimeout,
		"SETTLE_DELAY":      &cfg.SettleDelay,
		"LISTING_TIMEOUT":   &cfg.ListingTimeout,
		"IMAGE_TIMEOUT":     &cfg.ImageTimeout,
		"DELAY":             &cfg.Delay,
		"RETRY_BACKOFF":     &cfg.RetryBackoff,
		"RETRY_BACKOFF_MAX": &cfg.RetryBackoffMax,
		"SAMPLE_TTL":        &cfg.SampleCacheTTL,
	}
	for key, dst := range durations {
		value, ok, err := EnvDuration(EnvPrefix + key)
		if err != nil {
			return err
		}
		if ok {
			*dst = value
		}
	}
	return nil
}
