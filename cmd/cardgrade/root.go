package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/aluiziolira/cardgrade/config"
)

// cfg is populated by the root command before any subcommand runs.
var cfg *config.Config

var flags struct {
	configFile  string
	verbose     bool
	engine      string
	fixtureDir  string
	baseURL     string
	output      string
	format      string
	delay       time.Duration
	timeout     time.Duration
	noOCR       bool
	runLog      string
	metricsAddr string
}

var rootCmd = &cobra.Command{
	Use:           "cardgrade",
	Short:         "cardgrade collects graded trading-card listings into a dataset and serves random cards from it.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if flags.configFile != "" {
			if err := os.Setenv(config.EnvPrefix+"CONFIG", flags.configFile); err != nil {
				return err
			}
		}

		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		applyFlags(cmd.Flags(), loaded)

		logger, level := newLogger(loaded.Verbose)
		slog.SetDefault(logger)
		slog.SetLogLoggerLevel(level.Level())

		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		cfg = loaded
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "Config file (json5); defaults to "+config.DefaultFile)
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")
	pf.StringVar(&flags.engine, "engine", "", "Fetch engine: browser, static, or fixture")
	pf.StringVar(&flags.fixtureDir, "fixture-dir", "", "Directory of <identifier>.html pages for the fixture engine")
	pf.StringVar(&flags.baseURL, "base-url", "", "Listing page base URL")
	pf.StringVar(&flags.output, "output", "", "Dataset file")
	pf.StringVar(&flags.format, "format", "", "Output format: json or dual")
	pf.DurationVar(&flags.delay, "delay", 0, "Pause after each listing before the next one starts")
	pf.DurationVar(&flags.timeout, "listing-timeout", 0, "Watchdog limit per listing")
	pf.BoolVar(&flags.noOCR, "no-ocr", false, "Disable the OCR grade fallback")
	pf.StringVar(&flags.runLog, "run-log", "", "sqlite run ledger path")
	pf.StringVar(&flags.metricsAddr, "metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")
}

// applyFlags overrides the loaded configuration with flags the user set explicitly.
func applyFlags(fs *pflag.FlagSet, c *config.Config) {
	if fs.Changed("verbose") {
		c.Verbose = flags.verbose
	}
	if fs.Changed("engine") {
		c.Engine = strings.ToLower(flags.engine)
	}
	if fs.Changed("fixture-dir") {
		c.FixtureDir = flags.fixtureDir
	}
	if fs.Changed("base-url") {
		c.ListingBaseURL = flags.baseURL
	}
	if fs.Changed("output") {
		c.OutputFile = flags.output
	}
	if fs.Changed("format") {
		c.OutputFormat = strings.ToLower(flags.format)
	}
	if fs.Changed("delay") {
		c.Delay = flags.delay
	}
	if fs.Changed("listing-timeout") {
		c.ListingTimeout = flags.timeout
	}
	if fs.Changed("no-ocr") {
		c.OCREnabled = !flags.noOCR
	}
	if fs.Changed("run-log") {
		c.RunLogPath = flags.runLog
	}
	if fs.Changed("metrics-addr") {
		c.MetricsAddr = flags.metricsAddr
	}
}

// newLogger writes to stderr so that commands can keep stdout for data.
func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	var handler slog.Handler
	if isTerminal(os.Stderr) {
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
