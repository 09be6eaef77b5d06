package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"
)

// DebugEnvVar forces debug logging when set to any non-empty value.
const DebugEnvVar = "NLOG_DEBUG"

// Config holds all configuration options for nlroute
type Config struct {
	LogLevel       string
	Namespace      string
	ReceiveTimeout time.Duration
	MetricsFile    string
	Help           bool
	// Args is the object and command, e.g. "route show all".
	Args []string
}

// ParseFlags parses command line flags and returns a Config struct. Parsing
// stops at the first non-flag argument, so the object and command words are
// left in Args. The short -d and -d2 flags raise the log level to info and
// debug.
func ParseFlags(args []string) (Config, error) {
	var config Config

	fs := flag.NewFlagSet("nlroute", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.LogLevel, "log-level", "error", "Log level (debug, info, warn, error)")
	fs.StringVar(&config.Namespace, "netns", "", "Named network namespace to operate in")
	fs.DurationVar(&config.ReceiveTimeout, "timeout", 5*time.Second, "How long to wait for each kernel reply (0 waits forever)")
	fs.StringVar(&config.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")
	fs.BoolVar(&config.Help, "h", false, "Show help")
	info := fs.Bool("d", false, "Log at info level")
	debug := fs.Bool("d2", false, "Log at debug level")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			config.Help = true
			return config, nil
		}

		return config, fmt.Errorf("failed to parse flags: %w", err)
	}

	switch {
	case *debug, os.Getenv(DebugEnvVar) != "":
		config.LogLevel = "debug"
	case *info:
		config.LogLevel = "info"
	}

	config.Args = fs.Args()
	return config, nil
}

// Validate validates the configuration and returns an error if invalid
func (c Config) Validate() error {
	normalizedLevel := strings.ToLower(c.LogLevel)
	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, normalizedLevel) {
		return fmt.Errorf("log level must be one of: %s", strings.Join(validLevels, ", "))
	}

	if c.ReceiveTimeout < 0 {
		return fmt.Errorf("timeout (%v) must not be negative", c.ReceiveTimeout)
	}

	if len(c.Args) == 0 {
		return fmt.Errorf("an object (link, addr or route) is required")
	}

	return nil
}

// GetSlogLevel converts the LogLevel string to a slog.Level
func (c Config) GetSlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelError
	}
}
