package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ragindex/ragindex/pkg/version"
)

// level is the process-wide minimum level. It is a LevelVar so a running
// service can flip to debug without reconstructing its logger.
var level slog.LevelVar

// Config contains logging configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string
	// FilePath is the path to the log file. Empty means stderr only.
	FilePath string
	// MaxSizeMB is the maximum size in MB before rotation (default: 10).
	MaxSizeMB int
	// MaxArchives is how many rotated files to keep (default: 5).
	MaxArchives int
	// WriteToStderr mirrors log output to stderr (default: true).
	WriteToStderr bool
}

// DefaultConfig returns sensible defaults for the query service.
func DefaultConfig() Config {
	return Config{
		Level:         "info",
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxArchives:   5,
		WriteToStderr: true,
	}
}

// DebugConfig returns configuration for debug mode.
func DebugConfig() Config {
	cfg := DefaultConfig()
	cfg.Level = "debug"
	return cfg
}

// Setup initializes structured JSON logging. Every record carries the
// service name and version so aggregated logs from multiple daemons stay
// attributable. The returned cleanup flushes and closes the log file.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	level.Set(LevelFromString(cfg.Level))

	var sinks []io.Writer
	cleanup := func() {}

	if cfg.FilePath != "" {
		writer, err := NewRotatingWriter(cfg.FilePath, cfg.MaxSizeMB, cfg.MaxArchives)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, writer)
		cleanup = func() {
			_ = writer.Sync()
			_ = writer.Close()
		}
	}
	if cfg.WriteToStderr || len(sinks) == 0 {
		sinks = append(sinks, os.Stderr)
	}

	handler := slog.NewJSONHandler(io.MultiWriter(sinks...), &slog.HandlerOptions{
		Level: &level,
	})
	logger := slog.New(handler).With(
		slog.String("service", "ragindexd"),
		slog.String("version", version.Version),
	)

	return logger, cleanup, nil
}

// SetupDefault configures debug logging and installs it as the default
// logger. Returns the cleanup function.
func SetupDefault() (func(), error) {
	logger, cleanup, err := Setup(DebugConfig())
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger)
	return cleanup, nil
}

// SetLevel changes the minimum level of all loggers built by Setup, at
// runtime.
func SetLevel(name string) {
	level.Set(LevelFromString(name))
}

// LevelFromString converts a level name to slog.Level. Unknown names
// fall back to info.
func LevelFromString(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
