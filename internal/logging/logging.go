// Package logging configures structured logging for cqs.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Config controls where and how logs are written.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string
	// FilePath is the destination log file. Empty disables file logging.
	FilePath string
	// MaxSizeMB rotates the log file when it exceeds this size. Zero
	// disables rotation.
	MaxSizeMB int
	// MaxFiles is how many rotated files to keep (cqs.log.1 .. .N).
	MaxFiles int
	// WriteToStderr mirrors log output to stderr in addition to the file.
	WriteToStderr bool
}

// DefaultConfig returns the default logging configuration rooted at the
// project's .cqs directory.
func DefaultConfig(projectRoot string) Config {
	return Config{
		Level:         "info",
		FilePath:      filepath.Join(projectRoot, ".cqs", "cqs.log"),
		MaxSizeMB:     10,
		MaxFiles:      3,
		WriteToStderr: true,
	}
}

// rotateIfOversized shifts cqs.log -> cqs.log.1 -> ... -> cqs.log.N when
// the live file has outgrown cfg.MaxSizeMB, dropping the oldest.
func rotateIfOversized(cfg Config) {
	if cfg.MaxSizeMB <= 0 || cfg.MaxFiles <= 0 {
		return
	}
	info, err := os.Stat(cfg.FilePath)
	if err != nil || info.Size() < int64(cfg.MaxSizeMB)*1024*1024 {
		return
	}
	for i := cfg.MaxFiles - 1; i >= 1; i-- {
		src := fmt.Sprintf("%s.%d", cfg.FilePath, i)
		dst := fmt.Sprintf("%s.%d", cfg.FilePath, i+1)
		_ = os.Rename(src, dst)
	}
	_ = os.Rename(cfg.FilePath, cfg.FilePath+".1")
}

// Setup initializes slog according to cfg and returns a cleanup function
// that must be called (typically via defer) to flush and close the log file.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	var writers []io.Writer
	var file *os.File

	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			return nil, nil, err
		}
		rotateIfOversized(cfg)
		f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		file = f
		writers = append(writers, f)
	}
	if cfg.WriteToStderr || len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}

	handler := slog.NewJSONHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	})
	logger := slog.New(handler)

	cleanup := func() {
		if file != nil {
			_ = file.Close()
		}
	}
	return logger, cleanup, nil
}

// SetupDefault configures logging with defaults and installs it as the
// process-wide default logger.
func SetupDefault(projectRoot string) (func(), error) {
	logger, cleanup, err := Setup(DefaultConfig(projectRoot))
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return cleanup, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
