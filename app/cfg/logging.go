package cfg

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// SetupLogger installs the default slog logger. With LogFile set, records
// are written as JSON to a rotating file; the returned closer releases it.
func SetupLogger(cfg *Cfg) (io.Closer, error) {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.LogFile == "" {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, opts)))
		return nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    64, // MB
		MaxBackups: 3,
		MaxAge:     7, // days
		Compress:   true,
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(file, opts)))

	return file, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
