package infra

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

const logDir = "logs"

// NewLogger builds the process logger: JSON records to stdout and to a
// size-rotated file under logs/.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Logging.Level)}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		// No log directory, stderr only
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}

	rotated := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "papertrade.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}

	return slog.New(slog.NewJSONHandler(io.MultiWriter(os.Stdout, rotated), opts))
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
