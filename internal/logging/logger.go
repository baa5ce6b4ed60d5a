package logging

import (
	"log/slog"
	"os"
)

// Logger is the process-wide structured logger, also installed as the
// slog default.
var Logger *slog.Logger

// InitLogger configures the global logger. Level is one of "debug",
// "info", "warn" or "error"; format is "json" or "text". Unrecognized
// values fall back to info/text.
func InitLogger(level, format string) {
	logLevel := slog.LevelInfo
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}
