package telemetry

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ConfigureLogging installs the default slog logger from LOG_LEVEL
// (debug|info|warn|error) and LOG_FORMAT (text|json). Unknown levels fall
// back to info with a warning.
func ConfigureLogging(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	level := slog.LevelInfo
	raw := os.Getenv("LOG_LEVEL")
	known := true
	switch strings.ToLower(raw) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	case "info", "":
	default:
		known = false
	}

	format := "text"
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		format = "json"
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	if !known {
		logger.Warn("unknown LOG_LEVEL, using info", slog.String("value", raw))
	}
	logger.Debug("logger initialized", slog.String("level", level.String()), slog.String("format", format))
	return logger
}
