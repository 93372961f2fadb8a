package app

import (
	"io"
	"log/slog"
	"strings"

	"github.com/vk/lazyflow/internal/config"
)

// newLogger builds the isolated logger for one App. The global slog default
// is left untouched so that tests can run several apps side by side.
func newLogger(cfg *config.Config, outW io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.LogFormat) {
	case "json":
		handler = slog.NewJSONHandler(outW, opts)
	default:
		handler = slog.NewTextHandler(outW, opts)
	}
	return slog.New(handler).With("service", "lazyflow")
}
