package main

import (
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/nosdav/nosdav/config"
)

// setupLogging installs the process-wide logger and routes the standard log
// package, used by net/http for connection errors, through it.
func setupLogging(cfg *config.Config) {
	slog.SetDefault(slog.New(newLogHandler(os.Stdout, cfg)))

	log.SetFlags(0)
	log.SetOutput(slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn).Writer())
}

// newLogHandler emits JSON with UTC "ts" timestamps in production and
// colored text otherwise. Debug text logs carry the source line.
func newLogHandler(w io.Writer, cfg *config.Config) slog.Handler {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}

	if !cfg.IsProduction() {
		return tint.NewHandler(w, &tint.Options{
			Level:      level,
			AddSource:  level <= slog.LevelDebug,
			TimeFormat: time.TimeOnly + ".000",
		})
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.String("ts", a.Value.Time().UTC().Format(time.RFC3339Nano))
			}
			return a
		},
	})
	return h.WithAttrs([]slog.Attr{slog.String("version", version)})
}
