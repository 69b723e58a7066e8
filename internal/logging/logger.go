package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/GeVanCo/pi4j-v2/config"
)

// serviceName tags every log entry emitted by the daemon.
const serviceName = "pi4jd"

// Logger wraps slog.Logger for the daemon.
//
// One configured Logger threads through the whole process: the library
// packages (digital, registry, history, the plugins) each declare their
// own minimal logging interface and *Logger satisfies all of them.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger
}

// New builds a Logger from the logging section of config.yaml.
//
// Format selects the handler: "text" for development, anything else JSON.
// Level filters entries (debug, info, warn, error; unrecognised values
// mean info). Output selects stdout or stderr. Every entry carries the
// service name and version as default fields.
func New(cfg config.LoggingConfig, version string) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	output := resolveOutput(cfg.Output)

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", serviceName),
		slog.String("version", version),
	})

	return &Logger{Logger: slog.New(handler)}
}

// Default returns a stdout JSON logger at info level, for use during
// early startup before the configuration file has been read.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}

// Component returns a child logger tagged with the subsystem it is handed
// to, so entries from the runtime, journal, or a transport can be told
// apart in the combined stream:
//
//	journal.SetLogger(log.Component("journal"))
func (l *Logger) Component(name string) *Logger {
	return l.With("component", name)
}

// With returns a child logger carrying additional default attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

func resolveOutput(output string) io.Writer {
	if strings.ToLower(output) == "stderr" {
		return os.Stderr
	}
	return os.Stdout
}

// parseLevel maps a config level string onto slog's levels. Unrecognised
// values fall back to info.
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
