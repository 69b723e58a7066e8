package digital

// Logger is the minimal logging surface instances use to report isolated
// failures: listener panics, completion-callback errors, and input read
// errors. Any structured logger with slog-style methods satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger discards everything. It is the default until SetLogger is
// called on an instance.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
