package revcache

import "sync"

// Fields is a minimal structured field map for logs.
type Fields map[string]any

// Logger is a tiny leveled logger. Adapters for zap, logrus and slog live
// under log/. A nil Logger in any Options means NopLogger.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
}

type NopLogger struct{}

func (NopLogger) Debug(string, Fields) {}
func (NopLogger) Info(string, Fields)  {}
func (NopLogger) Warn(string, Fields)  {}
func (NopLogger) Error(string, Fields) {}

// LogOnce suppresses repeats of the same event key. Synthesis failures are
// permanent per member, so one line per member is enough.
type LogOnce struct {
	seen sync.Map
}

// Warn logs at warn level the first time k is seen and reports whether it did.
func (o *LogOnce) Warn(l Logger, k any, msg string, f Fields) bool {
	if _, loaded := o.seen.LoadOrStore(k, struct{}{}); loaded {
		return false
	}
	l.Warn(msg, f)
	return true
}
