package core

// Logger is any leveled logger the services can write through. Extra args
// are implementation-defined (the Rollbar impl picks a session out of them
// to attribute reports to a person).
type Logger interface {
	Enable(enabled bool)
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// NopLogger discards everything. Constructors fall back to it when no
// logger is wired, typically in tests.
type NopLogger struct{}

var _ Logger = NopLogger{}

func (NopLogger) Enable(bool)                  {}
func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
func (NopLogger) Fatal(string, ...interface{}) {}

// OrNopLogger substitutes a NopLogger for nil.
func OrNopLogger(logger Logger) Logger {
	if logger == nil {
		return NopLogger{}
	}
	return logger
}
