package aml

// Logger receives structured diagnostic output from a Loop: panics
// recovered from callbacks, and Poll errors seen by Run. Key-value pairs
// follow the slog/zap/logrus convention of alternating key, value, key,
// value...
//
//	logger.Error("aml: callback panicked", "recover", r)
//
// Without WithLogger a Loop logs nothing; Loop never requires one.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
}
