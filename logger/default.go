package logger

import "sync"

var (
	defMu     sync.RWMutex
	defLogger Logger = NewSlog(InfoLevel, false)
)

// Default returns the package default logger.
func Default() Logger {
	defMu.RLock()
	defer defMu.RUnlock()

	return defLogger
}

// SetDefault replaces the package default logger. A nil logger is ignored.
//
// Adapters, channels and the simulated bus take the default when they are created,
// so SetDefault only affects components built after the call.
func SetDefault(l Logger) {
	if l == nil {
		return
	}

	defMu.Lock()
	defLogger = l
	defMu.Unlock()
}

// GetLogger returns the package default logger. Components fall back to it when no
// logger is configured.
func GetLogger() Logger {
	return Default()
}

func Debug(msg string, keysAndValues ...any) {
	Default().Debug(msg, keysAndValues...)
}

func Info(msg string, keysAndValues ...any) {
	Default().Info(msg, keysAndValues...)
}

func Warn(msg string, keysAndValues ...any) {
	Default().Warn(msg, keysAndValues...)
}

func Error(msg string, keysAndValues ...any) {
	Default().Error(msg, keysAndValues...)
}

func Fatal(msg string, keysAndValues ...any) {
	Default().Fatal(msg, keysAndValues...)
}

func SetLevel(level Level) {
	Default().SetLevel(level)
}

func With(keyValues ...any) Logger {
	return Default().With(keyValues...)
}
