package monitoring

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LogLevel represents the severity of a log entry.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelFatal
)

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case LogLevelDebug:
		return zerolog.DebugLevel
	case LogLevelInfo:
		return zerolog.InfoLevel
	case LogLevelWarn:
		return zerolog.WarnLevel
	case LogLevelError:
		return zerolog.ErrorLevel
	case LogLevelFatal:
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Logger provides structured logging for the lockmgr and cuckoomap
// packages. The public shape (WithField/WithFields/Debug/Info/Warn/Error/
// Fatal) is the same facade this codebase's logger has always exposed; the
// formatting and writing underneath is zerolog rather than a hand-rolled
// JSON encoder, since that's the structured logger this ecosystem reaches
// for.
type Logger struct {
	mutex         sync.RWMutex
	level         LogLevel
	base          zerolog.Logger
	contextFields map[string]interface{}
}

// NewLogger creates a new logger writing JSON lines to stdout.
func NewLogger(level LogLevel) *Logger {
	return NewLoggerOutput(level, os.Stdout)
}

// NewLoggerOutput creates a new logger writing to an arbitrary writer, for
// tests and for config-driven output redirection.
func NewLoggerOutput(level LogLevel, w io.Writer) *Logger {
	zerolog.SetGlobalLevel(zerolog.TraceLevel) // filtering happens in Logger.Log
	base := zerolog.New(w).With().Timestamp().Logger()
	return &Logger{
		level:         level,
		base:          base,
		contextFields: make(map[string]interface{}),
	}
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level LogLevel) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.level = level
}

func (l *Logger) clone() *Logger {
	newLogger := &Logger{
		level:         l.level,
		base:          l.base,
		contextFields: make(map[string]interface{}, len(l.contextFields)),
	}
	for k, v := range l.contextFields {
		newLogger.contextFields[k] = v
	}
	return newLogger
}

// WithField returns a derived Logger carrying an extra context field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	newLogger := l.clone()
	newLogger.contextFields[key] = value
	return newLogger
}

// WithFields returns a derived Logger carrying several extra context fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	newLogger := l.clone()
	for k, v := range fields {
		newLogger.contextFields[k] = v
	}
	return newLogger
}

// Log emits one entry at the given level if it passes the logger's
// configured threshold.
func (l *Logger) Log(level LogLevel, component, operation, message string, fields map[string]interface{}) {
	l.mutex.RLock()
	threshold := l.level
	l.mutex.RUnlock()
	if level < threshold {
		return
	}

	ev := l.base.WithLevel(level.zerolog())
	ev = ev.Str("component", component).Str("operation", operation).Time("ts", time.Now())

	l.mutex.RLock()
	for k, v := range l.contextFields {
		ev = ev.Interface(k, v)
	}
	l.mutex.RUnlock()
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(message)
}

func (l *Logger) Debug(component, operation, message string, fields map[string]interface{}) {
	l.Log(LogLevelDebug, component, operation, message, fields)
}

func (l *Logger) Info(component, operation, message string, fields map[string]interface{}) {
	l.Log(LogLevelInfo, component, operation, message, fields)
}

func (l *Logger) Warn(component, operation, message string, fields map[string]interface{}) {
	l.Log(LogLevelWarn, component, operation, message, fields)
}

func (l *Logger) Error(component, operation, message string, fields map[string]interface{}) {
	l.Log(LogLevelError, component, operation, message, fields)
}

func (l *Logger) Fatal(component, operation, message string, fields map[string]interface{}) {
	l.Log(LogLevelFatal, component, operation, message, fields)
}

// OperationalLogger provides the high-level events the core packages emit:
// deadlocks, acquisitions, rehashes, and operation errors.
type OperationalLogger struct {
	logger *Logger
}

// NewOperationalLogger creates a new operational logger over a fresh Logger.
func NewOperationalLogger() *OperationalLogger {
	return &OperationalLogger{logger: NewLogger(LogLevelInfo)}
}

// NewOperationalLoggerFrom wraps an existing Logger.
func NewOperationalLoggerFrom(l *Logger) *OperationalLogger {
	return &OperationalLogger{logger: l}
}

// LogDeadlock records a detected cycle or self-upgrade refusal.
func (ol *OperationalLogger) LogDeadlock(owner uint64, lockName string, cycle []uint64) {
	ol.logger.Log(LogLevelWarn, "lockmgr", "acquire", "deadlock detected", map[string]interface{}{
		"owner": owner,
		"lock":  lockName,
		"cycle": cycle,
	})
}

// LogAcquire records a completed (non-blocking or post-wait) acquisition.
func (ol *OperationalLogger) LogAcquire(owner uint64, lockName string, mode string, waited time.Duration) {
	ol.logger.Log(LogLevelDebug, "lockmgr", "acquire", "lock acquired", map[string]interface{}{
		"owner":  owner,
		"lock":   lockName,
		"mode":   mode,
		"waited": waited.String(),
	})
}

// LogRehash records a completed cuckoomap rehash.
func (ol *OperationalLogger) LogRehash(oldCapacity, newCapacity int, duration time.Duration, rolledBack bool) {
	level := LogLevelInfo
	msg := "rehash completed"
	if rolledBack {
		level = LogLevelWarn
		msg = "rehash rolled back"
	}
	ol.logger.Log(level, "cuckoomap", "rehash", msg, map[string]interface{}{
		"old_capacity": oldCapacity,
		"new_capacity": newCapacity,
		"duration":     duration.String(),
	})
}

// LogErrorEvent logs an error event.
func (ol *OperationalLogger) LogErrorEvent(component, operation, errorType string, err error, details map[string]interface{}) {
	fields := map[string]interface{}{
		"error_type": errorType,
		"error":      err.Error(),
	}
	for k, v := range details {
		fields[k] = v
	}
	ol.logger.Log(LogLevelError, component, operation, "operation failed", fields)
}
