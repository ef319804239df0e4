package flagkit

import (
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
)

// LogLevel controls which log lines a Logger actually emits.
type LogLevel int

// Log levels, ordered from most to least verbose.
const (
	LogLevelDebug LogLevel = iota - 2
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelNone
)

// Logger is the structured logging sink flagkit writes to. Debugf/Infof/
// Warnf/Errorf mirror the standard printf-style logging contract; hosts
// can plug in any backend that satisfies it.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// logrusLogger adapts a *logrus.Logger to the Logger interface.
type logrusLogger struct {
	entry *logrus.Logger
}

var _ Logger = (*logrusLogger)(nil)

// DefaultLogger returns a Logger backed by logrus with a text formatter
// and level reporting set to warn and above; most hosts will want to
// construct their own *logrus.Logger and pass it to NewLogger instead.
func DefaultLogger() Logger {
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)
	return NewLogger(l)
}

// NewLogger wraps an existing *logrus.Logger as a flagkit Logger, letting
// hosts reuse whatever logrus configuration (formatter, hooks, output)
// they already run.
func NewLogger(l *logrus.Logger) Logger {
	return &logrusLogger{entry: l}
}

func (l *logrusLogger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *logrusLogger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *logrusLogger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *logrusLogger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

// leveledLogger adds the numeric event ID that the wire/ops contract
// requires on every log line and routes errors to the OnError hook.
type leveledLogger struct {
	level LogLevel
	log   Logger
	hooks *Hooks
}

func newLeveledLogger(log Logger, level LogLevel, hooks *Hooks) *leveledLogger {
	if log == nil {
		log = DefaultLogger()
	}
	return &leveledLogger{level: level, log: log, hooks: hooks}
}

func (l *leveledLogger) Debug(eventID int, format string, args ...interface{}) {
	if l.level > LogLevelDebug {
		return
	}
	l.log.Debugf(prefixEvent(eventID, format), args...)
}

func (l *leveledLogger) Info(eventID int, format string, args ...interface{}) {
	if l.level > LogLevelInfo {
		return
	}
	l.log.Infof(prefixEvent(eventID, format), args...)
}

func (l *leveledLogger) Warn(eventID int, format string, args ...interface{}) {
	if l.level > LogLevelWarn {
		return
	}
	l.log.Warnf(prefixEvent(eventID, format), args...)
}

func (l *leveledLogger) Error(eventID int, format string, args ...interface{}) {
	if l.level <= LogLevelError {
		l.log.Errorf(prefixEvent(eventID, format), args...)
	}
	if l.hooks != nil {
		l.hooks.fireError(fmt.Errorf(prefixEvent(eventID, format), args...))
	}
}

func prefixEvent(eventID int, format string) string {
	return "[" + strconv.Itoa(eventID) + "] " + format
}
