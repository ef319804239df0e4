package flagkit

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

type capturingLogger struct {
	debugs, infos, warns, errors []string
}

func (l *capturingLogger) Debugf(format string, args ...interface{}) {
	l.debugs = append(l.debugs, format)
}
func (l *capturingLogger) Infof(format string, args ...interface{}) {
	l.infos = append(l.infos, format)
}
func (l *capturingLogger) Warnf(format string, args ...interface{}) {
	l.warns = append(l.warns, format)
}
func (l *capturingLogger) Errorf(format string, args ...interface{}) {
	l.errors = append(l.errors, format)
}

func TestLeveledLoggerFiltersBelowConfiguredLevel(t *testing.T) {
	c := qt.New(t)
	cap := &capturingLogger{}
	logger := newLeveledLogger(cap, LogLevelWarn, NewHooks())

	logger.Debug(1000, "debug line")
	logger.Info(1001, "info line")
	logger.Warn(1002, "warn line")

	c.Assert(cap.debugs, qt.HasLen, 0)
	c.Assert(cap.infos, qt.HasLen, 0)
	c.Assert(cap.warns, qt.HasLen, 1)
	c.Assert(cap.warns[0], qt.Equals, "[1002] warn line")
}

func TestLeveledLoggerErrorAlwaysFiresOnErrorHook(t *testing.T) {
	c := qt.New(t)
	cap := &capturingLogger{}
	hooks := NewHooks()
	var reported error
	hooks.OnError(func(err error) { reported = err })

	logger := newLeveledLogger(cap, LogLevelNone, hooks)
	logger.Error(2000, "fetch failed: %s", "timeout")

	c.Assert(cap.errors, qt.HasLen, 0)
	c.Assert(reported, qt.IsNotNil)
	c.Assert(reported.Error(), qt.Contains, "timeout")
}

func TestDefaultLoggerIsNotNil(t *testing.T) {
	c := qt.New(t)
	c.Assert(DefaultLogger(), qt.IsNotNil)
}
