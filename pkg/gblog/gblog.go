// Package gblog provides the logging interface used across the core. It
// wraps logrus rather than printing directly, so a host can redirect or
// silence core diagnostics.
package gblog

import (
	"github.com/sirupsen/logrus"
)

// Logger is the logging surface components take.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type logrusLogger struct {
	*logrus.Logger
}

// New returns a Logger backed by a freshly configured logrus.Logger with
// a plain TextFormatter.
func New() Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: false,
		DisableColors: false,
	})
	return &logrusLogger{l}
}

func (l *logrusLogger) Infof(format string, args ...interface{}) {
	l.Logger.Infof(format, args...)
}

func (l *logrusLogger) Errorf(format string, args ...interface{}) {
	l.Logger.Errorf(format, args...)
}

func (l *logrusLogger) Debugf(format string, args ...interface{}) {
	l.Logger.Debugf(format, args...)
}

type nullLogger struct{}

// Null returns a Logger that discards everything, for embedding contexts
// and tests that don't want console noise.
func Null() Logger {
	return nullLogger{}
}

func (nullLogger) Infof(string, ...interface{})  {}
func (nullLogger) Errorf(string, ...interface{}) {}
func (nullLogger) Debugf(string, ...interface{}) {}
