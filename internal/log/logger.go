// Package log provides the process logger: a small interface backed by logrus.
package log

import (
	"io"
	"os"
	"sync"
)

type Logger interface {
	Print(args ...interface{})
	Printf(format string, args ...interface{})

	Trace(args ...interface{})
	Tracef(format string, args ...interface{})

	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsTraceEnabled() bool
	IsDebugEnabled() bool
	IsInfoEnabled() bool
}

var (
	mu     sync.RWMutex
	logger Logger = mustDefault()
)

// GetLogger returns the process logger. Before Init it logs info and above to stderr.
func GetLogger() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Init replaces the process logger. Log lines always go to stderr, so stdout
// stays reserved for command output; a rotating file is added when enabled.
func Init(cfg *LoggerConfig) error {
	return InitWithWriter(cfg, os.Stderr)
}

// InitWithWriter is Init with console output sent to w instead of stderr.
func InitWithWriter(cfg *LoggerConfig, w io.Writer) error {
	l, err := newLogrusLogger(cfg, w)
	if err != nil {
		return err
	}
	mu.Lock()
	prev := logger
	logger = l
	mu.Unlock()
	closeLogger(prev)
	return nil
}

// Close releases file appenders held by the process logger.
func Close() error {
	return closeLogger(GetLogger())
}

func closeLogger(l Logger) error {
	if a, ok := l.(*logrusAdapter); ok && a.out != nil {
		return a.out.Close()
	}
	return nil
}

func mustDefault() Logger {
	l, err := newLogrusLogger(&LoggerConfig{Level: "info"}, os.Stderr)
	if err != nil {
		panic(err)
	}
	return l
}
