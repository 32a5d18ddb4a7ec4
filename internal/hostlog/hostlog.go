// Package hostlog is a thin leveled wrapper over the standard log
// package, generalizing the "LEVEL: message" prefix convention
// server.go and api.go use ad-hoc at each call site
// (log.Printf("ERROR: HTTP-%d %s", ...)) into a small reusable Logger
// so the scheduler, bridge, and store packages share one format
// instead of each hand-rolling their own prefix.
package hostlog

import (
	"io"
	"log"
	"os"
)

// Level is a logging severity, ordered least to most severe.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO "
	case LevelWarn:
		return "WARN "
	case LevelError:
		return "ERROR"
	default:
		return "?????"
	}
}

// Logger writes leveled, prefixed lines through an embedded *log.Logger.
// Messages below Min are dropped.
type Logger struct {
	std *log.Logger
	Min Level
}

// New builds a Logger writing to os.Stderr with no extra std-log flags
// (hostlog supplies its own level prefix; timestamps are left to the
// process supervisor, matching a bare log.Printf call).
func New(min Level) *Logger {
	return &Logger{std: log.New(os.Stderr, "", log.LstdFlags), Min: min}
}

// SetOutput redirects where log lines are written, mainly for tests.
func (l *Logger) SetOutput(w io.Writer) {
	l.std.SetOutput(w)
}

func (l *Logger) log(level Level, format string, args ...interface{}) {
	if level < l.Min {
		return
	}
	l.std.Printf("%s "+format, append([]interface{}{level.String()}, args...)...)
}

func (l *Logger) Debugf(format string, args ...interface{}) { l.log(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.log(LevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.log(LevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.log(LevelError, format, args...) }
