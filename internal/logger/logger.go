// Package logger is the process logger. It writes to stderr only, since
// stdout carries the stdio tool transport.
package logger

import (
	"strings"
	"sync"
)

// Log levels accepted from LOG_LEVEL, the log_level key or --log-level.
// Anything else falls back to InfoLevel.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

// Levels lists the accepted level names, most verbose first.
var Levels = []string{DebugLevel, InfoLevel, WarnLevel, ErrorLevel}

// LevelHelp renders Levels for flag usage text.
func LevelHelp() string {
	return strings.Join(Levels, ", ")
}

var (
	processLogger *Logger
	once          sync.Once
)

// Get returns the process logger. The level of the first call wins; later
// calls return the same instance.
func Get(level string) *Logger {
	once.Do(func() {
		processLogger = newZapLogger(level)
	})
	return processLogger
}
