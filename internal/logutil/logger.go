// Package logutil is a tiny level-gated wrapper around the standard
// log package. It has zero third-party dependencies on purpose: the
// raft core embeds it so it never pulls in anything beyond the
// standard library.
package logutil

import "log"

// Log levels, lowest to highest verbosity.
const (
	LevelError = 1
	LevelWarning = 2
	LevelInfo = 3
	LevelTrace = 4
)

var logger = log.New(log.Writer(), log.Prefix(), log.Flags())
var logLevel = LevelInfo

// SetLevel sets the global log level, clamped to [LevelError, LevelTrace].
func SetLevel(level int) {
	if level < LevelError {
		level = LevelError
	}
	if level > LevelTrace {
		level = LevelTrace
	}
	logLevel = level
}

// Write writes a log entry if level is at or below the current log level.
func Write(level int, format string, v ...interface{}) {
	if level <= logLevel {
		logger.Printf(format, v...)
	}
}

// Error writes an error-level log.
func Error(format string, v ...interface{}) {
	Write(LevelError, format, v...)
}

// Warning writes a warning-level log.
func Warning(format string, v ...interface{}) {
	Write(LevelWarning, format, v...)
}

// Info writes an info-level log.
func Info(format string, v ...interface{}) {
	Write(LevelInfo, format, v...)
}

// Trace writes a trace-level log.
func Trace(format string, v ...interface{}) {
	Write(LevelTrace, format, v...)
}

// Panicf logs and panics, for invariant violations the core cannot recover from.
func Panicf(format string, v ...interface{}) {
	logger.Panicf(format, v...)
}

// Max returns the larger of two uint64s.
func Max(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

// Min returns the smaller of two uint64s.
func Min(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
