package utils

import (
	"log"
	"os"
	"strings"
	"time"
)

// LogLevel controls the verbosity of the session core's diagnostic logging.
type LogLevel uint8

const (
	logEnv = "WEBTRANSPORT_LOG_LEVEL"

	// LogLevelNothing disables logging.
	LogLevelNothing LogLevel = 0
	// LogLevelError enables error logs.
	LogLevelError LogLevel = 1
	// LogLevelInfo enables info logs (session lifecycle, stream/context churn).
	LogLevelInfo LogLevel = 2
	// LogLevelDebug enables debug logs (frame- and byte-level detail).
	LogLevelDebug LogLevel = 3
)

var timeFormat = ""

// Logger is a leveled, optionally-prefixed logger. The zero value logs at
// LogLevelNothing; use DefaultLogger or DefaultLogger.WithPrefix to get a
// usable logger.
type Logger struct {
	prefix   string
	logLevel LogLevel
}

// DefaultLogger is the package-wide logger, seeded from the
// WEBTRANSPORT_LOG_LEVEL environment variable.
var DefaultLogger = &Logger{}

func init() {
	log.SetFlags(0)
	DefaultLogger.logLevel = readLoggingEnv()
}

// SetLogLevel sets the log level of l.
func (l *Logger) SetLogLevel(level LogLevel) {
	l.logLevel = level
}

// SetLogTimeFormat sets the format used to prefix log lines with a
// timestamp. An empty string disables timestamps. The format is shared by
// every Logger, matching how the standard log package's flags are global.
func (l *Logger) SetLogTimeFormat(format string) {
	timeFormat = format
}

// WithPrefix returns a child logger that tags every line with prefix, in
// addition to any prefix already carried by l.
func (l *Logger) WithPrefix(prefix string) *Logger {
	p := prefix
	if l.prefix != "" {
		p = l.prefix + " " + prefix
	}
	return &Logger{prefix: p, logLevel: l.logLevel}
}

// Debug returns true if l is logging at LogLevelDebug.
func (l *Logger) Debug() bool {
	return l.logLevel == LogLevelDebug
}

// Debugf logs something at LogLevelDebug.
func (l *Logger) Debugf(format string, args ...interface{}) {
	if l.logLevel == LogLevelDebug {
		l.logMessage(format, args...)
	}
}

// Infof logs something at LogLevelInfo.
func (l *Logger) Infof(format string, args ...interface{}) {
	if l.logLevel >= LogLevelInfo {
		l.logMessage(format, args...)
	}
}

// Errorf logs something at LogLevelError.
func (l *Logger) Errorf(format string, args ...interface{}) {
	if l.logLevel >= LogLevelError {
		l.logMessage(format, args...)
	}
}

func (l *Logger) logMessage(format string, args ...interface{}) {
	msg := format
	if l.prefix != "" {
		msg = l.prefix + ": " + format
	}
	if timeFormat != "" {
		log.Printf(time.Now().Format(timeFormat)+" "+msg, args...)
		return
	}
	log.Printf(msg, args...)
}

func readLoggingEnv() LogLevel {
	switch strings.ToUpper(os.Getenv(logEnv)) {
	case "DEBUG":
		return LogLevelDebug
	case "INFO":
		return LogLevelInfo
	case "ERROR":
		return LogLevelError
	default:
		return LogLevelNothing
	}
}
