// Package logging provides the process-wide logger.
//
// Everything goes to stderr: stdout carries the MCP protocol when the server
// runs over stdio, so a stray line there would corrupt the stream.
package logging

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log level names accepted by SetLevel and the configuration file.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Logger is the subset of zap's SugaredLogger used across the module.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	With(args ...any) *zap.SugaredLogger
	Sync() error
}

var (
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

	// Default is the shared logger. Replace it with New in tests that need
	// to capture output.
	Default Logger = New(os.Stderr)
)

var encoderConfig = zapcore.EncoderConfig{
	TimeKey:        "ts",
	LevelKey:       "lvl",
	NameKey:        "name",
	CallerKey:      "caller",
	MessageKey:     "message",
	StacktraceKey:  "stacktrace",
	LineEnding:     zapcore.DefaultLineEnding,
	EncodeLevel:    zapcore.CapitalLevelEncoder,
	EncodeTime:     zapcore.RFC3339TimeEncoder,
	EncodeDuration: zapcore.StringDurationEncoder,
	EncodeCaller:   zapcore.ShortCallerEncoder,
}

// New builds a console logger writing to w that shares the global level.
func New(w io.Writer) *zap.SugaredLogger {
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(w),
		level,
	)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
}

// SetLevel changes the level of every logger built by New.
// Unknown names fall back to info.
func SetLevel(name string) {
	level.SetLevel(ParseLevel(name))
}

// ParseLevel maps a level name to a zap level.
func ParseLevel(name string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn, "warning":
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Debugf logs at debug level on Default.
func Debugf(format string, args ...any) { Default.Debugf(format, args...) }

// Infof logs at info level on Default.
func Infof(format string, args ...any) { Default.Infof(format, args...) }

// Warnf logs at warn level on Default.
func Warnf(format string, args ...any) { Default.Warnf(format, args...) }

// Errorf logs at error level on Default.
func Errorf(format string, args ...any) { Default.Errorf(format, args...) }

// Sync flushes Default.
func Sync() {
	_ = Default.Sync()
}
