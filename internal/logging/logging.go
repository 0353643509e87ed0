// Package logging configures the process-wide zap logger.
package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	logger = zap.NewNop().Sugar()
)

// ParseLevel maps a level name to a zap level.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level %q (expected debug, info, warn, or error)", level)
}

// Init builds the global logger. Logs go to stderr so command output on
// stdout stays machine readable.
func Init(level string, json bool) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	var cfg zap.Config
	if lvl == zapcore.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Sampling = nil
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	if json {
		cfg.Encoding = "json"
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	Set(l.Sugar())
	return nil
}

// Set replaces the global logger.
func Set(l *zap.SugaredLogger) {
	if l == nil {
		l = zap.NewNop().Sugar()
	}
	mu.Lock()
	logger = l
	mu.Unlock()
}

// L returns the global logger.
func L() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// New returns the global logger tagged with a component name.
func New(component string) *zap.SugaredLogger {
	return L().Named(component)
}

// Sync flushes buffered entries. Errors from syncing a terminal are ignored.
func Sync() {
	_ = L().Sync()
}

// Fatal logs err and exits with code 2.
func Fatal(err error) {
	L().Errorw("fatal", "error", err)
	Sync()
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(2)
}

// Nop returns a logger that discards everything.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
