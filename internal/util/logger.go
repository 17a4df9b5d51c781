// Package util provides helper functions for logging events
package util

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync/atomic"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

var debugEnabled atomic.Bool

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// LoggerOptions selects where process logs go.
type LoggerOptions struct {
	File       string // rotating log file; empty logs to stderr only
	MaxSizeMB  int
	MaxBackups int
	Debug      bool
}

// SetupLogger points the standard logger at stderr and, when configured,
// a rotating file. The returned closer flushes the file on shutdown.
func SetupLogger(opts LoggerOptions) io.Closer {
	log.SetFlags(0)
	debugEnabled.Store(opts.Debug)
	if opts.File == "" {
		log.SetOutput(os.Stderr)
		return nopCloser{}
	}
	rotator := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotator))
	return rotator
}

// SetDebug toggles Debug output at runtime.
func SetDebug(on bool) { debugEnabled.Store(on) }

// DebugEnabled reports whether Debug output is on.
func DebugEnabled() bool { return debugEnabled.Load() }

// Info prints general system information messages with timestamp.
func Info(msg string, args ...any) {
	log.Printf("[INFO] %s | %s", time.Now().Format(time.RFC3339), fmt.Sprintf(msg, args...))
}

// Warn prints recoverable problems with timestamp.
func Warn(msg string, args ...any) {
	log.Printf("[WARN] %s | %s", time.Now().Format(time.RFC3339), fmt.Sprintf(msg, args...))
}

// Error prints error messages with timestamp.
func Error(msg string, args ...any) {
	log.Printf("[ERROR] %s | %s", time.Now().Format(time.RFC3339), fmt.Sprintf(msg, args...))
}

// Debug prints diagnostics when debug logging is enabled.
func Debug(msg string, args ...any) {
	if !debugEnabled.Load() {
		return
	}
	log.Printf("[DEBUG] %s | %s", time.Now().Format(time.RFC3339), fmt.Sprintf(msg, args...))
}
