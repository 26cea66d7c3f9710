package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	InfoLogger  *log.Logger
	ErrorLogger *log.Logger
	DebugLogger *log.Logger
	WarnLogger  *log.Logger

	level atomic.Int32
)

func init() {
	InfoLogger = log.New(os.Stdout, "INFO: ", log.Ldate|log.Ltime|log.Lshortfile)
	ErrorLogger = log.New(os.Stderr, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile)
	DebugLogger = log.New(os.Stdout, "DEBUG: ", log.Ldate|log.Ltime|log.Lshortfile)
	WarnLogger = log.New(os.Stdout, "WARN: ", log.Ldate|log.Ltime|log.Lshortfile)
	level.Store(int32(LevelInfo))
}

// ParseLevel accepts debug, info, warn or error. Unknown names map to info.
func ParseLevel(name string) Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	}
	return LevelInfo
}

func SetLevel(l Level) {
	level.Store(int32(l))
}

func enabled(l Level) bool {
	return Level(level.Load()) <= l
}

func Info(format string, v ...interface{}) {
	if enabled(LevelInfo) {
		InfoLogger.Output(2, fmt.Sprintf(format, v...))
	}
}

func Error(format string, v ...interface{}) {
	ErrorLogger.Output(2, fmt.Sprintf(format, v...))
}

func Debug(format string, v ...interface{}) {
	if enabled(LevelDebug) {
		DebugLogger.Output(2, fmt.Sprintf(format, v...))
	}
}

func Warn(format string, v ...interface{}) {
	if enabled(LevelWarn) {
		WarnLogger.Output(2, fmt.Sprintf(format, v...))
	}
}

// LogTransition records a committed lifecycle transition.
func LogTransition(requestID, from, to, actorID string, version int64) {
	if enabled(LevelInfo) {
		InfoLogger.Output(2, fmt.Sprintf("Transition: request=%s %s -> %s actor=%s version=%d", requestID, from, to, actorID, version))
	}
}

// LogTransitionRejected records a rejected mutation; rejections are expected traffic, not errors.
func LogTransitionRejected(requestID, action, actorID string, err error) {
	if enabled(LevelWarn) {
		WarnLogger.Output(2, fmt.Sprintf("Transition rejected: action=%s request=%s actor=%s error=%v", action, requestID, actorID, err))
	}
}
