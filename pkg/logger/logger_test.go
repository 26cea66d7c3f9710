package logger

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel(" error "))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestLevelFiltersOutput(t *testing.T) {
	var buf bytes.Buffer
	origInfo, origDebug := InfoLogger, DebugLogger
	InfoLogger = log.New(&buf, "INFO: ", 0)
	DebugLogger = log.New(&buf, "DEBUG: ", 0)
	defer func() {
		InfoLogger, DebugLogger = origInfo, origDebug
		SetLevel(LevelInfo)
	}()

	SetLevel(LevelInfo)
	Debug("hidden")
	Info("shown")
	assert.Equal(t, "INFO: shown\n", buf.String())

	buf.Reset()
	SetLevel(LevelDebug)
	Debug("now visible")
	assert.Equal(t, "DEBUG: now visible\n", buf.String())
}
