package relink

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestWriterLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf).WithField("url", "ws://x").WithField("type", "manager")

	logger.Infof("state %s -> %s", StateIdle, StateConnecting)
	logger.Error("boom")

	out := buf.String()
	assert.Contains(t, out, "INFO [type=manager, url=ws://x]: state idle -> connecting\n")
	assert.Contains(t, out, "ERROR [type=manager, url=ws://x]: boom\n")
}

func TestWriterLogger_WithFieldDoesNotLeak(t *testing.T) {
	var buf bytes.Buffer
	root := NewWriterLogger(&buf)
	_ = root.WithField("k", "v")

	root.Warn("plain")
	assert.Contains(t, buf.String(), "WARN: plain\n")
}

func TestZerologLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(zerolog.New(&buf).Level(zerolog.InfoLevel)).WithField("type", "manager")

	logger.Debug("hidden")
	logger.Infof("attempt %d", 3)
	logger.Warn("careful")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"level":"info"`)
	assert.Contains(t, out, `"type":"manager"`)
	assert.Contains(t, out, `"message":"attempt 3"`)
	assert.Contains(t, out, `"message":"careful"`)
}
