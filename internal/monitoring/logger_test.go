package monitoring

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLogf(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogf(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	assert.True(t, called, "custom logger was not called")

	// nil installs a no-op
	called = false
	SetLogf(nil)
	Logf("test")
	assert.False(t, called)
}

func TestLogf_Default(t *testing.T) {
	original := Logger()
	defer SetLogger(original)

	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))

	Logf("frame %s has %d lasers", "abc", 5)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "frame abc has 5 lasers", entry["message"])
}

func TestComponent(t *testing.T) {
	original := Logger()
	defer SetLogger(original)

	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))

	l := Component("stream")
	l.Warn().Str("stream_id", "s-1").Msg("slow consumer")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "stream", entry["component"])
	assert.Equal(t, "s-1", entry["stream_id"])
	assert.Equal(t, "warn", entry["level"])
}

func TestConfigure(t *testing.T) {
	original := Logger()
	defer SetLogger(original)

	var buf bytes.Buffer
	require.NoError(t, Configure(&buf, "warn", false))

	l := Logger()
	l.Info().Msg("dropped")
	assert.Zero(t, buf.Len(), "info must be filtered at warn level")

	l.Error().Msg("kept")
	assert.Contains(t, buf.String(), "kept")

	assert.Error(t, Configure(&buf, "loud", false))
}
