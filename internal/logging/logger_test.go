package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info")
	require.NotNil(t, log)

	log.Info().Msg("widget opened")
	assert.Contains(t, buf.String(), "widget opened")
}

func TestSubAndWith(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug")

	log.Sub("connector").With("endpoint", "wss://bridge").Info().Msg("dialing")
	out := buf.String()
	assert.Contains(t, out, "dialing")
	assert.Contains(t, out, `"subsystem":"connector"`)
	assert.Contains(t, out, `"endpoint":"wss://bridge"`)
}

func TestLogLevels(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn")

	log.Debug().Msg("debug msg")
	log.Info().Msg("info msg")
	assert.Empty(t, buf.String())

	log.Warn().Msg("warn msg")
	assert.Contains(t, buf.String(), "warn msg")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"silent", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
		{"DEBUG", zerolog.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

func TestSilentAndNop(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "silent").Error().Msg("should not appear")
	assert.Empty(t, buf.String())

	// Nop must be usable without a writer.
	Nop().Sub("x").Error().Msg("discarded")
}

func TestConsoleWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(ConsoleWriter(&buf, "json"), "info")
	log.Info().Msg("raw")
	assert.Contains(t, buf.String(), `"message":"raw"`)
}
