package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"debug":   zerolog.DebugLevel,
		"INFO":    zerolog.InfoLevel,
		"warn":    zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, "level %q", in)
		assert.Equal(t, want, got, "level %q", in)
	}
}

func TestParseLevel_Unknown(t *testing.T) {
	for _, in := range []string{"bogus", "loud", "fatal"} {
		_, err := ParseLevel(in)
		assert.ErrorContains(t, err, "unknown log level", "level %q", in)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	_, err := ParseLevel(cfg.Level)
	require.NoError(t, err)
	assert.True(t, cfg.Pretty)
	assert.NotNil(t, cfg.Output)
}

func TestNew_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "warn", Output: &buf})

	logger.Info().Msg("info message")
	logger.Warn().Msg("warn message")

	out := buf.String()
	assert.NotContains(t, out, "info message")
	assert.Contains(t, out, "warn message")
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "debug", Output: &buf}).With().Str("component", "engine").Logger()

	logger.Debug().Str("node", "http://solr1:8983/solr").Msg("collecting")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "engine", line["component"])
	assert.Equal(t, "http://solr1:8983/solr", line["node"])
	assert.Equal(t, "collecting", line["message"])
	assert.Contains(t, line, "time")
}

func TestNew_PrettyIsNotJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "info", Pretty: true, Output: &buf})
	logger.Info().Msg("hello")

	assert.Contains(t, buf.String(), "hello")
	assert.False(t, json.Valid(buf.Bytes()))
}
