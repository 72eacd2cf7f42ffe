package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_TagsComponent(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "room", zerolog.InfoLevel)
	log.Info().Str("session", "abc").Msg("created")
	log.Debug().Msg("hidden")

	out := buf.String()
	assert.Contains(t, out, "created")
	assert.Contains(t, out, "logger=")
	assert.Contains(t, out, "room")
	assert.NotContains(t, out, "hidden")
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, lvl)

	lvl, err = ParseLevel(" DEBUG ")
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}
