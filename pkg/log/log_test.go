package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitJSONOutputIncludesScopedFields(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, JSONOutput: true, Output: &buf})

	WithProvider("eppo").Info().Msg("ready")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "eppo", line["provider"])
	require.Equal(t, "ready", line["message"])
}

func TestInitUnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: Level("bogus"), JSONOutput: true, Output: &buf})

	WithComponent("store").Debug().Msg("should be suppressed")
	require.Empty(t, buf.String())

	WithComponent("store").Info().Msg("should appear")
	require.NotEmpty(t, buf.String())
}
