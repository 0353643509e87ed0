package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]zapcore.Level{
		"":        zapcore.InfoLevel,
		"DEBUG":   zapcore.DebugLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("trace")
	assert.Error(t, err)
}

func TestInit(t *testing.T) {
	t.Cleanup(func() { Set(nil) })
	require.NoError(t, Init("warn", true))
	assert.False(t, L().Desugar().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, L().Desugar().Core().Enabled(zapcore.WarnLevel))
	assert.Error(t, Init("loud", false))
}

func TestNewNamesComponent(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Set(zap.New(core).Sugar())
	t.Cleanup(func() { Set(nil) })

	New("session").Infow("tree loaded", "nodes", 4)
	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "session", entries[0].LoggerName)
	assert.Equal(t, "tree loaded", entries[0].Message)
	assert.EqualValues(t, 4, entries[0].ContextMap()["nodes"])
}
