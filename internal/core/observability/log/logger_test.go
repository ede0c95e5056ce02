package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"":        LevelInfo,
		"debug":   LevelDebug,
		"WARN":    LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"off":     LevelSilent,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestLoggerLevelFiltering(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core), LevelWarn)

	l.Debug("dropped")
	l.Info("dropped")
	l.Warn("kept", String("k", "v"))
	l.Error("kept too", Error(errors.New("boom")))

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "kept", logs.All()[0].Message)
	assert.Equal(t, "v", logs.All()[0].ContextMap()["k"])

	l.SetLevel(LevelDebug)
	assert.Equal(t, LevelDebug, l.GetLevel())
	l.Debug("now kept")
	assert.Equal(t, 3, logs.Len())
}

func TestLoggerWithSharesLevel(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core), LevelInfo)
	child := l.With(Uint64("agent", 7))

	child.Debug("hidden")
	l.SetLevel(LevelDebug)
	child.Debug("visible")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, uint64(7), logs.All()[0].ContextMap()["agent"])
}

func TestNopLogger(t *testing.T) {
	l := NewNop()
	assert.False(t, l.Enabled(LevelError))
	l.Error("ignored")
	assert.NotNil(t, Provide())
}
