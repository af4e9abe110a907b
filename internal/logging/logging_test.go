package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewConsoleLogger(t *testing.T) {
	logger, err := New("debug", "console")
	require.NoError(t, err)
	require.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestNewJSONLoggerRespectsLevel(t *testing.T) {
	logger, err := New("warn", "json")
	require.NoError(t, err)
	require.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	require.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New("loud", "console")
	require.Error(t, err)
}

func TestFieldHelpers(t *testing.T) {
	require.Equal(t, KeyPRID, PR(12).Key)
	require.Equal(t, int64(12), PR(12).Integer)
	require.Equal(t, "commits", Kind("commits").String)
}
