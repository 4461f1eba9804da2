package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
		"":      zapcore.InfoLevel,
		"loud":  zapcore.InfoLevel,
	}
	for in, want := range cases {
		log, err := New(Config{Environment: "production", LogLevel: in, ServiceName: "test"})
		require.NoError(t, err)
		assert.True(t, log.Core().Enabled(want), "level %q", in)
		if want > zapcore.DebugLevel {
			assert.False(t, log.Core().Enabled(want-1), "level %q", in)
		}
	}
}

func TestNewDefaultsToDevelopment(t *testing.T) {
	log, err := New(Config{ServiceName: "test"})
	require.NoError(t, err)
	assert.NotNil(t, log)
}
