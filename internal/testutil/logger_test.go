package testutil

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTestLogger(t *testing.T) {
	t.Parallel()

	logger := NewTestLogger(t)
	assert.True(t, logger.Enabled(t.Context(), slog.LevelDebug))
	logger.Debug("visible with -v", "key", "value")
}
