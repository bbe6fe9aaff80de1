package logging_test

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/aretw0/triage/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWith_RenamesErrorKey(t *testing.T) {
	var buf bytes.Buffer
	l := logging.NewWith(&buf, logging.FormatText, slog.LevelInfo)

	l.Info("save failed", "error", errors.New("disk full"))

	assert.Contains(t, buf.String(), `err="disk full"`)
	assert.NotContains(t, buf.String(), "error=")
}

func TestNewWith_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := logging.NewWith(&buf, logging.FormatJSON, slog.LevelWarn)

	l.Info("hidden")
	l.Warn("shown", "node", "3")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"node":"3"`)
}

func TestParseLevel(t *testing.T) {
	l, err := logging.ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, l)

	_, err = logging.ParseLevel("loud")
	assert.Error(t, err)
}
