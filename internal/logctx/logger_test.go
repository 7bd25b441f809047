package logctx

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_Formats(t *testing.T) {
	tests := []struct {
		name     string
		format   string
		contains string
	}{
		{"json", FormatJSON, `"msg":"fetch started"`},
		{"default is json", "", `"msg":"fetch started"`},
		{"text", FormatText, "fetch started"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer

			logger, err := NewLogger(&buf, slog.LevelInfo, tt.format)
			require.NoError(t, err)

			logger.Info("fetch started", "date", "2024-12-07")
			logger.Debug("hidden")

			assert.Contains(t, buf.String(), tt.contains)
			assert.Contains(t, buf.String(), "2024-12-07")
			assert.NotContains(t, buf.String(), "hidden")
		})
	}
}

func TestNewLogger_UnknownFormat(t *testing.T) {
	_, err := NewLogger(&bytes.Buffer{}, slog.LevelInfo, "xml")
	assert.Error(t, err)
}

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(slog.NewTextHandler(&buf, nil))
	ctx := WithLogger(context.Background(), logger)

	assert.Same(t, logger, LoggerFromContext(ctx))

	// Without a logger nothing is written anywhere.
	LoggerFromContext(context.Background()).Error("dropped")
	assert.Empty(t, buf.String())
}
