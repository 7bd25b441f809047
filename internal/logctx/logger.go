package logctx

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

const (
	FormatJSON = "json"
	FormatText = "text"
)

// NewLogger builds the process logger writing to w. "json" emits one JSON
// object per record, "text" emits coloured human-readable lines. Records
// logged inside a span carry its trace and span ids.
func NewLogger(w io.Writer, level slog.Level, format string) (*slog.Logger, error) {
	var h slog.Handler

	switch strings.ToLower(format) {
	case FormatJSON, "":
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	case FormatText:
		h = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
		})
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	return slog.New(NewTraceHandler(h)), nil
}
