package telemetry

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/italolelis/epic_wallpaper/internal/logctx"
)

// HTTPLogging writes one record per request with the matched route, the
// status and the response size. Server errors log at ERROR, client errors
// at WARN.
func HTTPLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := newStatusRecorder(w)

		next.ServeHTTP(rec, r)

		ctx := r.Context()
		logctx.LoggerFromContext(ctx).LogAttrs(ctx, levelForStatus(rec.status), "http request completed",
			slog.String("method", r.Method),
			slog.String("route", routePattern(r)),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Int64("bytes", rec.size),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

func levelForStatus(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
