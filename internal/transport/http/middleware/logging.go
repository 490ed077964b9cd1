package middleware

import (
	"log/slog"
	"net/http"
	"time"

	logctx "github.com/pribylovaa/club-portal/internal/pkg/log"
)

// Logging кладёт в контекст request-scoped логгер (с request_id)
// и пишет одну запись "http" на запрос.
func Logging(l *slog.Logger) Middleware {
	if l == nil {
		l = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLogger := l
			if rid := RequestIDFrom(r.Context()); rid != "" {
				reqLogger = reqLogger.With(slog.String("request_id", rid))
			}
			r = r.WithContext(logctx.Into(r.Context(), reqLogger))

			sw := wrap(w)
			start := time.Now()
			next.ServeHTTP(sw, r)

			level := slog.LevelInfo
			if sw.Status() >= http.StatusInternalServerError {
				level = slog.LevelError
			}

			reqLogger.LogAttrs(r.Context(), level, "http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", sw.Status()),
				slog.Duration("dur", time.Since(start)),
				slog.Int("bytes", sw.count),
			)
		})
	}
}
