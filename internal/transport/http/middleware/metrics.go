package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/club-portal/internal/metrics"
)

// Metrics учитывает запрос по шаблону маршрута chi.
// Шаблон известен только после маршрутизации, поэтому читается после next.
func Metrics(m *metrics.Server) Middleware {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := wrap(w)
			start := time.Now()
			next.ServeHTTP(sw, r)

			var route string
			if rc := chi.RouteContext(r.Context()); rc != nil {
				route = rc.RoutePattern()
			}
			m.HTTPRequest(r.Method, route, sw.Status(), time.Since(start))
		})
	}
}
