package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	logctx "github.com/pribylovaa/club-portal/internal/pkg/log"
	apierrors "github.com/pribylovaa/club-portal/internal/transport/http/errors"
)

// Recover перехватывает panic и отвечает 500 {status:"failed"}.
// Детали паники не утекают на клиент.
func Recover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// http.ErrAbortHandler — штатный способ оборвать ответ.
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				logctx.From(r.Context()).LogAttrs(r.Context(), slog.LevelError, "panic",
					slog.String("path", r.URL.Path),
					slog.Any("reason", rec),
					slog.String("stack", string(debug.Stack())),
				)
				apierrors.WriteError(w, r, errors.New("panic"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
