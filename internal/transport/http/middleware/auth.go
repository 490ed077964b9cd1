package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/pribylovaa/club-portal/internal/credential"
	"github.com/pribylovaa/club-portal/internal/models"
	logctx "github.com/pribylovaa/club-portal/internal/pkg/log"
	"github.com/pribylovaa/club-portal/internal/service"
	apierrors "github.com/pribylovaa/club-portal/internal/transport/http/errors"
)

// AccessVerifier проверяет access-токен. Реализуется *service.Service.
type AccessVerifier interface {
	VerifyAccess(ctx context.Context, accessToken string) (credential.Claims, error)
}

type claimsKey struct{}

// BearerToken извлекает токен из "Authorization: Bearer <token>".
// Схема сравнивается без учёта регистра; пустой результат — токена нет.
func BearerToken(r *http.Request) string {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}

	return strings.TrimSpace(token)
}

// RequireRole пропускает запрос, только если Bearer access-токен валиден
// и его роль входит в roles. Claims доступны хендлеру через ClaimsFrom.
func RequireRole(v AccessVerifier, roles ...models.Role) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := v.VerifyAccess(r.Context(), BearerToken(r))
			if err != nil {
				apierrors.WriteError(w, r, err)
				return
			}

			if !slices.Contains(roles, claims.Role) {
				logctx.From(r.Context()).Warn("role_forbidden",
					slog.String("user_id", claims.Subject),
					slog.String("role", claims.Role.String()),
					slog.String("path", r.URL.Path),
				)
				apierrors.WriteError(w, r, apierrors.ErrInsufficientRole)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFrom возвращает claims, положенные RequireRole.
func ClaimsFrom(ctx context.Context) (credential.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(credential.Claims)
	return c, ok
}

var _ AccessVerifier = (*service.Service)(nil)
