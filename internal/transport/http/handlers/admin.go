package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pribylovaa/club-portal/internal/models"
	logctx "github.com/pribylovaa/club-portal/internal/pkg/log"
	apierrors "github.com/pribylovaa/club-portal/internal/transport/http/errors"
	"github.com/pribylovaa/club-portal/internal/transport/http/middleware"
)

// ChangeRole — PUT /admin/users/{id}/role. Доступ проверяет middleware.RequireRole.
// Новая роль попадёт в токены пользователя только после его повторного входа.
func (h *Handlers) ChangeRole(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteError(w, r, fmt.Errorf("%w: user id: %v", apierrors.ErrBadRequest, err))
		return
	}

	var in models.ChangeRoleRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, fmt.Errorf("%w: %v", apierrors.ErrBadRequest, err))
		return
	}

	if err := h.svc.ChangeRole(r.Context(), id, in.Role); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	if actor, ok := middleware.ClaimsFrom(r.Context()); ok {
		logctx.From(r.Context()).Info("admin_role_change",
			slog.String("actor_id", actor.Subject),
			slog.String("user_id", id.String()),
			slog.String("role", in.Role.String()),
		)
	}

	apierrors.WriteJSON(w, http.StatusOK, models.AuthResponse{
		Status:  models.StatusSuccess,
		Message: "Role updated",
	})
}
