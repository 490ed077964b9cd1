package handlers

import (
	"fmt"
	"net/http"

	"github.com/pribylovaa/club-portal/internal/models"
	apierrors "github.com/pribylovaa/club-portal/internal/transport/http/errors"
	"github.com/pribylovaa/club-portal/internal/transport/http/middleware"
)

// Login — POST /auth/login.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in models.AuthLoginRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, fmt.Errorf("%w: %v", apierrors.ErrBadRequest, err))
		return
	}

	tp, err := h.svc.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	apierrors.WriteJSON(w, http.StatusOK, models.AuthResponse{
		Status:       models.StatusSuccess,
		Message:      "Login successful",
		AccessToken:  tp.AccessToken,
		RefreshToken: tp.RefreshToken,
	})
}

// Signup — POST /auth/signup.
func (h *Handlers) Signup(w http.ResponseWriter, r *http.Request) {
	var in models.AuthSignupRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, fmt.Errorf("%w: %v", apierrors.ErrBadRequest, err))
		return
	}

	tp, err := h.svc.Signup(r.Context(), in.Username, in.Email, in.Password)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	apierrors.WriteJSON(w, http.StatusOK, models.AuthResponse{
		Status:       models.StatusSuccess,
		Message:      "Signup successful",
		AccessToken:  tp.AccessToken,
		RefreshToken: tp.RefreshToken,
	})
}

// VerifyJWT — GET /auth/verifyJWT, Bearer access.
func (h *Handlers) VerifyJWT(w http.ResponseWriter, r *http.Request) {
	if _, err := h.svc.VerifyAccess(r.Context(), middleware.BearerToken(r)); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	apierrors.WriteJSON(w, http.StatusOK, models.AuthResponse{
		Status:  models.StatusSuccess,
		Message: "Token is valid",
	})
}

// RefreshToken — GET /auth/refreshToken, Bearer refresh.
func (h *Handlers) RefreshToken(w http.ResponseWriter, r *http.Request) {
	access, err := h.svc.Refresh(r.Context(), middleware.BearerToken(r))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	apierrors.WriteJSON(w, http.StatusOK, models.AuthResponse{
		Status:      models.StatusSuccess,
		AccessToken: access,
	})
}

// GetUserRole — GET /auth/getUserRole, Bearer access.
func (h *Handlers) GetUserRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.svc.UserRole(r.Context(), middleware.BearerToken(r))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	apierrors.WriteJSON(w, http.StatusOK, models.AuthResponse{
		Status: models.StatusSuccess,
		Role:   role,
	})
}
