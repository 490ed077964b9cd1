// errors стандартизирует ответы об ошибках HTTP-слоя.
// На вход принимает ошибку сервисного слоя, на выход даёт:
//   - HTTP-статус;
//   - тело {status:"failed", message} без утечки внутренних деталей.
//
// Источник истинности по маппингу — sentinel-ошибки пакета service.
package errors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pribylovaa/club-portal/internal/models"
	"github.com/pribylovaa/club-portal/internal/service"
)

// Нестандартный код часто используемый для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

const StatusFailed = models.StatusFailed

var (
	// ErrBadRequest — тело запроса не разбирается или не проходит схему.
	ErrBadRequest = errors.New("bad request")
	// ErrInsufficientRole — токен валиден, но роль не допускает операцию.
	ErrInsufficientRole = errors.New("insufficient role")
)

// Response — тело ответа об ошибке.
// RequestID прокидывается из X-Request-Id для трассировки.
type Response struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

// ToHTTP конвертирует ошибку в HTTP-статус и тело ответа.
// err == nil — программная ошибка вызова: 500, чтобы не маскировать баг.
func ToHTTP(err error) (int, Response) {
	status, msg := mapError(err)
	return status, Response{Status: StatusFailed, Message: msg}
}

// WriteError пишет статус и тело ошибки, добавляя request_id из заголовка.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.RequestID = rid
	}

	WriteJSON(w, status, resp)
}

// WriteJSON пишет v как JSON с заданным статусом.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// mapError — порядок важен: частные ошибки проверяются раньше общих.
func mapError(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, "internal server error"

	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "Invalid request body"
	case errors.Is(err, service.ErrMissingToken):
		return http.StatusBadRequest, "Unauthorized: Missing token"
	case errors.Is(err, service.ErrInvalidRefreshToken):
		return http.StatusForbidden, "Unauthorized: Invalid or expired refresh token"
	case errors.Is(err, service.ErrInvalidToken):
		return http.StatusForbidden, "Unauthorized: Invalid or expired token"
	case errors.Is(err, ErrInsufficientRole):
		return http.StatusForbidden, "Forbidden: insufficient role"

	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password"
	case errors.Is(err, service.ErrTooManyAttempts):
		return http.StatusTooManyRequests, "Too many login attempts, try again later"

	case errors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict, "Email is already registered"
	case errors.Is(err, service.ErrUserExists):
		return http.StatusConflict, "User with this email or username already exists"

	case errors.Is(err, service.ErrInvalidEmail):
		return http.StatusBadRequest, "Invalid email format"
	case errors.Is(err, service.ErrInvalidUsername):
		return http.StatusBadRequest, "Username must be 1-64 characters of letters, digits, '.', '_' or '-'"
	case errors.Is(err, service.ErrEmptyPassword):
		return http.StatusBadRequest, "Password is required"
	case errors.Is(err, service.ErrWeakPassword):
		return http.StatusBadRequest, "Password must be at least 8 characters and contain lower and upper case letters, a digit and a symbol"
	case errors.Is(err, service.ErrInvalidRole):
		return http.StatusBadRequest, "Invalid role"
	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, "User not found"

	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, "request canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "request timed out"

	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
