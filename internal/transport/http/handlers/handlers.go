package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/pribylovaa/club-portal/internal/credential"
	"github.com/pribylovaa/club-portal/internal/models"
	"github.com/pribylovaa/club-portal/internal/service"
)

// maxBodyBytes — предел тела запроса для JSON-эндпойнтов.
const maxBodyBytes = 1 << 20

// AuthService — операции сервисного слоя, нужные хендлерам.
type AuthService interface {
	Signup(ctx context.Context, username, email, password string) (*models.TokenPair, error)
	Login(ctx context.Context, email, password string) (*models.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	VerifyAccess(ctx context.Context, accessToken string) (credential.Claims, error)
	UserRole(ctx context.Context, accessToken string) (models.Role, error)
	ChangeRole(ctx context.Context, userID uuid.UUID, role models.Role) error
}

var _ AuthService = (*service.Service)(nil)

// Handlers агрегирует зависимости хендлеров.
type Handlers struct {
	svc AuthService
}

func New(svc AuthService) *Handlers {
	return &Handlers{svc: svc}
}

// decodeStrict — строгий JSON-декодер: неизвестные поля и хвост после объекта запрещены.
func decodeStrict(w http.ResponseWriter, r *http.Request, value any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(value); err != nil {
		return err
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("unexpected trailing data")
	}

	return nil
}
