//go:generate mockgen -source=storage.go -destination=../../mocks/storage.go -package=mocks

package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/pribylovaa/club-portal/internal/models"
)

var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (email/username).
	ErrAlreadyExists = errors.New("already exists")
)

// UserStorage выполняет операции над пользователями.
type UserStorage interface {
	// SaveUser создает нового пользователя в БД.
	SaveUser(ctx context.Context, user *models.User) error
	// UserByEmail находит пользователя по email.
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	// UserByID находит пользователя по ID.
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// UpdateUserRole меняет роль пользователя.
	UpdateUserRole(ctx context.Context, id uuid.UUID, role models.Role) error
}

// Storage задает контракт работы с БД.
type Storage interface {
	UserStorage
	Close()
}
