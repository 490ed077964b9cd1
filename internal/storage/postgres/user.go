package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pribylovaa/club-portal/internal/models"
	"github.com/pribylovaa/club-portal/internal/storage"
)

const userColumns = `id, username, email, password_hash, role, created_at, updated_at`

// SaveUser создает нового пользователя в БД.
func (s *Storage) SaveUser(ctx context.Context, user *models.User) error {
	const op = "storage.postgres.SaveUser"

	query := `
		INSERT INTO users(` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.db.Exec(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// UserByEmail находит пользователя по email.
func (s *Storage) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.postgres.UserByEmail"

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1
	`

	user, err := scanUser(s.db.QueryRow(ctx, query, email))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// UserByID находит пользователя по ID.
func (s *Storage) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const op = "storage.postgres.UserByID"

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1
	`

	user, err := scanUser(s.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// UpdateUserRole меняет роль пользователя.
// Уже выданные токены продолжают нести старую роль до повторного входа.
func (s *Storage) UpdateUserRole(ctx context.Context, id uuid.UUID, role models.Role) error {
	const op = "storage.postgres.UpdateUserRole"

	query := `
		UPDATE users
		SET role = $2, updated_at = $3
		WHERE id = $1
	`

	cmdTag, err := s.db.Exec(ctx, query, id, string(role), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var (
		user models.User
		role string
	)

	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, err
	}

	user.Role = models.Role(role)

	return &user, nil
}
