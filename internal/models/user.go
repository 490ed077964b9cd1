package models

import (
	"time"

	"github.com/google/uuid"
)

// User — учётная запись участника клуба.
type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
