// durable — постоянная часть клиентской сессии: refresh-токен и роль.
// Переживает перезапуск клиента; несколько процессов портала, работающих
// с одним файлом, видят изменения друг друга через Watch.
package durable

import (
	"context"
	"errors"

	"github.com/pribylovaa/club-portal/internal/models"
)

// ErrCorrupt — содержимое хранилища не разбирается.
var ErrCorrupt = errors.New("durable state is corrupt")

// Snapshot — содержимое хранилища. Пустые поля означают отсутствие ключа.
type Snapshot struct {
	RefreshToken string      `json:"refreshToken,omitempty"`
	Role         models.Role `json:"role,omitempty"`
}

// Store — постоянное хранилище сессии.
type Store interface {
	// Load читает текущее содержимое; отсутствие данных — пустой Snapshot.
	Load() (Snapshot, error)
	// Save атомарно заменяет содержимое целиком.
	Save(s Snapshot) error
}

// Watcher сообщает об изменениях, сделанных ДРУГИМИ писателями.
// Канал закрывается при отмене ctx; события склеиваются.
type Watcher interface {
	Watch(ctx context.Context) (<-chan struct{}, error)
}
