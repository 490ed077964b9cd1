// service содержит бизнес-логику сервера авторизации портала:
// регистрацию и вход пользователей, выпуск и обновление access-токенов,
// проверку токенов и смену ролей.
//
// Основные аспекты:
//   - Service не хранит состояние запроса и безопасен для конкурентного
//     использования при потокобезопасном storage.Storage;
//   - обновление access-токена не обращается к хранилищу: sub/email/role
//     копируются из refresh-токена как есть;
//   - ошибки возвращаются sentinel-значениями ниже и маппятся транспортом
//     на HTTP-коды в одном месте (internal/transport/http/errors).
package service

import (
	"errors"
	"fmt"

	"github.com/pribylovaa/club-portal/internal/credential"
	"github.com/pribylovaa/club-portal/internal/limiter"
	"github.com/pribylovaa/club-portal/internal/metrics"
	"github.com/pribylovaa/club-portal/internal/storage"
)

var (
	// ErrInvalidCredentials — пара email/пароль неверна или пользователь не найден.
	// HTTP 401.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrMissingToken — токен не передан. HTTP 400.
	ErrMissingToken = errors.New("missing token")

	// ErrInvalidToken — токен не прошёл проверку (формат, подпись, назначение, срок).
	// Причина доступна через errors.Is(err, credential.Err*). HTTP 403.
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrInvalidRefreshToken — частный случай ErrInvalidToken для эндпойнта
	// обновления; errors.Is(err, ErrInvalidToken) для него тоже истинно. HTTP 403.
	ErrInvalidRefreshToken = fmt.Errorf("%w: refresh", ErrInvalidToken)

	// ErrEmailTaken — e-mail уже занят. HTTP 409.
	ErrEmailTaken = errors.New("email already taken")

	// ErrUserExists — конфликт уникальности при сохранении (email или username). HTTP 409.
	ErrUserExists = errors.New("user already exists")

	// ErrInvalidEmail — e-mail имеет некорректный формат. HTTP 400.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrInvalidUsername — имя пользователя пустое, длиннее 64 символов
	// или содержит недопустимые символы. HTTP 400.
	ErrInvalidUsername = errors.New("invalid username")

	// ErrWeakPassword — пароль не удовлетворяет политике сложности. HTTP 400.
	ErrWeakPassword = errors.New("password is too weak")

	// ErrEmptyPassword — пароль пустой. HTTP 400.
	ErrEmptyPassword = errors.New("password is empty")

	// ErrTooManyAttempts — исчерпан бюджет неудачных попыток входа. HTTP 429.
	ErrTooManyAttempts = errors.New("too many login attempts")

	// ErrUserNotFound — пользователь не найден. HTTP 404.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidRole — неизвестная роль. HTTP 400.
	ErrInvalidRole = errors.New("invalid role")
)

// Service описывает бизнес-логику сервера авторизации.
type Service struct {
	storage storage.Storage
	codec   *credential.Codec
	limiter limiter.Limiter
	metrics *metrics.Server
}

// Option настраивает Service.
type Option func(*Service)

// WithLimiter подключает ограничитель неудачных попыток входа.
func WithLimiter(l limiter.Limiter) Option {
	return func(s *Service) {
		if l != nil {
			s.limiter = l
		}
	}
}

// WithMetrics подключает метрики.
func WithMetrics(m *metrics.Server) Option {
	return func(s *Service) { s.metrics = m }
}

// New создаёт новый экземпляр Service. Без WithLimiter вход не ограничивается.
func New(storage storage.Storage, codec *credential.Codec, opts ...Option) *Service {
	s := &Service{
		storage: storage,
		codec:   codec,
		limiter: limiter.Nop{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}
