package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pribylovaa/club-portal/internal/credential"
	"github.com/pribylovaa/club-portal/internal/limiter"
	"github.com/pribylovaa/club-portal/internal/metrics"
	"github.com/pribylovaa/club-portal/internal/models"
	logctx "github.com/pribylovaa/club-portal/internal/pkg/log"
	"github.com/pribylovaa/club-portal/internal/pkg/redact"
	"github.com/pribylovaa/club-portal/internal/storage"
)

var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// Signup регистрирует нового пользователя с ролью user и сразу выдаёт пару токенов.
func (s *Service) Signup(ctx context.Context, username, email, password string) (*models.TokenPair, error) {
	const op = "service.auth.Signup"

	tp, err := s.signup(ctx, username, email, password)
	if err != nil {
		s.metrics.Signup(metrics.OutcomeFailed)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.Signup(metrics.OutcomeSuccess)

	return tp, nil
}

func (s *Service) signup(ctx context.Context, username, email, password string) (*models.TokenPair, error) {
	name, err := validateUsername(username)
	if err != nil {
		return nil, err
	}

	normEmail, err := validateEmail(email)
	if err != nil {
		return nil, err
	}

	if err := validatePassword(password); err != nil {
		return nil, err
	}

	_, err = s.storage.UserByEmail(ctx, normEmail)
	if err == nil {
		return nil, ErrEmailTaken
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	hashed, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	now := s.codec.Now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Username:     name,
		Email:        normEmail,
		PasswordHash: hashed,
		Role:         models.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.SaveUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, ErrUserExists
		}

		return nil, err
	}

	logctx.From(ctx).Info("user_signed_up",
		slog.String("user_id", user.ID.String()),
		slog.String("email", redact.Email(user.Email)),
	)

	return s.issueTokenPair(user)
}

// Login выполняет вход по email и паролю.
// Неудачные попытки считаются ограничителем по нормализованному email;
// недоступность Redis не блокирует вход.
func (s *Service) Login(ctx context.Context, email, password string) (*models.TokenPair, error) {
	const op = "service.auth.Login"

	normEmail, err := validateEmail(email)
	if err != nil || password == "" {
		s.metrics.Login(metrics.OutcomeFailed)
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	lg := logctx.From(ctx).With(slog.String("email", redact.Email(normEmail)))

	if err := s.limiter.Check(ctx, normEmail); err != nil {
		if errors.Is(err, limiter.ErrTooManyAttempts) {
			s.metrics.Login(metrics.OutcomeLimited)
			lg.Warn("login_rate_limited")
			return nil, fmt.Errorf("%s: %w", op, ErrTooManyAttempts)
		}

		lg.Warn("login_limiter_unavailable", slog.String("err", err.Error()))
	}

	user, err := s.storage.UserByEmail(ctx, normEmail)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.loginFailed(ctx, lg, normEmail)
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !checkPassword(user.PasswordHash, password) {
		s.loginFailed(ctx, lg, normEmail)
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if err := s.limiter.Reset(ctx, normEmail); err != nil {
		lg.Warn("login_limiter_reset_failed", slog.String("err", err.Error()))
	}

	tp, err := s.issueTokenPair(user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.Login(metrics.OutcomeSuccess)
	lg.Info("user_logged_in", slog.String("user_id", user.ID.String()))

	return tp, nil
}

func (s *Service) loginFailed(ctx context.Context, lg *slog.Logger, key string) {
	s.metrics.Login(metrics.OutcomeFailed)

	if err := s.limiter.Fail(ctx, key); err != nil {
		lg.Warn("login_limiter_fail_failed", slog.String("err", err.Error()))
	}

	lg.Info("login_failed")
}

// ChangeRole меняет роль пользователя.
// Уже выданные токены несут старую роль до повторного входа.
func (s *Service) ChangeRole(ctx context.Context, userID uuid.UUID, role models.Role) error {
	const op = "service.auth.ChangeRole"

	if !role.Valid() {
		return fmt.Errorf("%s: %w", op, ErrInvalidRole)
	}

	if err := s.storage.UpdateUserRole(ctx, userID, role); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	logctx.From(ctx).Info("user_role_changed",
		slog.String("user_id", userID.String()),
		slog.String("role", role.String()),
	)

	return nil
}

// issueTokenPair выпускает access- и refresh-токены для пользователя.
func (s *Service) issueTokenPair(user *models.User) (*models.TokenPair, error) {
	claims := credential.Claims{
		Subject: user.ID.String(),
		Email:   user.Email,
		Role:    user.Role,
	}

	access, err := s.codec.IssueAccess(claims)
	if err != nil {
		return nil, err
	}

	refresh, err := s.codec.IssueRefresh(claims)
	if err != nil {
		return nil, err
	}

	return &models.TokenPair{
		AccessToken:     access,
		RefreshToken:    refresh,
		AccessExpiresAt: s.codec.Now().Add(s.codec.AccessTTL()),
	}, nil
}

// hashPassword хэширует пароль с помощью bcrypt.
func hashPassword(password string) (string, error) {
	const op = "service.auth.hashPassword"

	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(bytes), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// validateEmail проверяет формат email и приводит его к нижнему регистру.
func validateEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if email == "" {
		return "", ErrInvalidEmail
	}

	addr, err := mail.ParseAddress(email)
	// Отбрасываем форму "Имя <addr>": ожидаем голый адрес.
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}

	return strings.ToLower(email), nil
}

func validateUsername(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if !usernameRe.MatchString(name) {
		return "", ErrInvalidUsername
	}

	return name, nil
}

// validatePassword: длина >= 8 рун, хотя бы одна строчная, заглавная, цифра и спецсимвол.
func validatePassword(pw string) error {
	if pw == "" {
		return ErrEmptyPassword
	}

	if len([]rune(pw)) < 8 {
		return ErrWeakPassword
	}

	var hasLower, hasUpper, hasDigit, hasSpecial bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if !hasLower || !hasUpper || !hasDigit || !hasSpecial {
		return ErrWeakPassword
	}

	return nil
}
