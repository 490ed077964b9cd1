package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pribylovaa/club-portal/internal/credential"
	"github.com/pribylovaa/club-portal/internal/metrics"
	"github.com/pribylovaa/club-portal/internal/models"
	logctx "github.com/pribylovaa/club-portal/internal/pkg/log"
	"github.com/pribylovaa/club-portal/internal/pkg/redact"
)

// Refresh выпускает новый access-токен по refresh-токену.
// sub, email и role копируются из refresh-токена без обращения к хранилищу,
// поэтому смена роли вступает в силу только после повторного входа.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	const op = "service.token.Refresh"

	if strings.TrimSpace(refreshToken) == "" {
		s.metrics.Refresh(metrics.OutcomeFailed)
		return "", fmt.Errorf("%s: %w", op, ErrMissingToken)
	}

	claims, err := s.codec.Verify(refreshToken, credential.PurposeRefresh)
	if err != nil {
		s.metrics.Refresh(metrics.OutcomeFailed)
		logctx.From(ctx).Debug("refresh_verify_failed",
			slog.String("token", redact.Token(refreshToken)),
			slog.String("err", err.Error()),
		)
		return "", fmt.Errorf("%s: %w: %w", op, ErrInvalidRefreshToken, err)
	}

	access, err := s.codec.IssueAccess(credential.Claims{
		Subject: claims.Subject,
		Email:   claims.Email,
		Role:    claims.Role,
	})
	if err != nil {
		s.metrics.Refresh(metrics.OutcomeFailed)
		return "", fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.Refresh(metrics.OutcomeSuccess)

	return access, nil
}

// VerifyAccess проверяет access-токен и возвращает его claims.
func (s *Service) VerifyAccess(ctx context.Context, accessToken string) (credential.Claims, error) {
	const op = "service.token.VerifyAccess"

	if strings.TrimSpace(accessToken) == "" {
		return credential.Claims{}, fmt.Errorf("%s: %w", op, ErrMissingToken)
	}

	claims, err := s.codec.Verify(accessToken, credential.PurposeAccess)
	if err != nil {
		logctx.From(ctx).Debug("access_verify_failed", slog.String("err", err.Error()))
		return credential.Claims{}, fmt.Errorf("%s: %w: %w", op, ErrInvalidToken, err)
	}

	return claims, nil
}

// UserRole возвращает роль, закреплённую за access-токеном.
func (s *Service) UserRole(ctx context.Context, accessToken string) (models.Role, error) {
	const op = "service.token.UserRole"

	claims, err := s.VerifyAccess(ctx, accessToken)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return claims.Role, nil
}
