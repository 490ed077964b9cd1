// credential кодирует и проверяет подписанные JWT-токены портала.
//
// Основные аспекты:
//   - access- и refresh-токены подписываются РАЗНЫМИ секретами, а тип токена
//     дополнительно фиксируется claim'ом "typ": access-токен невозможно
//     предъявить эндпоинту обновления и наоборот;
//   - Codec не имеет побочных эффектов и детерминирован при одинаковых
//     секретах и часах (часы внедряются через WithClock);
//   - ошибки проверки сводятся к трём видам: ErrMalformed,
//     ErrInvalidSignature, ErrExpired.
package credential

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pribylovaa/club-portal/internal/models"
)

var (
	// ErrMalformed — токен не разбирается как JWT или в нём нет обязательных claims.
	ErrMalformed = errors.New("malformed token")
	// ErrInvalidSignature — подпись не сходится с секретом назначения
	// (в т.ч. токен другого назначения или чужого издателя).
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrExpired — срок действия токена истёк.
	ErrExpired = errors.New("token expired")
	// ErrInvalidConfig — недопустимая конфигурация кодека.
	ErrInvalidConfig = errors.New("invalid credential config")
)

// Purpose — назначение токена.
type Purpose string

const (
	PurposeAccess  Purpose = "access"
	PurposeRefresh Purpose = "refresh"
)

// Claims — полезная нагрузка токена.
type Claims struct {
	Subject   string
	Email     string
	Role      models.Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Config — параметры выпуска и проверки токенов.
type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      []string
}

// Codec выпускает и проверяет токены. Безопасен для конкурентного использования.
type Codec struct {
	cfg Config
	now func() time.Time
}

// Option настраивает Codec.
type Option func(*Codec)

// WithClock подменяет источник времени (для тестов истечения срока).
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

type tokenClaims struct {
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
	Type  Purpose     `json:"typ"`
	jwt.RegisteredClaims
}

// New создаёт Codec. Секреты обязательны и не должны совпадать.
func New(cfg Config, opts ...Option) (*Codec, error) {
	const op = "credential.codec.New"

	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, fmt.Errorf("%s: %w: empty secret", op, ErrInvalidConfig)
	}

	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, fmt.Errorf("%s: %w: access and refresh secrets must differ", op, ErrInvalidConfig)
	}

	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, fmt.Errorf("%s: %w: non-positive ttl", op, ErrInvalidConfig)
	}

	c := &Codec{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// AccessTTL возвращает срок жизни access-токена.
func (c *Codec) AccessTTL() time.Duration { return c.cfg.AccessTTL }

// Now возвращает текущее время по часам кодека.
func (c *Codec) Now() time.Time { return c.now() }

// Issue сериализует claims, проставляет iat/exp и подписывает секретом назначения.
func (c *Codec) Issue(purpose Purpose, claims Claims, ttl time.Duration) (string, error) {
	const op = "credential.codec.Issue"

	secret, err := c.secret(purpose)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if ttl <= 0 {
		return "", fmt.Errorf("%s: %w: non-positive ttl", op, ErrInvalidConfig)
	}

	if claims.Subject == "" || !claims.Role.Valid() {
		return "", fmt.Errorf("%s: %w: subject and role are required", op, ErrMalformed)
	}

	now := c.now()
	tc := tokenClaims{
		Email: claims.Email,
		Role:  claims.Role,
		Type:  purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.Subject,
			Issuer:    c.cfg.Issuer,
			Audience:  jwt.ClaimStrings(c.cfg.Audience),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tc).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// IssueAccess выпускает access-токен со стандартным TTL.
func (c *Codec) IssueAccess(claims Claims) (string, error) {
	return c.Issue(PurposeAccess, claims, c.cfg.AccessTTL)
}

// IssueRefresh выпускает refresh-токен со стандартным TTL.
func (c *Codec) IssueRefresh(claims Claims) (string, error) {
	return c.Issue(PurposeRefresh, claims, c.cfg.RefreshTTL)
}

// Verify проверяет подпись секретом назначения и срок действия,
// возвращая claims токена.
func (c *Codec) Verify(token string, purpose Purpose) (Claims, error) {
	const op = "credential.codec.Verify"

	secret, err := c.secret(purpose)
	if err != nil {
		return Claims{}, fmt.Errorf("%s: %w", op, err)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	}
	if c.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.cfg.Issuer))
	}
	if len(c.cfg.Audience) > 0 {
		opts = append(opts, jwt.WithAudience(c.cfg.Audience...))
	}

	var tc tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &tc, func(*jwt.Token) (any, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		return Claims{}, fmt.Errorf("%s: %w", op, classify(err))
	}

	if !parsed.Valid {
		return Claims{}, fmt.Errorf("%s: %w", op, ErrInvalidSignature)
	}

	// Токен подписан нашим секретом, но другого назначения: секреты различны,
	// поэтому сюда попадают только токены, выпущенные в обход Issue.
	if tc.Type != purpose {
		return Claims{}, fmt.Errorf("%s: %w: purpose mismatch", op, ErrInvalidSignature)
	}

	if tc.Subject == "" || !tc.Role.Valid() {
		return Claims{}, fmt.Errorf("%s: %w: missing subject or role", op, ErrMalformed)
	}

	return toClaims(&tc), nil
}

// PeekRole читает claim роли БЕЗ проверки подписи.
// Допустимо только для токена, который сервер только что подтвердил.
func PeekRole(token string) (models.Role, error) {
	const op = "credential.codec.PeekRole"

	var tc tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &tc); err != nil {
		return "", fmt.Errorf("%s: %w", op, ErrMalformed)
	}

	if !tc.Role.Valid() {
		return "", fmt.Errorf("%s: %w: missing role", op, ErrMalformed)
	}

	return tc.Role, nil
}

func (c *Codec) secret(purpose Purpose) ([]byte, error) {
	switch purpose {
	case PurposeAccess:
		return []byte(c.cfg.AccessSecret), nil
	case PurposeRefresh:
		return []byte(c.cfg.RefreshSecret), nil
	default:
		return nil, fmt.Errorf("%w: unknown purpose %q", ErrInvalidConfig, purpose)
	}
}

// classify сводит ошибки jwt к таксономии пакета.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return ErrMalformed
	default:
		return ErrInvalidSignature
	}
}

func toClaims(tc *tokenClaims) Claims {
	out := Claims{
		Subject: tc.Subject,
		Email:   tc.Email,
		Role:    tc.Role,
	}
	if tc.IssuedAt != nil {
		out.IssuedAt = tc.IssuedAt.Time
	}
	if tc.ExpiresAt != nil {
		out.ExpiresAt = tc.ExpiresAt.Time
	}

	return out
}
