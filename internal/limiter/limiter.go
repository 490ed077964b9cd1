// limiter ограничивает число неудачных попыток входа.
// Счётчики живут в Redis под ключом <prefix><email> и истекают через Window
// после первой неудачи; успешный вход сбрасывает счётчик.
package limiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrTooManyAttempts — бюджет неудачных попыток исчерпан.
	ErrTooManyAttempts = errors.New("too many attempts")
	// ErrUnavailable — Redis недоступен.
	ErrUnavailable = errors.New("limiter unavailable")
)

// Limiter — минимальный контракт ограничителя попыток входа.
type Limiter interface {
	// Check возвращает ErrTooManyAttempts, если попытки для key исчерпаны.
	Check(ctx context.Context, key string) error
	// Fail регистрирует неудачную попытку.
	Fail(ctx context.Context, key string) error
	// Reset сбрасывает счётчик после успешного входа.
	Reset(ctx context.Context, key string) error
}

// Config — параметры ограничителя.
type Config struct {
	MaxAttempts int
	Window      time.Duration
	Prefix      string
}

type redisLimiter struct {
	rdb redis.UniversalClient
	cfg Config
}

// NewRedis создаёт ограничитель поверх клиента Redis.
// Если prefix пустой — используется "portal:login:".
func NewRedis(rdb redis.UniversalClient, cfg Config) Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "portal:login:"
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}

	return &redisLimiter{rdb: rdb, cfg: cfg}
}

// Dial создаёт клиент Redis из URL (например, redis://:pass@host:6379/0)
// и проверяет соединение.
func Dial(ctx context.Context, redisURL string) (*redis.Client, error) {
	const op = "limiter.Dial"

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return rdb, nil
}

func (l *redisLimiter) key(k string) string { return l.cfg.Prefix + k }

func (l *redisLimiter) Check(ctx context.Context, key string) error {
	n, err := l.rdb.Get(ctx, l.key(key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if n >= int64(l.cfg.MaxAttempts) {
		return ErrTooManyAttempts
	}

	return nil
}

func (l *redisLimiter) Fail(ctx context.Context, key string) error {
	k := l.key(key)

	n, err := l.rdb.Incr(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// Окно отсчитывается от первой неудачи.
	if n == 1 {
		if err := l.rdb.Expire(ctx, k, l.cfg.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	return nil
}

func (l *redisLimiter) Reset(ctx context.Context, key string) error {
	if err := l.rdb.Del(ctx, l.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return nil
}

// Nop — ограничитель-заглушка, когда Redis не сконфигурирован.
type Nop struct{}

func (Nop) Check(context.Context, string) error { return nil }
func (Nop) Fail(context.Context, string) error  { return nil }
func (Nop) Reset(context.Context, string) error { return nil }
