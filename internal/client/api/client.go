// api — HTTP-клиент эндпойнтов /auth/* сервера авторизации.
// Каждый вызов возвращает Result[T]; ошибки транспорта не всплывают как error.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pribylovaa/club-portal/internal/models"
	logctx "github.com/pribylovaa/club-portal/internal/pkg/log"
)

// DefaultTimeout — предел одного сетевого вызова.
const DefaultTimeout = 10 * time.Second

// maxResponseBytes — ответы сервера авторизации маленькие; больше — это не он.
const maxResponseBytes = 64 << 10

// Tokens — пара токенов, выданная при входе/регистрации.
type Tokens struct {
	AccessToken  string
	RefreshToken string
}

// Client — клиент сервера авторизации. Безопасен для конкурентного использования.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
}

// Option настраивает Client.
type Option func(*Client)

// WithHTTPClient подменяет *http.Client (например, httptest.Server.Client()).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout задаёт предел одного вызова; <=0 — DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New создаёт клиент для baseURL (например, http://localhost:8080).
func New(baseURL string, opts ...Option) (*Client, error) {
	const op = "client.api.New"

	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%s: unsupported scheme %q", op, u.Scheme)
	}

	c := &Client{base: u, http: http.DefaultClient, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Timeout возвращает предел одного вызова.
func (c *Client) Timeout() time.Duration { return c.timeout }

// Login — POST /auth/login.
func (c *Client) Login(ctx context.Context, email, password string) Result[Tokens] {
	return c.tokens(ctx, "/auth/login", models.AuthLoginRequest{Email: email, Password: password})
}

// Signup — POST /auth/signup.
func (c *Client) Signup(ctx context.Context, username, email, password string) Result[Tokens] {
	return c.tokens(ctx, "/auth/signup", models.AuthSignupRequest{Username: username, Email: email, Password: password})
}

func (c *Client) tokens(ctx context.Context, path string, body any) Result[Tokens] {
	status, resp, err := c.do(ctx, http.MethodPost, path, "", body)
	if err != nil {
		return fail[Tokens](KindNetworkFailure, err.Error(), status)
	}

	if status >= http.StatusInternalServerError {
		return fail[Tokens](KindNetworkFailure, messageOr(resp, "server error"), status)
	}

	if status != http.StatusOK || resp.Status != models.StatusSuccess {
		return fail[Tokens](KindRejected, messageOr(resp, "request rejected"), status)
	}

	if resp.AccessToken == "" || resp.RefreshToken == "" {
		return fail[Tokens](KindNetworkFailure, "incomplete token response", status)
	}

	return ok(Tokens{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}, status)
}

// VerifyAccess — GET /auth/verifyJWT.
func (c *Client) VerifyAccess(ctx context.Context, access string) Result[struct{}] {
	status, resp, err := c.do(ctx, http.MethodGet, "/auth/verifyJWT", access, nil)
	if r, failed := credentialFailure[struct{}](status, resp, err); failed {
		return r
	}

	return ok(struct{}{}, status)
}

// Refresh — GET /auth/refreshToken; возвращает новый access-токен.
func (c *Client) Refresh(ctx context.Context, refresh string) Result[string] {
	status, resp, err := c.do(ctx, http.MethodGet, "/auth/refreshToken", refresh, nil)
	if r, failed := credentialFailure[string](status, resp, err); failed {
		return r
	}

	if resp.AccessToken == "" {
		return fail[string](KindInvalidOrExpiredCredential, "empty access token", status)
	}

	return ok(resp.AccessToken, status)
}

// UserRole — GET /auth/getUserRole.
func (c *Client) UserRole(ctx context.Context, access string) Result[models.Role] {
	status, resp, err := c.do(ctx, http.MethodGet, "/auth/getUserRole", access, nil)
	if r, failed := credentialFailure[models.Role](status, resp, err); failed {
		return r
	}

	if !resp.Role.Valid() {
		return fail[models.Role](KindInvalidOrExpiredCredential, "unknown role in response", status)
	}

	return ok(resp.Role, status)
}

// credentialFailure переводит ответ эндпойнтов с Bearer-токеном в Kind:
// нет ответа/5xx — сеть; 400 — токен не предъявлен; прочие не-2xx
// или status:"failed" — токен недействителен.
func credentialFailure[T any](status int, resp models.AuthResponse, err error) (Result[T], bool) {
	switch {
	case err != nil:
		return fail[T](KindNetworkFailure, err.Error(), status), true
	case status >= http.StatusInternalServerError:
		return fail[T](KindNetworkFailure, messageOr(resp, "server error"), status), true
	case status == http.StatusBadRequest:
		return fail[T](KindMissingCredential, resp.Message, status), true
	case status != http.StatusOK || resp.Status != models.StatusSuccess:
		return fail[T](KindInvalidOrExpiredCredential, resp.Message, status), true
	default:
		return Result[T]{}, false
	}
}

// do выполняет запрос с собственным таймаутом и разбирает JSON-конверт.
// Ошибка возвращается только если ответа нет или его нельзя прочитать.
func (c *Client) do(ctx context.Context, method, path, bearer string, body any) (int, models.AuthResponse, error) {
	var out models.AuthResponse

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, out, err
		}
		rdr = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, rdr)
	if err != nil {
		return 0, out, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("timeout after %s: %w", c.timeout, err)
		}
		logctx.From(ctx).Debug("auth_call_failed",
			slog.String("path", path),
			slog.String("err", err.Error()),
		)
		return 0, out, err
	}
	defer resp.Body.Close()

	logctx.From(ctx).Debug("auth_call",
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("dur", time.Since(start)),
	)

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		// Тело без JSON допустимо для ошибок прокси; статус всё равно значим.
		if resp.StatusCode >= http.StatusBadRequest {
			return resp.StatusCode, out, nil
		}
		return resp.StatusCode, out, fmt.Errorf("decode response: %w", err)
	}

	return resp.StatusCode, out, nil
}

func messageOr(resp models.AuthResponse, def string) string {
	if resp.Message != "" {
		return resp.Message
	}
	return def
}
