// coordinator — конечный автомат проверки клиентской сессии.
//
// Проход проверки:
//  1. нет refresh-токена в durable-хранилище → Invalid без сетевых вызовов;
//  2. есть access-токен в памяти → GET /auth/verifyJWT; успех → шаг 4;
//  3. GET /auth/refreshToken с refresh-токеном; успех → новый access-токен
//     в памяти, иначе Invalid;
//  4. сверка роли: закэшированная роль сравнивается с авторитетной,
//     расхождение → Invalid (RoleMismatch);
//  5. Invalid → Logout и, если запрошено, редирект на /login.
//
// Одновременные проходы с одинаковым состоянием токенов склеиваются через
// singleflight: на N параллельных навигаций приходится один вызов refresh.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/pribylovaa/club-portal/internal/client/api"
	"github.com/pribylovaa/club-portal/internal/client/durable"
	"github.com/pribylovaa/club-portal/internal/client/session"
	"github.com/pribylovaa/club-portal/internal/credential"
	"github.com/pribylovaa/club-portal/internal/metrics"
	"github.com/pribylovaa/club-portal/internal/models"
	logctx "github.com/pribylovaa/club-portal/internal/pkg/log"
)

// LoginPath — куда уводит проход, завершившийся Invalid.
const LoginPath = "/login"

// maxAttempts — сколько раз проход начинается заново, если сессию
// в durable-хранилище сменили прямо во время проверки.
const maxAttempts = 2

// State — состояние автомата.
type State int32

const (
	Unverified State = iota
	Verifying
	Valid
	Invalid
)

func (s State) String() string {
	switch s {
	case Unverified:
		return "unverified"
	case Verifying:
		return "verifying"
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Result — итог прохода проверки.
type Result struct {
	State State
	// Role — подтверждённая роль (только для Valid).
	Role models.Role
	// Kind и Message — причина Invalid.
	Kind    api.ErrorKind
	Message string
	// Redirect — LoginPath, если вызывающий просил редирект и проход дал Invalid.
	Redirect string
}

// AuthAPI — вызовы сервера авторизации, нужные координатору.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) api.Result[api.Tokens]
	Signup(ctx context.Context, username, email, password string) api.Result[api.Tokens]
	VerifyAccess(ctx context.Context, access string) api.Result[struct{}]
	Refresh(ctx context.Context, refresh string) api.Result[string]
	UserRole(ctx context.Context, access string) api.Result[models.Role]
}

var _ AuthAPI = (*api.Client)(nil)

// Coordinator проводит проверки сессии. Безопасен для конкурентного использования.
type Coordinator struct {
	session *session.Store
	api     AuthAPI
	metrics *metrics.Client
	timeout time.Duration

	group singleflight.Group
	state atomic.Int32
}

// Option настраивает Coordinator.
type Option func(*Coordinator)

// WithMetrics включает учёт проходов в Prometheus.
func WithMetrics(m *metrics.Client) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithTimeout ограничивает каждый сетевой вызов прохода; <=0 — api.DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New создаёт координатор поверх хранилища сессии и клиента API.
func New(s *session.Store, a AuthAPI, opts ...Option) *Coordinator {
	c := &Coordinator{session: s, api: a, timeout: api.DefaultTimeout}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// State возвращает состояние последнего прохода.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Verify выполняет (или присоединяется к уже идущему) проходу проверки.
// Отмена ctx лишь прекращает ожидание: общий проход доводится до конца
// и записывает состояние. Ошибка возвращается только при отмене ctx.
// Если другой экземпляр клиента сменил сессию, состояние выводится заново
// до прохода, и проверяется уже новая сессия.
func (c *Coordinator) Verify(ctx context.Context, redirect bool) (Result, error) {
	refresh := c.refreshCredential(ctx)
	if refresh == "" {
		return c.withRedirect(c.complete(ctx, c.invalid(api.KindMissingCredential, "no refresh credential")), redirect), nil
	}

	key := refresh + "|" + c.session.Get().AccessCredential
	ch := c.group.DoChan(key, func() (any, error) {
		return c.pass(context.WithoutCancel(ctx)), nil
	})

	select {
	case res := <-ch:
		return c.withRedirect(res.Val.(Result), redirect), nil
	case <-ctx.Done():
		logctx.From(ctx).Debug("verification_wait_cancelled")
		return Result{}, ctx.Err()
	}
}

// HandleStorageChange реагирует на изменение durable-хранилища другим
// экземпляром клиента: состояние выводится заново и, если сессия
// изменилась, запускается проход с редиректом.
func (c *Coordinator) HandleStorageChange(ctx context.Context) (Result, error) {
	if !c.session.Resync(ctx) {
		return Result{State: c.State(), Role: c.session.Get().Role}, nil
	}

	logctx.From(ctx).Info("session_changed_externally")
	c.state.Store(int32(Unverified))

	return c.Verify(ctx, true)
}

// Watch подписывается на изменения durable-хранилища и вызывает
// HandleStorageChange на каждое из них. Блокирует до отмены ctx.
func (c *Coordinator) Watch(ctx context.Context, w durable.Watcher, onResult func(Result)) error {
	const op = "client.coordinator.Watch"

	events, err := w.Watch(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for range events {
		res, err := c.HandleStorageChange(ctx)
		if err != nil {
			break
		}
		if onResult != nil {
			onResult(res)
		}
	}

	return ctx.Err()
}

// Login входит по email/паролю и фиксирует новую сессию.
func (c *Coordinator) Login(ctx context.Context, email, password string) (Result, error) {
	const op = "client.coordinator.Login"

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	r := c.api.Login(callCtx, email, password)
	if !r.OK {
		return Result{}, fmt.Errorf("%s: %w", op, r.Err())
	}

	res, err := c.establish(ctx, r.Value)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	return res, nil
}

// Signup регистрирует пользователя и фиксирует новую сессию.
func (c *Coordinator) Signup(ctx context.Context, username, email, password string) (Result, error) {
	const op = "client.coordinator.Signup"

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	r := c.api.Signup(callCtx, username, email, password)
	if !r.OK {
		return Result{}, fmt.Errorf("%s: %w", op, r.Err())
	}

	res, err := c.establish(ctx, r.Value)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	return res, nil
}

// Logout — явный выход пользователя.
func (c *Coordinator) Logout(ctx context.Context) error {
	const op = "client.coordinator.Logout"

	c.state.Store(int32(Unverified))
	if err := c.session.Logout(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	logctx.From(ctx).Info("session_logged_out")

	return nil
}

// establish: токены только что выданы сервером, роль берётся из их claim.
func (c *Coordinator) establish(ctx context.Context, t api.Tokens) (Result, error) {
	role, err := credential.PeekRole(t.AccessToken)
	if err != nil {
		return Result{}, err
	}

	if err := c.session.Establish(t.AccessToken, t.RefreshToken, role); err != nil {
		return Result{}, err
	}

	c.state.Store(int32(Valid))
	logctx.From(ctx).Info("session_established", slog.String("role", role.String()))

	return Result{State: Valid, Role: role}, nil
}

// pass — один проход проверки; выполняется не более одного раза на ключ.
func (c *Coordinator) pass(ctx context.Context) Result {
	ctx = logctx.With(ctx, slog.String("pass_id", uuid.NewString()))

	c.state.Store(int32(Verifying))
	c.session.SetVerifying(true)

	res := c.run(ctx)

	c.session.SetVerifying(false)

	return c.complete(ctx, res)
}

// run — шаги 1–4. Если сессию сменили во время прохода, он начинается
// заново с новой сессией.
func (c *Coordinator) run(ctx context.Context) Result {
	for attempt := 1; ; attempt++ {
		res, err := c.attempt(ctx)
		if !errors.Is(err, session.ErrReplaced) {
			return res
		}

		logctx.From(ctx).Info("session_replaced_during_pass", slog.Int("attempt", attempt))
		if attempt == maxAttempts {
			return c.invalid(api.KindInvalidOrExpiredCredential, "session changed during verification")
		}
	}
}

// attempt читает состояние заново: проход, запущенный по устаревшему
// ключу, увидит access-токен, полученный предыдущим проходом.
func (c *Coordinator) attempt(ctx context.Context) (Result, error) {
	log := logctx.From(ctx)

	refresh := c.refreshCredential(ctx)
	if refresh == "" {
		return c.invalid(api.KindMissingCredential, "no refresh credential"), nil
	}

	if access := c.session.Get().AccessCredential; access != "" {
		r := c.verifyAccess(ctx, access)
		if r.OK {
			return c.reconcile(ctx, access)
		}
		log.Debug("access_check_failed", slog.String("kind", string(r.Kind)))
	}

	c.metrics.RefreshCall()
	rr := c.refresh(ctx, refresh)
	if !rr.OK {
		log.Info("refresh_failed", slog.String("kind", string(rr.Kind)))
		return c.invalid(rr.Kind, rr.Message), nil
	}

	access := rr.Value
	// Роль не меняется, поэтому запись в durable-хранилище не происходит.
	err := c.session.Update(func(st *session.State) {
		st.AccessCredential = access
		st.IsAuthenticated = true
	})
	if errors.Is(err, session.ErrReplaced) {
		return Result{}, err
	}

	return c.reconcile(ctx, access)
}

// reconcile — шаг 4. Для роли user по умолчанию сетевой запрос не нужен:
// сравнивается claim только что подтверждённого токена.
func (c *Coordinator) reconcile(ctx context.Context, access string) (Result, error) {
	cached := c.session.Get().Role

	var authoritative models.Role
	if cached == models.RoleUser {
		role, err := credential.PeekRole(access)
		if err != nil {
			return c.invalid(api.KindInvalidOrExpiredCredential, "unreadable role claim"), nil
		}
		authoritative = role
	} else {
		r := c.userRole(ctx, access)
		if !r.OK {
			return c.invalid(r.Kind, r.Message), nil
		}
		authoritative = r.Value
	}

	if cached != "" && cached != authoritative {
		logctx.From(ctx).Warn("role_mismatch",
			slog.String("cached", cached.String()),
			slog.String("authoritative", authoritative.String()),
		)
		return c.invalid(api.KindRoleMismatch, "role changed since last login"), nil
	}

	err := c.session.Update(func(st *session.State) {
		st.Role = authoritative
		st.IsAuthenticated = true
	})
	switch {
	case errors.Is(err, session.ErrReplaced):
		return Result{}, err
	case err != nil:
		logctx.From(ctx).Warn("role_mirror_failed", slog.String("err", err.Error()))
	}

	return Result{State: Valid, Role: authoritative}, nil
}

// complete фиксирует итог: Invalid очищает сессию.
func (c *Coordinator) complete(ctx context.Context, res Result) Result {
	log := logctx.From(ctx)

	if res.State == Invalid {
		if err := c.session.Logout(); err != nil {
			log.Warn("logout_durable_failed", slog.String("err", err.Error()))
		}
		c.metrics.Verification(metrics.OutcomeInvalid)
	} else {
		c.metrics.Verification(metrics.OutcomeValid)
	}

	c.state.Store(int32(res.State))
	log.Debug("verification_done",
		slog.String("state", res.State.String()),
		slog.String("kind", string(res.Kind)),
	)

	return res
}

func (c *Coordinator) invalid(kind api.ErrorKind, msg string) Result {
	return Result{State: Invalid, Kind: kind, Message: msg}
}

func (c *Coordinator) withRedirect(res Result, redirect bool) Result {
	if redirect && res.State == Invalid {
		res.Redirect = LoginPath
	}
	return res
}

// refreshCredential: повреждённое хранилище равносильно отсутствию сессии.
func (c *Coordinator) refreshCredential(ctx context.Context) string {
	refresh, err := c.session.RefreshCredential(ctx)
	if err != nil {
		logctx.From(ctx).Warn("refresh_credential_unreadable", slog.String("err", err.Error()))
		return ""
	}
	return refresh
}

func (c *Coordinator) verifyAccess(ctx context.Context, access string) api.Result[struct{}] {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.api.VerifyAccess(ctx, access)
}

func (c *Coordinator) refresh(ctx context.Context, refresh string) api.Result[string] {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.api.Refresh(ctx, refresh)
}

func (c *Coordinator) userRole(ctx context.Context, access string) api.Result[models.Role] {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.api.UserRole(ctx, access)
}
