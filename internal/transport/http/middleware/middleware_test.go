package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/club-portal/internal/credential"
	"github.com/pribylovaa/club-portal/internal/metrics"
	"github.com/pribylovaa/club-portal/internal/models"
	logctx "github.com/pribylovaa/club-portal/internal/pkg/log"
	"github.com/pribylovaa/club-portal/internal/service"
	apierrors "github.com/pribylovaa/club-portal/internal/transport/http/errors"
)

// capHandler — тестовый slog.Handler: копит записи в общий буфер,
// включая атрибуты, добавленные через Logger.With.
type capHandler struct {
	store *capStore
	base  []slog.Attr
}

type capStore struct {
	mu      sync.Mutex
	records []capRecord
}

type capRecord struct {
	msg   string
	level slog.Level
	attrs map[string]any
}

func (h *capHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *capHandler) Handle(_ context.Context, r slog.Record) error {
	out := make(map[string]any, len(h.base)+8)
	for _, a := range h.base {
		out[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		out[a.Key] = a.Value.Any()
		return true
	})

	h.store.mu.Lock()
	h.store.records = append(h.store.records, capRecord{msg: r.Message, level: r.Level, attrs: out})
	h.store.mu.Unlock()
	return nil
}

func (h *capHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &capHandler{store: h.store, base: append(append([]slog.Attr{}, h.base...), attrs...)}
}

func (h *capHandler) WithGroup(string) slog.Handler { return h }

func newCapLogger() (*slog.Logger, *capStore) {
	st := &capStore{}
	return slog.New(&capHandler{store: st}), st
}

type fakeVerifier struct {
	claims credential.Claims
	err    error
	got    string
}

func (f *fakeVerifier) VerifyAccess(_ context.Context, tok string) (credential.Claims, error) {
	f.got = tok
	return f.claims, f.err
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) apierrors.Response {
	t.Helper()
	var body apierrors.Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestChain_Order(t *testing.T) {
	var order []string

	mk := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name+"-begin")
				next.ServeHTTP(w, r)
				order = append(order, name+"-end")
			})
		}
	}

	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
		w.WriteHeader(http.StatusTeapot)
	})

	rr := httptest.NewRecorder()
	Chain(final, mk("m1"), mk("m2")).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/chain", nil))

	require.Equal(t, []string{"m1-begin", "m2-begin", "handler", "m2-end", "m1-end"}, order)
	require.Equal(t, http.StatusTeapot, rr.Code)
}

func TestRequestID_GenerateAndPropagate(t *testing.T) {
	var seenHeader, seenCtx string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenHeader = r.Header.Get(HeaderRequestID)
		seenCtx = RequestIDFrom(r.Context())
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotEmpty(t, seenHeader)
	require.Equal(t, seenHeader, seenCtx)
	require.Equal(t, seenHeader, rr.Header().Get(HeaderRequestID))

	// Входящий id сохраняется.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "rid-1")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, "rid-1", seenCtx)
	require.Equal(t, "rid-1", rr.Header().Get(HeaderRequestID))
}

func TestLogging_WritesHTTPRecordWithRequestID(t *testing.T) {
	l, capH := newCapLogger()

	var inner *slog.Logger
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner = logctx.From(r.Context())
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("hello"))
	}), RequestID(), Logging(l))

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.Header.Set(HeaderRequestID, "rid-7")
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, inner)
	require.Len(t, capH.records, 1)
	rec := capH.records[0]
	require.Equal(t, "http", rec.msg)
	require.Equal(t, slog.LevelInfo, rec.level)
	require.Equal(t, "rid-7", rec.attrs["request_id"])
	require.Equal(t, "POST", rec.attrs["method"])
	require.Equal(t, int64(http.StatusCreated), rec.attrs["status"])
	require.Equal(t, int64(5), rec.attrs["bytes"])
}

func TestRecover_PanicTo500(t *testing.T) {
	l, capH := newCapLogger()

	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), Logging(l), Recover())

	rr := httptest.NewRecorder()
	require.NotPanics(t, func() { h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", nil)) })

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	body := decodeBody(t, rr)
	require.Equal(t, apierrors.StatusFailed, body.Status)
	require.Equal(t, "internal server error", body.Message)

	var sawPanic bool
	for _, r := range capH.records {
		if r.msg == "panic" {
			sawPanic = true
			require.Equal(t, "boom", r.attrs["reason"])
		}
	}
	require.True(t, sawPanic)
}

func TestTimeout_SetsDeadlineOnce(t *testing.T) {
	var dl time.Time
	var ok bool
	h := Timeout(50 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dl, ok = r.Context().Deadline()
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.True(t, ok)
	require.WithinDuration(t, time.Now().Add(50*time.Millisecond), dl, 50*time.Millisecond)

	// Существующий дедлайн не перекрывается.
	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()
	want, _ := ctx.Deadline()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx))
	require.Equal(t, want, dl)

	// d <= 0 — no-op.
	ok = true
	Timeout(0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok = r.Context().Deadline()
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.False(t, ok)
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"":                   "",
		"Bearer abc":         "abc",
		"bearer abc":         "abc",
		"Bearer   abc  ":     "abc",
		"Basic dXNlcjpwYXNz": "",
		"Bearer":             "",
		"abc":                "",
	}

	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		require.Equal(t, want, BearerToken(req), "header %q", header)
	}
}

func TestRequireRole(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := ClaimsFrom(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(c.Subject))
	})

	t.Run("allowed", func(t *testing.T) {
		v := &fakeVerifier{claims: credential.Claims{Subject: "u1", Role: models.RoleTopAdmin}}
		req := httptest.NewRequest(http.MethodPut, "/admin/users/1/role", nil)
		req.Header.Set("Authorization", "Bearer tok")
		rr := httptest.NewRecorder()

		RequireRole(v, models.RoleTopAdmin)(okHandler).ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		require.Equal(t, "u1", rr.Body.String())
		require.Equal(t, "tok", v.got)
	})

	t.Run("insufficient role", func(t *testing.T) {
		v := &fakeVerifier{claims: credential.Claims{Subject: "u1", Role: models.RoleAdmin}}
		req := httptest.NewRequest(http.MethodPut, "/admin/users/1/role", nil)
		req.Header.Set("Authorization", "Bearer tok")
		rr := httptest.NewRecorder()

		RequireRole(v, models.RoleTopAdmin)(okHandler).ServeHTTP(rr, req)

		require.Equal(t, http.StatusForbidden, rr.Code)
		require.Equal(t, "Forbidden: insufficient role", decodeBody(t, rr).Message)
	})

	t.Run("missing token", func(t *testing.T) {
		v := &fakeVerifier{err: service.ErrMissingToken}
		rr := httptest.NewRecorder()

		RequireRole(v, models.RoleTopAdmin)(okHandler).ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/", nil))

		require.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		v := &fakeVerifier{err: errors.Join(service.ErrInvalidToken, credential.ErrExpired)}
		req := httptest.NewRequest(http.MethodPut, "/", nil)
		req.Header.Set("Authorization", "Bearer expired")
		rr := httptest.NewRecorder()

		RequireRole(v, models.RoleTopAdmin)(okHandler).ServeHTTP(rr, req)

		require.Equal(t, http.StatusForbidden, rr.Code)
		require.Equal(t, apierrors.StatusFailed, decodeBody(t, rr).Status)
	})
}

func TestMetrics_RecordsRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewServer(reg)

	r := chi.NewRouter()
	r.Use(Metrics(m))
	r.Get("/users/{id}", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	for _, id := range []string{"1", "2", "3"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/users/"+id, nil))
	}

	n, err := testutil.GatherAndCount(reg, "portal_http_requests_total")
	require.NoError(t, err)
	require.Equal(t, 1, n, "one series per route pattern, not per raw path")
}
