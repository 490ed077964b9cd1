// metrics описывает Prometheus-метрики сервера авторизации и клиента портала.
// Все методы безопасны для nil-получателя: компоненты, собранные без метрик
// (например, в тестах), просто ничего не считают.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Исходы операций — значения метки outcome.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
	OutcomeLimited = "limited"

	// Исходы прохода проверки на клиенте.
	OutcomeValid   = "valid"
	OutcomeInvalid = "invalid"
)

// Server — метрики сервера авторизации.
type Server struct {
	logins       *prometheus.CounterVec
	signups      *prometheus.CounterVec
	refreshes    *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewServer регистрирует метрики сервера в reg.
// Повторная регистрация в том же реестре паникует (MustRegister).
func NewServer(reg prometheus.Registerer) *Server {
	s := &Server{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_auth_logins_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		signups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_auth_signups_total",
			Help: "Signup attempts by outcome.",
		}, []string{"outcome"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_auth_refreshes_total",
			Help: "Access credential refreshes by outcome.",
		}, []string{"outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_http_requests_total",
			Help: "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(s.logins, s.signups, s.refreshes, s.httpRequests, s.httpDuration)

	return s
}

func (s *Server) Login(outcome string) {
	if s == nil {
		return
	}
	s.logins.WithLabelValues(outcome).Inc()
}

func (s *Server) Signup(outcome string) {
	if s == nil {
		return
	}
	s.signups.WithLabelValues(outcome).Inc()
}

func (s *Server) Refresh(outcome string) {
	if s == nil {
		return
	}
	s.refreshes.WithLabelValues(outcome).Inc()
}

// HTTPRequest учитывает завершённый запрос. route — шаблон chi ("/admin/users/{id}/role"),
// а не сырой путь, чтобы не раздувать кардинальность.
func (s *Server) HTTPRequest(method, route string, status int, dur time.Duration) {
	if s == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	s.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	s.httpDuration.WithLabelValues(route).Observe(dur.Seconds())
}

// Client — метрики клиента портала.
type Client struct {
	verifications *prometheus.CounterVec
	refreshCalls  prometheus.Counter
}

// NewClient регистрирует метрики клиента в reg.
func NewClient(reg prometheus.Registerer) *Client {
	c := &Client{
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_verification_total",
			Help: "Completed verification passes by outcome.",
		}, []string{"outcome"}),
		refreshCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_refresh_calls_total",
			Help: "Calls made to the refresh endpoint.",
		}),
	}

	reg.MustRegister(c.verifications, c.refreshCalls)

	return c
}

// Verification учитывает завершённый проход проверки (valid/invalid).
func (c *Client) Verification(outcome string) {
	if c == nil {
		return
	}
	c.verifications.WithLabelValues(outcome).Inc()
}

// RefreshCall учитывает обращение к эндпойнту обновления.
func (c *Client) RefreshCall() {
	if c == nil {
		return
	}
	c.refreshCalls.Inc()
}
