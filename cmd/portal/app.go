package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pribylovaa/club-portal/internal/client/api"
	"github.com/pribylovaa/club-portal/internal/client/coordinator"
	"github.com/pribylovaa/club-portal/internal/client/durable"
	"github.com/pribylovaa/club-portal/internal/client/gate"
	"github.com/pribylovaa/club-portal/internal/client/session"
	"github.com/pribylovaa/club-portal/internal/config"
	"github.com/pribylovaa/club-portal/internal/metrics"
	logctx "github.com/pribylovaa/club-portal/internal/pkg/log"
)

// Константы для определения окружения.
const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

// app — собранные зависимости клиента, общие для всех команд.
type app struct {
	log      *slog.Logger
	file     *durable.File
	session  *session.Store
	coord    *coordinator.Coordinator
	routes   *gate.Table
	registry *prometheus.Registry
}

func (a *app) init(ctx context.Context, configPath string) error {
	cfg, err := config.LoadClient(configPath)
	if err != nil {
		return err
	}

	a.log = setupLogger(cfg.Env)
	slog.SetDefault(a.log)
	ctx = logctx.Into(ctx, a.log)

	client, err := api.New(cfg.BaseURL, api.WithTimeout(cfg.Timeout))
	if err != nil {
		return err
	}

	a.routes = gate.Default()
	if cfg.RoutesPath != "" {
		if a.routes, err = gate.LoadTable(cfg.RoutesPath); err != nil {
			return err
		}
	}

	a.registry = prometheus.NewRegistry()
	a.file = durable.NewFile(cfg.StatePath)
	a.session = session.New(ctx, a.file)
	a.coord = coordinator.New(a.session, client,
		coordinator.WithTimeout(cfg.Timeout),
		coordinator.WithMetrics(metrics.NewClient(a.registry)),
	)

	a.log.Debug("portal_initialized",
		slog.String("base_url", cfg.BaseURL),
		slog.String("state", a.file.Path()),
	)

	return nil
}

// ctx кладёт логгер клиента в контекст команды.
func (a *app) ctx(ctx context.Context) context.Context {
	return logctx.Into(ctx, a.log)
}

// navigate проверяет сессию (кроме публичных маршрутов) и решает,
// что показать по пути.
func (a *app) navigate(ctx context.Context, path string) (gate.Decision, coordinator.Result, error) {
	if a.routes.Classify(path) == gate.ClassPublic {
		return gate.RenderRoute, coordinator.Result{State: a.coord.State()}, nil
	}

	res, err := a.coord.Verify(ctx, true)
	if err != nil {
		return gate.RenderLoading, res, fmt.Errorf("verification: %w", err)
	}

	d := decide(a.routes, res, path)

	return d, res, nil
}

// decide решает по итогу прохода, а не по текущему состоянию сессии:
// роль в памяти могла смениться после прохода.
func decide(routes *gate.Table, res coordinator.Result, path string) gate.Decision {
	return routes.Decide(gate.Input{
		Verifying: res.State == coordinator.Verifying,
		Valid:     res.State == coordinator.Valid,
		Role:      res.Role,
		Path:      path,
	})
}

// setupLogger настраивает slog по окружению. Вывод команд идёт в stdout,
// поэтому журнал пишется в stderr.
func setupLogger(env string) *slog.Logger {
	switch env {
	case envLocal:
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}
}
