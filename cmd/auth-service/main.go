package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pribylovaa/club-portal/internal/config"
	"github.com/pribylovaa/club-portal/internal/credential"
	"github.com/pribylovaa/club-portal/internal/limiter"
	"github.com/pribylovaa/club-portal/internal/metrics"
	"github.com/pribylovaa/club-portal/internal/service"
	"github.com/pribylovaa/club-portal/internal/storage/postgres"
	transporthttp "github.com/pribylovaa/club-portal/internal/transport/http"
)

// Константы для определения окружения.
const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting auth-service", "env", cfg.Env)

	// Корневой контекст по сигналам.
	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	// Подключение к БД c таймаутом.
	dbCtx, dbCancel := context.WithTimeout(rootCtx, 10*time.Second)
	str, err := postgres.New(dbCtx, cfg.DB.DatabaseURL)
	dbCancel()
	if err != nil {
		log.Error("postgres_connect_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer str.Close()
	log.Info("postgres_connected")

	codec, err := credential.New(cfg.Auth.Credential())
	if err != nil {
		log.Error("credential_codec_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	m := metrics.NewServer(prometheus.DefaultRegisterer)
	opts := []service.Option{service.WithMetrics(m)}

	// Ограничитель входа — только если задан Redis.
	if cfg.Redis.RedisURL != "" {
		redisCtx, redisCancel := context.WithTimeout(rootCtx, 5*time.Second)
		rdb, err := limiter.Dial(redisCtx, cfg.Redis.RedisURL)
		redisCancel()
		if err != nil {
			log.Error("redis_connect_failed", slog.String("err", err.Error()))
			os.Exit(1)
		}
		defer func() { _ = rdb.Close() }()

		opts = append(opts, service.WithLimiter(limiter.NewRedis(rdb, limiter.Config{
			MaxAttempts: cfg.Limiter.MaxAttempts,
			Window:      cfg.Limiter.Window,
		})))
		log.Info("login_limiter_enabled", slog.Int("max_attempts", cfg.Limiter.MaxAttempts))
	} else {
		log.Warn("login_limiter_disabled")
	}

	srvc := service.New(str, codec, opts...)
	log.Info("service_initialized")

	var ready int32 // 0 — not ready; 1 — ready

	// Служебный mux на отдельном порту.
	ops := http.NewServeMux()
	ops.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	ops.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if atomic.LoadInt32(&ready) != 1 {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		if err := str.Ping(r.Context()); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	ops.Handle("/metrics", promhttp.Handler())

	opsSrv := &http.Server{
		Addr:              cfg.HTTP.OpsAddr(),
		Handler:           ops,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("ops_listen_start", slog.String("addr", opsSrv.Addr))
		if err := opsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("ops_serve_failed", slog.String("err", err.Error()))
		}
	}()

	apiHandler := transporthttp.NewRouter(srvc, transporthttp.Options{
		Logger:  log,
		Timeout: cfg.Timeouts.Request,
		Metrics: m,
	})

	httpAddr := cfg.HTTP.Addr()
	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           apiHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", httpAddr)
	if err != nil {
		log.Error("http_listen_failed", slog.String("addr", httpAddr), slog.String("err", err.Error()))
		os.Exit(1)
	}

	log.Info("http_listen_start", slog.String("addr", httpAddr))

	serveErrCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	atomic.StoreInt32(&ready, 1)
	log.Info("service_ready")

	// Ожидание сигнала завершения или фатальной ошибки сервера.
	select {
	case <-rootCtx.Done():
		log.Info("shutdown_requested")
	case err := <-serveErrCh:
		if err != nil {
			log.Error("http_serve_failed", slog.String("err", err.Error()))
		}
	}

	atomic.StoreInt32(&ready, 0)

	// Graceful stop с таймаутом.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_shutdown_incomplete", slog.String("err", err.Error()))
	} else {
		log.Info("http_stopped")
	}

	_ = opsSrv.Shutdown(shutdownCtx)

	log.Info("service_stopped")
}

// setupLogger настраивает slog по окружению.
func setupLogger(env string) *slog.Logger {
	switch env {
	case envLocal:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
