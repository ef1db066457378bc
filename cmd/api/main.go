package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tutorias/attendance-desk/internal/config"
	"github.com/tutorias/attendance-desk/internal/domain/attendance"
	"github.com/tutorias/attendance-desk/internal/gateway"
	"github.com/tutorias/attendance-desk/internal/gateway/rest"
	appHTTP "github.com/tutorias/attendance-desk/internal/handler/http"
	"github.com/tutorias/attendance-desk/internal/pkg/cache"
	"github.com/tutorias/attendance-desk/internal/pkg/cron"
	"github.com/tutorias/attendance-desk/internal/pkg/database"
	"github.com/tutorias/attendance-desk/internal/pkg/jwt"
	"github.com/tutorias/attendance-desk/internal/pkg/logger"
	"github.com/tutorias/attendance-desk/internal/pkg/metrics"
	"github.com/tutorias/attendance-desk/internal/pkg/sse"
	"github.com/tutorias/attendance-desk/internal/repository/postgresql"
	attendanceService "github.com/tutorias/attendance-desk/internal/service/attendance"
	"golang.org/x/oauth2"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("Server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(os.Stdout, logger.Options{
		App:     "attendance-desk",
		Version: version,
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
	})
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	gw, closeGateway, err := newGateway(ctx, cfg, m, log)
	if err != nil {
		return err
	}
	defer closeGateway()

	historyCache, sweep, closeCache, err := newCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	var ready func(context.Context) bool
	if h, ok := historyCache.(interface{ Healthy(context.Context) bool }); ok {
		ready = h.Healthy
	}

	hub := sse.NewHub()
	history := attendanceService.NewHistoryViewer(gw, attendanceService.HistoryOptions{
		Cache:    historyCache,
		TTL:      cfg.Cache.HistoryTTL,
		MinYear:  cfg.History.MinYear,
		Location: cfg.App.Timezone,
		Logger:   log,
	})
	svc := attendanceService.NewAttendanceService(gw, history, attendanceService.ServiceOptions{
		Hub:         hub,
		Metrics:     m,
		Location:    cfg.App.Timezone,
		IdleTimeout: cfg.Session.IdleTimeout,
		Logger:      log,
	})
	defer svc.Close()

	scheduler := cron.NewScheduler(cfg.App.Timezone)
	if err := scheduler.AddJob("evict_idle_attendance_sessions", cfg.Session.EvictSpec, time.Minute, svc.EvictIdle); err != nil {
		return err
	}
	if sweep != nil {
		if err := scheduler.AddJob("sweep_history_cache", cfg.Cache.SweepSpec, time.Minute, sweep); err != nil {
			return err
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	JWTService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)
	attendanceHandler := appHTTP.NewAttendanceHandler(svc, JWTService, hub, cfg.App.Timezone)

	router := appHTTP.NewRouter(appHTTP.RouterOptions{
		Logger:         log,
		LogLevel:       logger.ParseLevel(cfg.App.LogLevel),
		AllowedOrigins: cfg.App.AllowedOrigins,
		Metrics:        m.Handler(),
		Ready:          ready,
	}, JWTService, attendanceHandler)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server running", slog.String("addr", srv.Addr), slog.String("gateway", cfg.Gateway.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newGateway(ctx context.Context, cfg *config.Config, m *metrics.Metrics, log *slog.Logger) (attendance.Gateway, func(), error) {
	switch cfg.Gateway.Backend {
	case config.BackendPostgres:
		db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL())
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		if err := postgresql.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		return gateway.NewInstrumented(postgresql.NewAttendanceGateway(db, cfg.App.Timezone), m), db.Close, nil

	default:
		var tokens oauth2.TokenSource
		if cfg.Gateway.ServiceToken != "" {
			tokens = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Gateway.ServiceToken, TokenType: "Bearer"})
		}
		client, err := rest.New(rest.Options{
			BaseURL:        cfg.Gateway.BaseURL,
			Timeout:        cfg.Gateway.Timeout,
			Tokens:         tokens,
			LegacyStatuses: cfg.Gateway.LegacyStatuses,
			Location:       cfg.App.Timezone,
			Logger:         log,
		})
		if err != nil {
			return nil, nil, err
		}
		return gateway.NewInstrumented(client, m), func() {}, nil
	}
}

// newCache returns the history cache and, for the in-memory cache, the
// sweep job that drops expired entries.
func newCache(ctx context.Context, cfg *config.Config) (cache.Cache, func(context.Context) error, func(), error) {
	if cfg.Cache.Backend == config.CacheRedis {
		r, err := cache.NewRedis(ctx, cache.RedisOptions{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			Namespace: "attendance-desk",
		})
		if err != nil {
			return nil, nil, nil, err
		}
		return r, nil, func() { _ = r.Close() }, nil
	}

	mem := cache.NewMemory()
	sweep := func(ctx context.Context) error {
		removed, err := mem.Sweep(ctx)
		if removed > 0 {
			slog.Debug("Swept expired history entries", slog.Int("count", removed))
		}
		return err
	}
	return mem, sweep, func() {}, nil
}
