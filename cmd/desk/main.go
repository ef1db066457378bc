package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tutorias/attendance-desk/internal/config"
	"github.com/tutorias/attendance-desk/internal/desk"
	"github.com/tutorias/attendance-desk/internal/domain/attendance"
	"github.com/tutorias/attendance-desk/internal/domain/user"
	"github.com/tutorias/attendance-desk/internal/gateway/rest"
	"github.com/tutorias/attendance-desk/internal/pkg/cache"
	"github.com/tutorias/attendance-desk/internal/pkg/database"
	"github.com/tutorias/attendance-desk/internal/pkg/jwt"
	"github.com/tutorias/attendance-desk/internal/pkg/logger"
	"github.com/tutorias/attendance-desk/internal/repository/postgresql"
	attendanceService "github.com/tutorias/attendance-desk/internal/service/attendance"
)

var version = "dev"

func main() {
	operatorID := flag.String("operator", os.Getenv("DESK_OPERATOR_ID"), "operator user id")
	role := flag.String("role", string(user.RoleTutor), "operator role used for upstream calls")
	flag.Parse()

	if err := run(*operatorID, *role); err != nil {
		fmt.Fprintln(os.Stderr, "desk:", err)
		os.Exit(1)
	}
}

func run(operatorID, rawRole string) error {
	if operatorID == "" {
		return fmt.Errorf("an operator id is required (-operator or DESK_OPERATOR_ID)")
	}
	role, ok := user.ParseRole(rawRole)
	if !ok {
		return fmt.Errorf("%w: %s", user.ErrUnknownRole, rawRole)
	}
	if !user.HasPermission(role, user.PermissionAttendanceEdit) {
		return fmt.Errorf("%w: %s cannot take attendance", user.ErrInsufficientPermissions, role)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Logs go to stderr so they do not interleave with the console's tables.
	log := logger.New(os.Stderr, logger.Options{
		App:     "attendance-desk-console",
		Version: version,
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
	})
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var gw attendance.Gateway
	switch cfg.Gateway.Backend {
	case config.BackendPostgres:
		db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL())
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer db.Close()
		if err := postgresql.EnsureSchema(ctx, db); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		gw = postgresql.NewAttendanceGateway(db, cfg.App.Timezone)

	default:
		client, err := rest.New(rest.Options{
			BaseURL:        cfg.Gateway.BaseURL,
			Timeout:        cfg.Gateway.Timeout,
			LegacyStatuses: cfg.Gateway.LegacyStatuses,
			Location:       cfg.App.Timezone,
			Logger:         log,
		})
		if err != nil {
			return err
		}
		gw = client

		token, _, err := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration).
			GenerateAccessToken(user.Operator{ID: operatorID, Role: role})
		if err != nil {
			return fmt.Errorf("issue operator token: %w", err)
		}
		ctx = rest.WithToken(ctx, token)
	}

	history := attendanceService.NewHistoryViewer(gw, attendanceService.HistoryOptions{
		Cache:    cache.NewMemory(),
		TTL:      cfg.Cache.HistoryTTL,
		MinYear:  cfg.History.MinYear,
		Location: cfg.App.Timezone,
		Logger:   log,
	})

	console := desk.New(gw, history, os.Stdin, os.Stdout, desk.Options{
		OperatorID: operatorID,
		Locale:     cfg.App.Locale,
		Location:   cfg.App.Timezone,
		Logger:     log,
	})
	return console.Run(ctx)
}
