package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
	"github.com/tutorias/attendance-desk/internal/domain/user"
	"github.com/tutorias/attendance-desk/internal/handler/http/middleware"
	"github.com/tutorias/attendance-desk/internal/handler/http/response"
	"github.com/tutorias/attendance-desk/internal/pkg/jwt"
)

type RouterOptions struct {
	Logger         *slog.Logger
	LogLevel       slog.Level
	AllowedOrigins []string
	// Metrics is mounted on /metrics when set.
	Metrics http.Handler
	// Ready backs /ready. Nil always reports ready.
	Ready func(ctx context.Context) bool
}

func NewRouter(opts RouterOptions, JWTService jwt.Service, attendanceHandler AttendanceHandler) *chi.Mux {
	r := chi.NewRouter()

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  opts.LogLevel,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.AllowContentEncoding("application/json"))
	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if opts.Ready != nil && !opts.Ready(r.Context()) {
			response.ServiceUnavailable(w, "Cache is not reachable")
			return
		}
		response.Success(w, map[string]string{"status": "ready"})
	})

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {

		// SSE authenticates with a query token
		r.Get("/sections/{sectionID}/attendance/events", attendanceHandler.Stream)

		// Requires authentication
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(JWTService.JWTAuth()))
			r.Use(middleware.AuthRequired(JWTService.JWTAuth()))
			r.Use(middleware.ForwardBearer)

			r.With(middleware.RequirePermission(user.PermissionCourseView)).Get("/sections", attendanceHandler.MySections)

			r.Route("/sections/{sectionID}/attendance", func(r chi.Router) {

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequirePermission(user.PermissionAttendanceEdit))
					r.Get("/today", attendanceHandler.LoadToday)
					r.Get("/draft", attendanceHandler.Draft)
					r.Put("/students/{linkID}", attendanceHandler.SetStudentStatus)
					r.Post("/revert", attendanceHandler.Revert)
					r.Post("/save", attendanceHandler.Save)
					r.Post("/guardians", attendanceHandler.AddGuardianRecord)
				})

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequirePermission(user.PermissionAttendanceViewHistory))
					r.Get("/history", attendanceHandler.History)
					r.Get("/events/token", attendanceHandler.GetSSEToken)
				})

				r.With(middleware.RequirePermission(user.PermissionCourseManage)).
					Delete("/history/cache", attendanceHandler.InvalidateHistory)
			})
		})
	})
	return r
}
