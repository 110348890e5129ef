package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/metrics-bridge/internal/api/handlers"
	"github.com/isdelr/metrics-bridge/internal/auth"
	"github.com/isdelr/metrics-bridge/internal/services"
	"github.com/isdelr/metrics-bridge/internal/websocket"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

// Dependencies are the services the router binds to routes.
type Dependencies struct {
	Hub        *websocket.Hub
	Authorizer *auth.Authorizer
	Tickets    *auth.TicketIssuer
	Users      services.UserServiceProvider
	Sessions   services.SessionServiceProvider
	Metrics    services.MetricsServiceProvider
	History    services.HistoryServiceProvider
	Admin      services.AdminServiceProvider
	Console    handlers.ConsoleHistory
	Events     services.EventServiceProvider

	AllowedOrigins []string
	// WebDir, when set, is served as the static dashboard at /.
	WebDir string
}

// NewRouter creates and configures a new Chi router.
func NewRouter(d Dependencies) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", middleware.GetReqID(r.Context())).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("HTTP request")
	}))
	r.Use(middleware.Recoverer)

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", auth.SessionHeader},
		ExposedHeaders: []string{"Link"},
		MaxAge:         300,
	}))

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(d.Sessions, d.Users, d.Events)
	metricsHandler := handlers.NewMetricsHandler(d.Metrics, d.History)
	consoleHandler := handlers.NewConsoleHandler(d.Admin, d.Console)
	adminHandler := handlers.NewAdminHandler(d.Admin, d.Users)
	eventHandler := handlers.NewEventHandler(d.Events)
	wsHandler := handlers.NewWebSocketHandler(d.Hub, d.Tickets, d.Users, d.Console, d.AllowedOrigins)

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/session", authHandler.Session)
		// The websocket authenticates with its own ticket.
		r.Get("/console/ws", wsHandler.Serve)

		r.Group(func(r chi.Router) {
			r.Use(d.Authorizer.Middleware)

			r.Get("/test", metricsHandler.Test)
			r.Get("/metrics", metricsHandler.Get)
			r.Get("/metrics/history", metricsHandler.History)

			r.With(auth.RequireSession).Post("/change-password", authHandler.ChangePassword)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAdmin)

				r.Get("/console/history", consoleHandler.History)
				r.Post("/console", consoleHandler.Execute)
				r.Get("/console/ticket", wsHandler.Ticket)
				r.Post("/teleport", consoleHandler.Teleport)

				r.Route("/admin/users", func(r chi.Router) {
					r.Get("/", adminHandler.ListUsers)
					r.Post("/", adminHandler.CreateUser)
					r.Delete("/{username}", adminHandler.DeleteUser)
					r.Put("/{username}/admin", adminHandler.SetAdmin)
				})

				if d.Events != nil {
					r.Get("/events", eventHandler.GetRecent)
				}
			})
		})
	})

	if d.WebDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(d.WebDir)))
	}

	return r
}
