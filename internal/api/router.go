package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kmills/fitbattle-backend/internal/api/handlers"
	"github.com/kmills/fitbattle-backend/internal/api/middleware"
	"github.com/kmills/fitbattle-backend/internal/config"
	"github.com/kmills/fitbattle-backend/internal/service"
)

func NewRouter(services *service.Services, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(middleware.CORS)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(services.Auth)
	battleHandler := handlers.NewBattleHandler(services.Battle)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public auth routes
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)

			// Protected auth routes
			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(services.Auth))
				r.Get("/me", authHandler.Me)
				r.Post("/logout", authHandler.Logout)
			})
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(services.Auth))

			// Battle routes
			r.Route("/battles", func(r chi.Router) {
				r.Post("/", battleHandler.Create)
				r.Get("/", battleHandler.List)
				r.Get("/{id}", battleHandler.Get)
				r.Post("/{id}/accept", battleHandler.Accept)
				r.Post("/{id}/baseline", battleHandler.SetBaseline)
				r.Post("/{id}/progress", battleHandler.UpdateProgress)
				r.Post("/{id}/updates", battleHandler.AddUpdate)
				r.Post("/{id}/spectators", battleHandler.AddSpectator)
				r.Post("/{id}/complete", battleHandler.Complete)
				r.Post("/{id}/cancel", battleHandler.Cancel)
			})

			// User routes
			r.Route("/users", func(r chi.Router) {
				r.Get("/me/battles", battleHandler.GetUserBattles)
				r.Get("/me/stats", battleHandler.GetUserStats)
			})
		})
	})

	return r
}
