package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/gkasar/healthdash-be/internal/api/handlers"
	"github.com/gkasar/healthdash-be/internal/auth"
	"github.com/gkasar/healthdash-be/internal/services"
)

// NewRouter creates and configures a new Chi router exposing the identity
// store to the dashboard frontend.
func NewRouter(identityService services.IdentityServiceProvider, sessionTTL time.Duration) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration for development
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"}, // Adjust for your frontend URL
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authHandler := handlers.NewAuthHandler(identityService, sessionTTL)
	accountHandler := handlers.NewAccountHandler(identityService)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)

			r.Group(func(r chi.Router) {
				r.Use(auth.SessionMiddleware(identityService))
				r.Get("/me", authHandler.Me)
			})
		})

		r.Route("/account", func(r chi.Router) {
			r.Use(auth.SessionMiddleware(identityService))
			r.Put("/password", accountHandler.ChangePassword)
			r.Put("/email", accountHandler.ChangeEmail)
			r.Delete("/", accountHandler.Delete)
		})
	})

	return r
}
