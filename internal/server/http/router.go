package http

import (
	"net/http"

	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter wires the REST routes. allowedOrigins enables CORS when
// non-empty.
func NewRouter(h *Handler, allowedOrigins []string, log logging.Logger) *chi.Mux {
	r := chi.NewRouter()

	// CORS - must be first
	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Use(SecurityHeaders)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.Health)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/refresh", h.Refresh)
		r.With(h.RequireAuth).Post("/logout", h.Logout)
		r.With(h.RequireInternalKey).Post("/oauth/callback", h.OAuthCallback)
	})

	r.Route("/users", func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Get("/", h.ListUsers)
		r.Get("/me", h.Me)
		r.Patch("/me", h.UpdateMe)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, "route not found", http.StatusNotFound)
	})

	return r
}
