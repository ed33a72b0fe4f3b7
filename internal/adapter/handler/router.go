package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts the HTTP API. requireOperator guards the endpoints that
// write to the ledger or the mirror; metrics may be nil.
func NewRouter(h *HTTPHandler, requireOperator func(http.Handler) http.Handler, metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.HealthCheck)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}
	r.Get("/verify", h.Verify)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(5 * time.Minute))
		r.Post("/login", h.Login)
		r.Get("/get-product", h.GetProduct)
		r.Get("/token", h.Token)

		r.Group(func(r chi.Router) {
			r.Use(requireOperator)
			r.Post("/register", h.Register)
			r.Post("/add-product", h.AddProduct)
		})
	})
	return r
}
