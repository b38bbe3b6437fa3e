package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter wires the HTTP surface over the core services. Every protected
// route goes through RequireAuth, so each request carries a freshly resolved
// Principal.
func NewRouter(h Handlers) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/register", h.Register)
		r.Post("/auth/worker-signup", h.WorkerSignup)
		r.Post("/auth/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(h.Identity))

			r.Get("/bookings", h.ListBookings)
			r.Post("/bookings", h.CreateBooking)
			r.Get("/bookings/{id}", h.GetBooking)
			r.Post("/bookings/{id}/advance", h.AdvanceBooking)
			r.Post("/bookings/{id}/assign", h.AssignWorker)

			r.Get("/workers", h.ListWorkers)
			r.Post("/workers/apply", h.ApplyAsWorker)
			r.Get("/workers/{id}", h.GetWorker)
			r.Post("/workers/{id}/review", h.ReviewWorker)
		})
	})

	return r
}
