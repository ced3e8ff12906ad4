package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Pinger reports whether the store is reachable.
type Pinger func(ctx context.Context) error

// Router holds what NewRouter wires together.
type Router struct {
	Events  *EventHandler
	Booking *BookingHandler

	// Authenticate guards the purchase routes.
	Authenticate func(http.Handler) http.Handler

	Ping          Pinger
	Log           zerolog.Logger
	AllowedOrigin string
}

// HealthCheck handles GET /health.
func HealthCheck(ping Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// NewRouter builds the HTTP API.
func NewRouter(rt Router) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger(rt.Log))
	r.Use(CORS(rt.AllowedOrigin))

	r.Get("/health", HealthCheck(rt.Ping))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/client", func(r chi.Router) {
		r.Get("/events", rt.Events.ListAvailable)
		r.Get("/events/{id}", rt.Events.GetEvent)

		r.Group(func(r chi.Router) {
			r.Use(rt.Authenticate)
			r.Post("/purchase", rt.Booking.Purchase)
			r.Get("/purchases", rt.Booking.ListPurchases)
		})
	})

	r.Route("/api/llm", func(r chi.Router) {
		r.Get("/events", rt.Events.ListAvailable)
		r.With(rt.Authenticate).Post("/confirm_booking", rt.Booking.ConfirmBooking)
	})

	r.Route("/api/admin/events", func(r chi.Router) {
		r.Get("/", rt.Events.ListEvents)
		r.Post("/", rt.Events.CreateEvent)
		r.Get("/{id}", rt.Events.GetEvent)
		r.Put("/{id}", rt.Events.UpdateEvent)
		r.Delete("/{id}", rt.Events.DeleteEvent)
	})

	return r
}
