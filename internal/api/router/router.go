// Package router assembles the HTTP surface: public health and metrics,
// plus the versioned API grouped by role.
package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openvax/vaxclinic-platform/internal/appointments"
	"github.com/openvax/vaxclinic-platform/internal/availability"
	"github.com/openvax/vaxclinic-platform/internal/clinics"
	"github.com/openvax/vaxclinic-platform/internal/http/middleware"
	"github.com/openvax/vaxclinic-platform/internal/identity"
	"github.com/openvax/vaxclinic-platform/internal/inventory"
	"github.com/openvax/vaxclinic-platform/pkg/logging"
)

// Config carries the wired handlers and the ambient HTTP settings.
type Config struct {
	Logger             *logging.Logger
	JWTSecret          string
	CORSAllowedOrigins []string
	RateLimitPerSecond float64
	RateLimitBurst     int

	Availability *availability.Handler
	Appointments *appointments.Handler
	Clinics      *clinics.Handler
	Stats        *clinics.StatsHandler
	Inventory    *inventory.Handler
}

// New builds the router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(cfg.Logger))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	if cfg.RateLimitPerSecond > 0 {
		r.Use(middleware.RateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	auth := func(roles ...identity.Role) func(http.Handler) http.Handler {
		return middleware.Auth(cfg.JWTSecret, roles...)
	}

	r.Route("/api/v1", func(api chi.Router) {
		// Shared reads.
		api.Group(func(g chi.Router) {
			g.Use(auth(identity.RoleParent, identity.RoleStaff, identity.RoleAdmin))
			g.Get("/clinics", cfg.Clinics.List)
			g.Get("/appointments", cfg.Appointments.List)
			g.Get("/appointments/{appointmentID}", cfg.Appointments.Get)
			g.Post("/appointments/{appointmentID}/cancel", cfg.Appointments.Cancel)
		})

		// Booking and rescheduling.
		api.Group(func(g chi.Router) {
			g.Use(auth(identity.RoleParent, identity.RoleAdmin))
			g.Get("/clinics/{clinicID}/slots", cfg.Availability.GetSlots)
			g.Post("/appointments", cfg.Appointments.Create)
			g.Post("/appointments/{appointmentID}/reschedule", cfg.Appointments.Reschedule)
		})

		api.Group(func(g chi.Router) {
			g.Use(auth(identity.RoleParent))
			g.Post("/appointments/{appointmentID}/acknowledge", cfg.Appointments.Acknowledge)
		})

		api.Group(func(g chi.Router) {
			g.Use(auth(identity.RoleStaff))
			g.Post("/appointments/{appointmentID}/status", cfg.Appointments.UpdateStatus)
		})

		api.Group(func(g chi.Router) {
			g.Use(auth(identity.RoleAdmin))
			g.Delete("/appointments/{appointmentID}", cfg.Appointments.Delete)
			g.Get("/admin/clinics/{clinicID}/stats", cfg.Stats.GetStats)
			g.Put("/admin/clinics/{clinicID}/schedule", cfg.Clinics.SetSchedule)
			g.Get("/admin/clinics/{clinicID}/inventory", cfg.Inventory.ListByClinic)
		})
	})

	return r
}
