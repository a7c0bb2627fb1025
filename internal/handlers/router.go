package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/cabtrips/internal/middleware"
	"github.com/ukydev/cabtrips/internal/models"
)

// Login attempts allowed per client per window.
const (
	loginAttempts = 10
	loginWindow   = time.Minute
)

// Router wires the view API handlers.
type Router struct {
	Auth     *AuthHandler
	Trips    *TripsHandler
	Fleet    *FleetHandler
	Sessions middleware.SessionLookup
	Limiter  *middleware.RateLimitMiddleware
	Origins  []string
	Logger   *log.Entry
}

// Handler builds the HTTP handler for the view API.
func (rt *Router) Handler() http.Handler {
	logger := rt.Logger
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(rt.Origins))
	rt.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers every view API route on r.
func (rt *Router) RegisterRoutes(r chi.Router) {
	r.Get("/health", Health)

	r.Group(func(r chi.Router) {
		if rt.Limiter != nil {
			r.Use(rt.Limiter.RateLimit(loginAttempts, loginWindow))
		}
		r.Post("/api/auth/login", rt.Auth.Login)
		r.Post("/api/auth/register", rt.Auth.Register)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionAuth(rt.Sessions))

		r.Post("/api/auth/logout", rt.Auth.Logout)
		r.Get("/api/auth/me", rt.Auth.Me)

		r.Get("/api/trips", rt.Trips.List)

		r.Route("/api/views/{role}", func(r chi.Router) {
			r.Get("/", rt.Trips.Snapshot)
			r.Delete("/", rt.Trips.Close)
			r.Put("/criteria", rt.Trips.SetCriteria)
			r.Put("/search", rt.Trips.SetSearch)
			r.Post("/sort/{key}", rt.Trips.ToggleSort)
			r.Post("/page/{target}", rt.Trips.Page)
			r.Put("/page-size", rt.Trips.SetPageSize)
			r.Post("/refresh", rt.Trips.Refresh)
			r.Get("/export.csv", rt.Trips.ExportCSV)
			r.Get("/export.xlsx", rt.Trips.ExportXLSX)
			r.Post("/trips/{id}/{action}", rt.Trips.Action)
		})

		r.Route("/api/cabs/{id}", func(r chi.Router) {
			r.Use(middleware.RequireSessionRole(models.RoleDriver))
			r.Put("/", rt.Fleet.UpdateCab)
			r.Post("/images", rt.Fleet.UploadImage)
			r.Delete("/images/{name}", rt.Fleet.DeleteImage)
		})

		r.Route("/api/admin/verifications", func(r chi.Router) {
			r.Use(middleware.RequireSessionRole(models.RoleAdmin))
			r.Get("/", rt.Fleet.PendingVerifications)
			r.Post("/{id}/{decision}", rt.Fleet.Review)
		})
	})
}

// Health reports that the service is up.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
