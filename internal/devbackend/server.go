// Package devbackend is a development implementation of the cab booking
// backend the trip views read from. It stores users, bookings, cabs and
// driver verifications in MongoDB and publishes trip status changes.
package devbackend

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/cabtrips/internal/auth"
	"github.com/ukydev/cabtrips/internal/db"
	"github.com/ukydev/cabtrips/internal/events"
	"github.com/ukydev/cabtrips/internal/middleware"
	"github.com/ukydev/cabtrips/internal/models"
)

const maxBodyBytes = 1 << 20

// Options configures a Server.
type Options struct {
	ImageDir string         // where uploaded cab images are written; empty keeps names only
	Location *time.Location // day boundaries for date lookups
	Clock    func() time.Time
	Logger   *log.Entry
}

// Server serves the backend API.
type Server struct {
	auth          *auth.Service
	users         db.UserCollection
	bookings      db.BookingCollection
	cabs          db.CabCollection
	verifications db.VerificationCollection
	events        events.Bus
	limiter       *middleware.RateLimitMiddleware

	imageDir string
	loc      *time.Location
	clock    func() time.Time
	logger   *log.Entry
}

// Deps are the collaborators of a Server.
type Deps struct {
	Auth          *auth.Service
	Users         db.UserCollection
	Bookings      db.BookingCollection
	Cabs          db.CabCollection
	Verifications db.VerificationCollection
	Events        events.Bus // nil publishes nothing
}

// New returns a Server over deps.
func New(deps Deps, opts Options) *Server {
	bus := deps.Events
	if bus == nil {
		bus = events.Noop{}
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Server{
		auth:          deps.Auth,
		users:         deps.Users,
		bookings:      deps.Bookings,
		cabs:          deps.Cabs,
		verifications: deps.Verifications,
		events:        bus,
		limiter:       middleware.NewRateLimitMiddleware(),
		imageDir:      opts.ImageDir,
		loc:           loc,
		clock:         clock,
		logger:        logger,
	}
}

// Handler builds the HTTP handler of the backend API.
func (s *Server) Handler() http.Handler {
	authn := middleware.NewAuthMiddleware(s.auth)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(s.logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(s.limiter.RateLimit(20, time.Minute))
		r.Post("/auth/login", s.Login)
		r.Post("/auth/register", s.Register)
	})

	r.Group(func(r chi.Router) {
		r.Use(authn.Authenticate)

		r.With(authn.RequireRole(models.RoleAdmin)).Get("/trips", s.AllTrips)
		r.With(authn.RequireRole(models.RoleAdmin)).Get("/trips/date/{day}", s.TripsByDate)
		r.With(authn.RequirePermission("view_own_trips")).Get("/trips/driver/{id}", s.TripsByDriver)
		r.With(authn.RequirePermission("view_own_trips")).Get("/trips/customer/{id}", s.TripsByCustomer)
		r.With(authn.RequirePermission("book_trip")).Post("/trips", s.BookTrip)
		r.With(authn.RequirePermission("rate_trip")).Put("/trips/{id}/rating", s.RateTrip)
		r.With(authn.RequirePermission("cancel_trip")).Put("/trips/{id}/{action}", s.TripAction)

		r.Route("/cabs/{id}", func(r chi.Router) {
			r.Use(authn.RequirePermission("manage_cab"))
			r.Put("/", s.UpdateCab)
			r.Post("/images", s.UploadImage)
			r.Delete("/images/{name}", s.DeleteImage)
		})

		r.Route("/admin/verifications", func(r chi.Router) {
			r.Use(authn.RequireRole(models.RoleAdmin))
			r.Get("/", s.PendingVerifications)
			r.Put("/{id}", s.ReviewVerification)
		})
	})
	return r
}

type errorBody struct {
	Error  string                  `json:"error"`
	Fields models.ValidationErrors `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("Failed to write response")
	}
}

func httpError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeError maps storage and validation errors to responses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if fields, ok := models.AsValidationErrors(err); ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "validation failed", Fields: fields})
		return
	}
	switch {
	case errors.Is(err, db.ErrNotFound):
		httpError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, db.ErrConflict):
		httpError(w, http.StatusConflict, err.Error())
	case errors.Is(err, db.ErrDuplicate):
		httpError(w, http.StatusConflict, "Already exists")
	case errors.Is(err, errForbidden):
		httpError(w, http.StatusForbidden, "Insufficient permissions")
	default:
		s.logger.WithError(err).WithField("path", r.URL.Path).Error("Request failed")
		httpError(w, http.StatusInternalServerError, "Internal error")
	}
}

func decodeJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return errors.New("failed to read request body")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.New("invalid JSON")
	}
	return nil
}

var errForbidden = errors.New("forbidden")

func claimsFrom(r *http.Request) *models.Claims {
	claims, _ := middleware.GetUserFromContext(r.Context())
	return claims
}
