package devbackend

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/cabtrips/internal/db"
	"github.com/ukydev/cabtrips/internal/events"
	"github.com/ukydev/cabtrips/internal/models"
)

const (
	baseFare     = 50.0
	defaultPerKm = 14.0
)

// transition is one trip action: the statuses it leaves from and the one it
// arrives at.
type transition struct {
	from []string
	to   string
}

var transitions = map[string]transition{
	"accept":   {from: []string{models.BookingRequested, models.BookingConfirmed}, to: models.BookingAccepted},
	"start":    {from: []string{models.BookingAccepted}, to: models.BookingInProgress},
	"complete": {from: []string{models.BookingInProgress}, to: models.BookingCompleted},
	"cancel": {from: []string{
		models.BookingRequested, models.BookingConfirmed, models.BookingAccepted, models.BookingInProgress,
	}, to: models.BookingCancelled},
}

func (s *Server) listBookings(w http.ResponseWriter, r *http.Request, f db.BookingFilter) {
	bookings, err := s.bookings.FindBookings(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	writeJSON(w, http.StatusOK, bookings)
}

// AllTrips lists every booking.
func (s *Server) AllTrips(w http.ResponseWriter, r *http.Request) {
	s.listBookings(w, r, db.BookingFilter{})
}

// TripsByDriver lists the bookings assigned to a driver. Drivers may only
// list their own.
func (s *Server) TripsByDriver(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if c := claimsFrom(r); c.Role != models.RoleAdmin && (c.Role != models.RoleDriver || c.UserID != id) {
		s.writeError(w, r, errForbidden)
		return
	}
	s.listBookings(w, r, db.BookingFilter{DriverID: id})
}

// TripsByCustomer lists the bookings of a customer. Customers may only list
// their own.
func (s *Server) TripsByCustomer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if c := claimsFrom(r); c.Role != models.RoleAdmin && (c.Role != models.RoleCustomer || c.UserID != id) {
		s.writeError(w, r, errForbidden)
		return
	}
	s.listBookings(w, r, db.BookingFilter{CustomerID: id})
}

// TripsByDate lists the bookings starting on one day.
func (s *Server) TripsByDate(w http.ResponseWriter, r *http.Request) {
	day, err := time.ParseInLocation("2006-01-02", chi.URLParam(r, "day"), s.loc)
	if err != nil {
		httpError(w, http.StatusBadRequest, "day must be YYYY-MM-DD")
		return
	}
	end := day.AddDate(0, 0, 1)
	s.listBookings(w, r, db.BookingFilter{From: &day, To: &end})
}

// TripAction moves a booking through accept, start, complete or cancel.
// Repeating an action that already took effect succeeds without a change.
func (s *Server) TripAction(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")
	tr, ok := transitions[action]
	if !ok {
		httpError(w, http.StatusBadRequest, fmt.Sprintf("unknown action %q", action))
		return
	}
	id := chi.URLParam(r, "id")
	claims := claimsFrom(r)

	booking, err := s.bookings.FindBooking(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !mayAct(claims, booking, action) {
		s.writeError(w, r, errForbidden)
		return
	}

	now := s.clock().UTC()
	set := map[string]any{}
	switch action {
	case "accept":
		if claims.Role == models.RoleDriver {
			set["driver_id"] = claims.UserID
		}
	case "start":
		set["from_date_time"] = now
	case "complete":
		set["to_date_time"] = now
	}

	updated, err := s.bookings.TransitionStatus(r.Context(), id, tr.from, tr.to, set)
	if err != nil {
		if updated != nil {
			httpError(w, http.StatusConflict, fmt.Sprintf("cannot %s a %s trip", action, strings.ToLower(updated.Status)))
			return
		}
		s.writeError(w, r, err)
		return
	}

	s.publish(r.Context(), events.StatusEvent{TripID: id, Status: updated.Status, At: now})
	writeJSON(w, http.StatusOK, models.StatusUpdate{TripBookingID: id, Status: updated.Status, At: now})
}

// mayAct reports whether the caller may run action on b. Drivers act on
// their own trips and accept unassigned ones; customers may only cancel
// their own.
func mayAct(c *models.Claims, b *models.Booking, action string) bool {
	switch c.Role {
	case models.RoleAdmin:
		return true
	case models.RoleDriver:
		return b.DriverID == c.UserID || (action == "accept" && b.DriverID == "")
	case models.RoleCustomer:
		return action == "cancel" && b.Customer.CustomerID == c.UserID
	default:
		return false
	}
}

func (s *Server) publish(ctx context.Context, ev events.StatusEvent) {
	if err := s.events.PublishStatus(ctx, ev); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"trip_id": ev.TripID,
			"status":  ev.Status,
		}).Warn("Failed to publish status event")
	}
}

// RatingRequest carries a passenger's rating.
type RatingRequest struct {
	Rating float64 `json:"rating"`
}

// RateTrip rates a completed booking of the caller.
func (s *Server) RateTrip(w http.ResponseWriter, r *http.Request) {
	var req RatingRequest
	if err := decodeJSON(r, &req); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		s.writeError(w, r, models.ValidationErrors{"rating": "rating must be between 1 and 5"})
		return
	}
	id := chi.URLParam(r, "id")
	claims := claimsFrom(r)

	booking, err := s.bookings.FindBooking(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if claims.Role != models.RoleAdmin && booking.Customer.CustomerID != claims.UserID {
		s.writeError(w, r, errForbidden)
		return
	}
	updated, err := s.bookings.SetRating(r.Context(), id, req.Rating)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// ValidateBookRequest checks a booking request.
func ValidateBookRequest(req models.BookRequest) error {
	errs := models.ValidationErrors{}
	if strings.TrimSpace(req.FromLocation) == "" {
		errs.Add("fromLocation", "pickup location is required")
	}
	if strings.TrimSpace(req.ToLocation) == "" {
		errs.Add("toLocation", "drop location is required")
	}
	if req.DistanceInKm <= 0 {
		errs.Add("distanceinKm", "distance must be positive")
	}
	if p := strings.ToLower(req.PaymentMode); p != "" && p != "cash" && p != "card" && p != "upi" && p != "wallet" {
		errs.Add("paymentMode", "payment mode must be cash, card, upi or wallet")
	}
	return errs.Err()
}

// Fare prices a trip of distance km at perKm.
func Fare(distance, perKm float64) float64 {
	return math.Round(baseFare + perKm*distance)
}

// BookTrip creates a requested booking for the caller.
func (s *Server) BookTrip(w http.ResponseWriter, r *http.Request) {
	var req models.BookRequest
	if err := decodeJSON(r, &req); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := ValidateBookRequest(req); err != nil {
		s.writeError(w, r, err)
		return
	}
	claims := claimsFrom(r)
	if claims.Role == models.RoleCustomer {
		req.CustomerID = claims.UserID
	}
	if req.CustomerID == "" {
		s.writeError(w, r, models.ValidationErrors{"customerId": "customer is required"})
		return
	}
	if req.CustomerName == "" {
		req.CustomerName = claims.Username
	}

	now := s.clock().UTC()
	start := now
	if req.FromDateTime != nil && req.FromDateTime.After(now) {
		start = req.FromDateTime.UTC()
	}
	paymentMode := strings.ToLower(req.PaymentMode)
	if paymentMode == "" {
		paymentMode = "cash"
	}
	booking := models.Booking{
		TripBookingID: NewTripBookingID(),
		Customer:      models.BookingCustomer{CustomerID: req.CustomerID, CustomerName: req.CustomerName},
		FromLocation:  req.FromLocation,
		ToLocation:    req.ToLocation,
		FromCity:      req.FromCity,
		ToCity:        req.ToCity,
		FromLatitude:  req.FromLatitude,
		FromLongitude: req.FromLongitude,
		ToLatitude:    req.ToLatitude,
		ToLongitude:   req.ToLongitude,
		FromDateTime:  &start,
		DistanceInKm:  req.DistanceInKm,
		Bill:          Fare(req.DistanceInKm, defaultPerKm),
		Status:        models.BookingRequested,
		PaymentMode:   paymentMode,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.bookings.InsertBooking(r.Context(), booking); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.WithFields(log.Fields{
		"trip_id":     booking.TripBookingID,
		"customer_id": booking.Customer.CustomerID,
	}).Info("Trip booked")
	s.publish(r.Context(), events.StatusEvent{TripID: booking.TripBookingID, Status: booking.Status, At: now})
	writeJSON(w, http.StatusCreated, booking)
}

// NewTripBookingID returns a fresh booking id such as TB3F2A9C1D.
func NewTripBookingID() string {
	return "TB" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
