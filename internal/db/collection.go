package db

import (
	"context"
	"errors"
	"time"

	"github.com/ukydev/cabtrips/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("conflicting state")
	ErrDuplicate = errors.New("duplicate key")
	ErrNilColl   = errors.New("mongo collection is nil")
)

// BookingFilter selects bookings. Empty fields match everything.
type BookingFilter struct {
	DriverID   string
	CustomerID string
	From       *time.Time
	To         *time.Time
	Statuses   []string
	Limit      int64
}

// BookingCollection defines the interface for trip booking operations.
type BookingCollection interface {
	InsertBooking(ctx context.Context, booking models.Booking) error
	FindBooking(ctx context.Context, tripBookingID string) (*models.Booking, error)
	FindBookings(ctx context.Context, filter BookingFilter) ([]models.Booking, error)
	TransitionStatus(ctx context.Context, tripBookingID string, from []string, to string, set map[string]any) (*models.Booking, error)
	SetRating(ctx context.Context, tripBookingID string, rating float64) (*models.Booking, error)
}

// CabCollection defines the interface for cab operations.
type CabCollection interface {
	InsertCab(ctx context.Context, cab models.Cab) (*models.Cab, error)
	FindCabByID(ctx context.Context, id string) (*models.Cab, error)
	FindCabByDriver(ctx context.Context, driverID string) (*models.Cab, error)
	UpdateCab(ctx context.Context, id string, update models.CabUpdate) (*models.Cab, error)
	AddImage(ctx context.Context, id, name string) (*models.Cab, error)
	RemoveImage(ctx context.Context, id, name string) (*models.Cab, error)
}

// VerificationCollection defines the interface for driver verification operations.
type VerificationCollection interface {
	InsertVerification(ctx context.Context, v models.Verification) (*models.Verification, error)
	FindPending(ctx context.Context) ([]models.Verification, error)
	Review(ctx context.Context, id string, state models.VerificationState, note, reviewer string) (*models.Verification, error)
}
