package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Booking statuses as the backend stores and returns them.
const (
	BookingRequested  = "REQUESTED"
	BookingConfirmed  = "CONFIRMED"
	BookingAccepted   = "ACCEPTED"
	BookingInProgress = "IN_PROGRESS"
	BookingCompleted  = "COMPLETED"
	BookingCancelled  = "CANCELLED"
)

// BookingCustomer is the passenger embedded in a booking.
type BookingCustomer struct {
	CustomerID   string `bson:"customer_id" json:"customerId"`
	CustomerName string `bson:"customer_name" json:"customerName"`
	Mobile       string `bson:"mobile,omitempty" json:"mobile,omitempty"`
}

// Booking is the backend's trip document. Its JSON field names are the
// backend wire format that the trip views normalize from.
type Booking struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	TripBookingID string             `bson:"trip_booking_id" json:"tripBookingId"`
	Customer      BookingCustomer    `bson:"customer" json:"customer"`
	DriverID      string             `bson:"driver_id,omitempty" json:"driverId,omitempty"`
	CabID         string             `bson:"cab_id,omitempty" json:"cabId,omitempty"`
	FromLocation  string             `bson:"from_location" json:"fromLocation"`
	ToLocation    string             `bson:"to_location" json:"toLocation"`
	FromCity      string             `bson:"from_city,omitempty" json:"fromCity,omitempty"`
	ToCity        string             `bson:"to_city,omitempty" json:"toCity,omitempty"`
	FromState     string             `bson:"from_state,omitempty" json:"fromState,omitempty"`
	ToState       string             `bson:"to_state,omitempty" json:"toState,omitempty"`
	FromLatitude  *float64           `bson:"from_latitude,omitempty" json:"fromLatitude,omitempty"`
	FromLongitude *float64           `bson:"from_longitude,omitempty" json:"fromLongitude,omitempty"`
	ToLatitude    *float64           `bson:"to_latitude,omitempty" json:"toLatitude,omitempty"`
	ToLongitude   *float64           `bson:"to_longitude,omitempty" json:"toLongitude,omitempty"`
	FromDateTime  *time.Time         `bson:"from_date_time,omitempty" json:"fromDateTime"`
	ToDateTime    *time.Time         `bson:"to_date_time,omitempty" json:"toDateTime"`
	DistanceInKm  float64            `bson:"distance_in_km" json:"distanceinKm"`
	Bill          float64            `bson:"bill" json:"bill"`
	Tip           float64            `bson:"tip" json:"tip"`
	Status        string             `bson:"status" json:"status"`
	PaymentMode   string             `bson:"payment_mode" json:"paymentMode"`
	Rating        float64            `bson:"rating" json:"rating"`
	CreatedAt     time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updatedAt"`
}

// BookRequest asks the backend for a new trip.
type BookRequest struct {
	CustomerID    string     `json:"customerId"`
	CustomerName  string     `json:"customerName"`
	FromLocation  string     `json:"fromLocation"`
	ToLocation    string     `json:"toLocation"`
	FromCity      string     `json:"fromCity,omitempty"`
	ToCity        string     `json:"toCity,omitempty"`
	FromLatitude  *float64   `json:"fromLatitude,omitempty"`
	FromLongitude *float64   `json:"fromLongitude,omitempty"`
	ToLatitude    *float64   `json:"toLatitude,omitempty"`
	ToLongitude   *float64   `json:"toLongitude,omitempty"`
	FromDateTime  *time.Time `json:"fromDateTime,omitempty"`
	DistanceInKm  float64    `json:"distanceinKm"`
	PaymentMode   string     `json:"paymentMode"`
	CarType       string     `json:"carType,omitempty"`
}

// StatusUpdate is the acknowledgement of a trip status transition.
type StatusUpdate struct {
	TripBookingID string    `json:"tripBookingId"`
	Status        string    `json:"status"`
	At            time.Time `json:"at"`
}
