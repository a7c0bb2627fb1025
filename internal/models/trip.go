package models

import (
	"time"
)

// Status is the lifecycle state of a trip.
type Status string

const (
	StatusRequested  Status = "requested"
	StatusConfirmed  Status = "confirmed"
	StatusAccepted   Status = "accepted"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusUnknown    Status = "unknown"
)

// Statuses lists the known statuses in lifecycle order.
var Statuses = []Status{
	StatusRequested,
	StatusConfirmed,
	StatusAccepted,
	StatusInProgress,
	StatusCompleted,
	StatusCancelled,
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// PaymentMethod is how the passenger paid for a trip.
type PaymentMethod string

const (
	PaymentCash    PaymentMethod = "cash"
	PaymentCard    PaymentMethod = "card"
	PaymentUPI     PaymentMethod = "upi"
	PaymentWallet  PaymentMethod = "wallet"
	PaymentUnknown PaymentMethod = "unknown"
)

// PaymentMethods lists the known payment methods.
var PaymentMethods = []PaymentMethod{PaymentCash, PaymentCard, PaymentUPI, PaymentWallet}

// Address is a pickup or drop point.
type Address struct {
	Line  string   `json:"line"`
	Lat   *float64 `json:"lat,omitempty"`
	Lng   *float64 `json:"lng,omitempty"`
	City  string   `json:"city,omitempty"`
	State string   `json:"state,omitempty"`
}

// Trip is the canonical in-memory trip record every view works on.
type Trip struct {
	ID            string        `json:"id"`
	Passenger     string        `json:"passenger"`
	DriverID      string        `json:"driver_id,omitempty"`
	CustomerID    string        `json:"customer_id,omitempty"`
	CabID         string        `json:"cab_id,omitempty"`
	Pickup        Address       `json:"pickup"`
	Drop          Address       `json:"drop"`
	StartTime     time.Time     `json:"start_time"`
	EndTime       *time.Time    `json:"end_time,omitempty"` // nil while the trip is active
	DistanceKm    float64       `json:"distance_km"`
	DurationMin   float64       `json:"duration_min"`
	Fare          float64       `json:"fare"`
	Tip           float64       `json:"tip"`
	Status        Status        `json:"status"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	Rating        float64       `json:"rating"` // 0 when unrated, else 1..5
}

// Earnings is fare plus tip.
func (t Trip) Earnings() float64 {
	return t.Fare + t.Tip
}

// IsRated reports whether the passenger left a rating.
func (t Trip) IsRated() bool {
	return t.Rating > 0
}
