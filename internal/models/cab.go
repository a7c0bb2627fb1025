package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Cab represents a driver's vehicle.
type Cab struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DriverID  string             `bson:"driver_id" json:"driver_id"`
	CarType   string             `bson:"car_type" json:"car_type"` // "hatchback", "sedan", "suv"
	Make      string             `bson:"make" json:"make"`
	Model     string             `bson:"model" json:"model"`
	Plate     string             `bson:"plate" json:"plate"`
	Year      int                `bson:"year" json:"year"`
	PerKmRate float64            `bson:"per_km_rate" json:"per_km_rate"`
	Images    []string           `bson:"images" json:"images"`
	Location  Location           `bson:"location" json:"location"`
	Status    string             `bson:"status" json:"status"` // "active" or "inactive"
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// CabUpdate is the driver-editable part of a cab.
type CabUpdate struct {
	CarType   string  `json:"car_type"`
	Make      string  `json:"make"`
	Model     string  `json:"model"`
	Plate     string  `json:"plate"`
	Year      int     `json:"year"`
	PerKmRate float64 `json:"per_km_rate"`
}

// Validate checks the driver-editable fields.
func (u CabUpdate) Validate() error {
	errs := ValidationErrors{}
	switch u.CarType {
	case "hatchback", "sedan", "suv":
	default:
		errs.Add("car_type", "car type must be hatchback, sedan or suv")
	}
	if strings.TrimSpace(u.Plate) == "" {
		errs.Add("plate", "plate is required")
	}
	if u.Year < 1990 || u.Year > 2100 {
		errs.Add("year", "year is out of range")
	}
	if u.PerKmRate <= 0 {
		errs.Add("per_km_rate", "per km rate must be positive")
	}
	return errs.Err()
}

// VerificationState is where a driver's document review stands.
type VerificationState string

const (
	VerificationPending  VerificationState = "pending"
	VerificationApproved VerificationState = "approved"
	VerificationRejected VerificationState = "rejected"
)

// Verification is an admin review of a driver's documents.
type Verification struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DriverID   string             `bson:"driver_id" json:"driver_id"`
	DriverName string             `bson:"driver_name" json:"driver_name"`
	License    string             `bson:"license" json:"license"`
	State      VerificationState  `bson:"state" json:"state"`
	Note       string             `bson:"note,omitempty" json:"note,omitempty"`
	ReviewedBy string             `bson:"reviewed_by,omitempty" json:"reviewed_by,omitempty"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
	ReviewedAt *time.Time         `bson:"reviewed_at,omitempty" json:"reviewed_at,omitempty"`
}
