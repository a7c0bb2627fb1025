package db

import (
	"context"
	"errors"
	"time"

	"github.com/ukydev/cabtrips/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoBookingCollection stores bookings keyed by trip booking id.
type MongoBookingCollection struct {
	Collection *mongo.Collection
}

// InsertBooking inserts a booking record into the collection.
func (c *MongoBookingCollection) InsertBooking(ctx context.Context, booking models.Booking) error {
	if c.Collection == nil {
		return ErrNilColl
	}
	now := time.Now().UTC()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = now
	_, err := c.Collection.InsertOne(ctx, booking)
	return mapErr(err)
}

// FindBooking finds a booking by its trip booking id.
func (c *MongoBookingCollection) FindBooking(ctx context.Context, tripBookingID string) (*models.Booking, error) {
	if c.Collection == nil {
		return nil, ErrNilColl
	}
	var b models.Booking
	if err := c.Collection.FindOne(ctx, bson.M{"trip_booking_id": tripBookingID}).Decode(&b); err != nil {
		return nil, mapErr(err)
	}
	return &b, nil
}

// BookingQuery builds the Mongo filter for f.
func BookingQuery(f BookingFilter) bson.M {
	q := bson.M{}
	if f.DriverID != "" {
		q["driver_id"] = f.DriverID
	}
	if f.CustomerID != "" {
		q["customer.customer_id"] = f.CustomerID
	}
	if f.From != nil || f.To != nil {
		window := bson.M{}
		if f.From != nil {
			window["$gte"] = *f.From
		}
		if f.To != nil {
			window["$lt"] = *f.To
		}
		q["from_date_time"] = window
	}
	if len(f.Statuses) > 0 {
		q["status"] = bson.M{"$in": f.Statuses}
	}
	return q
}

// FindBookings returns matching bookings, newest first.
func (c *MongoBookingCollection) FindBookings(ctx context.Context, f BookingFilter) ([]models.Booking, error) {
	if c.Collection == nil {
		return nil, ErrNilColl
	}
	opts := options.Find().SetSort(bson.D{{Key: "from_date_time", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}
	cursor, err := c.Collection.Find(ctx, BookingQuery(f), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []models.Booking{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TransitionStatus moves a booking to status to when its current status is
// one of from, setting the extra fields in set as well. A booking already in
// status to is returned unchanged. Any other current status is ErrConflict.
func (c *MongoBookingCollection) TransitionStatus(ctx context.Context, tripBookingID string, from []string, to string, set map[string]any) (*models.Booking, error) {
	if c.Collection == nil {
		return nil, ErrNilColl
	}
	fields := bson.M{"status": to, "updated_at": time.Now().UTC()}
	for k, v := range set {
		fields[k] = v
	}
	filter := bson.M{"trip_booking_id": tripBookingID, "status": bson.M{"$in": from}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var b models.Booking
	err := c.Collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": fields}, opts).Decode(&b)
	if err == nil {
		return &b, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	current, ferr := c.FindBooking(ctx, tripBookingID)
	if ferr != nil {
		return nil, ferr
	}
	if current.Status == to {
		return current, nil
	}
	return current, ErrConflict
}

// SetRating rates a completed booking.
func (c *MongoBookingCollection) SetRating(ctx context.Context, tripBookingID string, rating float64) (*models.Booking, error) {
	if c.Collection == nil {
		return nil, ErrNilColl
	}
	filter := bson.M{"trip_booking_id": tripBookingID, "status": models.BookingCompleted}
	update := bson.M{"$set": bson.M{"rating": rating, "updated_at": time.Now().UTC()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var b models.Booking
	err := c.Collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&b)
	if err == nil {
		return &b, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}
	if _, ferr := c.FindBooking(ctx, tripBookingID); ferr != nil {
		return nil, ferr
	}
	return nil, ErrConflict
}
