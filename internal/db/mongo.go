package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	UsersCollection         = "users"
	BookingsCollection      = "bookings"
	CabsCollection          = "cabs"
	VerificationsCollection = "verifications"
	SessionsCollection      = "sessions"
)

// ConnectMongo connects to uri and pings the server.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo.Connect error: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo.Ping error: %w", err)
	}
	return client, nil
}

// Store bundles every collection of one database.
type Store struct {
	Users         *MongoUserCollection
	Bookings      *MongoBookingCollection
	Cabs          *MongoCabCollection
	Verifications *MongoVerificationCollection
	Sessions      *KVCollection
}

// NewStore wraps the collections of database.
func NewStore(database *mongo.Database) *Store {
	return &Store{
		Users:         &MongoUserCollection{Collection: database.Collection(UsersCollection)},
		Bookings:      &MongoBookingCollection{Collection: database.Collection(BookingsCollection)},
		Cabs:          &MongoCabCollection{Collection: database.Collection(CabsCollection)},
		Verifications: &MongoVerificationCollection{Collection: database.Collection(VerificationsCollection)},
		Sessions:      &KVCollection{Collection: database.Collection(SessionsCollection)},
	}
}

// EnsureIndexes creates the unique and lookup indexes the collections rely on.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		UsersCollection: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		BookingsCollection: {
			{Keys: bson.D{{Key: "trip_booking_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "driver_id", Value: 1}, {Key: "from_date_time", Value: -1}}},
			{Keys: bson.D{{Key: "customer.customer_id", Value: 1}, {Key: "from_date_time", Value: -1}}},
		},
		CabsCollection: {
			{Keys: bson.D{{Key: "driver_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		VerificationsCollection: {
			{Keys: bson.D{{Key: "state", Value: 1}, {Key: "created_at", Value: 1}}},
		},
	}
	for name, specs := range indexes {
		if _, err := database.Collection(name).Indexes().CreateMany(ctx, specs); err != nil {
			return fmt.Errorf("create %s indexes: %w", name, err)
		}
	}
	return nil
}

// mapErr turns driver errors into the package sentinels.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return err
	}
}
