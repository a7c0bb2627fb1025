package db

import (
	"context"
	"fmt"
	"time"

	"github.com/ukydev/cabtrips/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoVerificationCollection stores driver document reviews.
type MongoVerificationCollection struct {
	Collection *mongo.Collection
}

// InsertVerification queues a driver for review.
func (c *MongoVerificationCollection) InsertVerification(ctx context.Context, v models.Verification) (*models.Verification, error) {
	if c.Collection == nil {
		return nil, ErrNilColl
	}
	v.ID = primitive.NewObjectID()
	v.State = models.VerificationPending
	v.CreatedAt = time.Now().UTC()
	if _, err := c.Collection.InsertOne(ctx, v); err != nil {
		return nil, mapErr(err)
	}
	return &v, nil
}

// FindPending returns the reviews awaiting a decision, oldest first.
func (c *MongoVerificationCollection) FindPending(ctx context.Context) ([]models.Verification, error) {
	if c.Collection == nil {
		return nil, ErrNilColl
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := c.Collection.Find(ctx, bson.M{"state": models.VerificationPending}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []models.Verification{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Review decides a pending verification. Deciding one that is no longer
// pending is ErrConflict.
func (c *MongoVerificationCollection) Review(ctx context.Context, id string, state models.VerificationState, note, reviewer string) (*models.Verification, error) {
	if c.Collection == nil {
		return nil, ErrNilColl
	}
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid verification ID: %w", ErrNotFound)
	}
	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{
		"state":       state,
		"note":        note,
		"reviewed_by": reviewer,
		"reviewed_at": now,
	}}
	filter := bson.M{"_id": objectID, "state": models.VerificationPending}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var v models.Verification
	err = c.Collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&v)
	if err == nil {
		return &v, nil
	}
	if mapErr(err) != ErrNotFound {
		return nil, err
	}
	if cerr := c.Collection.FindOne(ctx, bson.M{"_id": objectID}).Err(); cerr != nil {
		return nil, mapErr(cerr)
	}
	return nil, ErrConflict
}
