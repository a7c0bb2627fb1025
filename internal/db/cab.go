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

// MongoCabCollection stores one cab per driver.
type MongoCabCollection struct {
	Collection *mongo.Collection
}

// InsertCab inserts a cab and returns it with its id.
func (c *MongoCabCollection) InsertCab(ctx context.Context, cab models.Cab) (*models.Cab, error) {
	if c.Collection == nil {
		return nil, ErrNilColl
	}
	now := time.Now().UTC()
	cab.ID = primitive.NewObjectID()
	cab.CreatedAt = now
	cab.UpdatedAt = now
	if cab.Images == nil {
		cab.Images = []string{}
	}
	if _, err := c.Collection.InsertOne(ctx, cab); err != nil {
		return nil, mapErr(err)
	}
	return &cab, nil
}

// FindCabByID finds a cab by its ID.
func (c *MongoCabCollection) FindCabByID(ctx context.Context, id string) (*models.Cab, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid cab ID: %w", ErrNotFound)
	}
	return c.findOne(ctx, bson.M{"_id": objectID})
}

// FindCabByDriver finds the cab a driver operates.
func (c *MongoCabCollection) FindCabByDriver(ctx context.Context, driverID string) (*models.Cab, error) {
	return c.findOne(ctx, bson.M{"driver_id": driverID})
}

func (c *MongoCabCollection) findOne(ctx context.Context, filter bson.M) (*models.Cab, error) {
	if c.Collection == nil {
		return nil, ErrNilColl
	}
	var cab models.Cab
	if err := c.Collection.FindOne(ctx, filter).Decode(&cab); err != nil {
		return nil, mapErr(err)
	}
	return &cab, nil
}

// UpdateCab replaces the driver-editable fields of a cab.
func (c *MongoCabCollection) UpdateCab(ctx context.Context, id string, u models.CabUpdate) (*models.Cab, error) {
	return c.modify(ctx, id, bson.M{"$set": bson.M{
		"car_type":    u.CarType,
		"make":        u.Make,
		"model":       u.Model,
		"plate":       u.Plate,
		"year":        u.Year,
		"per_km_rate": u.PerKmRate,
		"updated_at":  time.Now().UTC(),
	}})
}

// AddImage records an uploaded image name. Adding a known name is a no-op.
func (c *MongoCabCollection) AddImage(ctx context.Context, id, name string) (*models.Cab, error) {
	return c.modify(ctx, id, bson.M{
		"$addToSet": bson.M{"images": name},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	})
}

// RemoveImage forgets an image name.
func (c *MongoCabCollection) RemoveImage(ctx context.Context, id, name string) (*models.Cab, error) {
	return c.modify(ctx, id, bson.M{
		"$pull": bson.M{"images": name},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
}

func (c *MongoCabCollection) modify(ctx context.Context, id string, update bson.M) (*models.Cab, error) {
	if c.Collection == nil {
		return nil, ErrNilColl
	}
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid cab ID: %w", ErrNotFound)
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var cab models.Cab
	if err := c.Collection.FindOneAndUpdate(ctx, bson.M{"_id": objectID}, update, opts).Decode(&cab); err != nil {
		return nil, mapErr(err)
	}
	return &cab, nil
}
