package db

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// KVCollection is a string key-value store on one collection. It backs the
// view API's sessions.
type KVCollection struct {
	Collection *mongo.Collection
}

type kvDoc struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Get returns the value stored under key.
func (c *KVCollection) Get(ctx context.Context, key string) (string, bool, error) {
	if c.Collection == nil {
		return "", false, ErrNilColl
	}
	var doc kvDoc
	err := c.Collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return doc.Value, true, nil
}

// Set stores value under key, replacing any previous value.
func (c *KVCollection) Set(ctx context.Context, key, value string) error {
	if c.Collection == nil {
		return ErrNilColl
	}
	doc := kvDoc{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	_, err := c.Collection.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	return err
}

// Delete removes key. Missing keys are not an error.
func (c *KVCollection) Delete(ctx context.Context, key string) error {
	if c.Collection == nil {
		return ErrNilColl
	}
	_, err := c.Collection.DeleteOne(ctx, bson.M{"_id": key})
	return err
}

// List returns every pair whose key starts with prefix.
func (c *KVCollection) List(ctx context.Context, prefix string) (map[string]string, error) {
	if c.Collection == nil {
		return nil, ErrNilColl
	}
	filter := bson.M{"_id": bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)}}
	cursor, err := c.Collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []kvDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(docs))
	for _, d := range docs {
		out[d.Key] = d.Value
	}
	return out, nil
}
