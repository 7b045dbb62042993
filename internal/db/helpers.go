package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nckmackenzie/atarah-api/internal/models"
)

// InsertOne inserts a document, generating its SixID first and regenerating
// it on duplicate-key retries.
func InsertOne(ctx context.Context, collection *mongo.Collection, doc models.IBase) (models.IBase, error) {
	operation := func() error {
		doc.GenID()
		_, err := collection.InsertOne(ctx, doc)
		return err
	}
	if err := Try(operation); err != nil {
		return nil, err
	}
	return doc, nil
}

const countersCollection = "counters"

// NextSequence atomically increments and returns the named document counter
// (invoice numbers, expense numbers, journal numbers). The first call for a
// name returns 1.
func NextSequence(ctx context.Context, database *mongo.Database, name string) (int, error) {
	var counter struct {
		Value int `bson:"value"`
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)
	err := database.Collection(countersCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"value": 1}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to advance counter %s: %w", name, err)
	}
	return counter.Value, nil
}
