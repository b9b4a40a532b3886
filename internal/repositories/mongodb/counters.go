package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// upsertRetries covers the duplicate key race between two first-time upserts
// of the same counter document.
const upsertRetries = 2

type CounterRepository struct {
	coll *mongo.Collection
}

type counterDocument struct {
	Name string `bson:"_id"`
	Seq  int64  `bson:"seq"`
}

func (r *CounterRepository) Next(ctx context.Context, name string) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var err error
	for attempt := 0; attempt < upsertRetries; attempt++ {
		var doc counterDocument
		err = r.coll.FindOneAndUpdate(ctx,
			bson.M{"_id": name},
			bson.M{"$inc": bson.M{"seq": int64(1)}},
			opts,
		).Decode(&doc)
		if err == nil {
			return doc.Seq, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			break
		}
	}
	return 0, mapError("counters.next", err)
}

func (r *CounterRepository) EnsureAtLeast(ctx context.Context, name string, floor int64) error {
	opts := options.Update().SetUpsert(true)

	var err error
	for attempt := 0; attempt < upsertRetries; attempt++ {
		_, err = r.coll.UpdateOne(ctx,
			bson.M{"_id": name},
			bson.M{"$max": bson.M{"seq": floor}},
			opts,
		)
		if err == nil || !mongo.IsDuplicateKeyError(err) {
			break
		}
	}
	return mapError("counters.ensureAtLeast", err)
}
