package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	OrdersCollection   = "orders"
	ProductsCollection = "products"
	CountersCollection = "counters"

	OrderNumberIndex    = "orderNumber_unique"
	IdempotencyKeyIndex = "customer_idempotencyKey_unique"
)

func EnsureOrderIndexes(db *mongo.Database, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection(OrdersCollection).Indexes()

	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "customerId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("customer_createdAt"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}},
			Options: options.Index().SetName("status_index"),
		},
		{
			Keys:    bson.D{{Key: "orderNumber", Value: 1}},
			Options: options.Index().SetName(OrderNumberIndex).SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "customerId", Value: 1}, {Key: "idempotencyKey", Value: 1}},
			Options: options.Index().
				SetName(IdempotencyKeyIndex).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{
					"idempotencyKey": bson.M{"$exists": true},
				}),
		},
	}

	logger.Info("ensuring order indexes", zap.Int("count", len(models)))
	names, err := indexes.CreateMany(ctx, models)
	if err != nil {
		logger.Error("order index creation failed", zap.Error(err))
		return err
	}
	logger.Info("order indexes ready", zap.Strings("indexes", names))
	return nil
}
