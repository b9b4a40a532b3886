package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"cookiebarrel/internal/models"
	"cookiebarrel/internal/repositories"
)

type ProductRepository struct {
	coll *mongo.Collection
}

func (r *ProductRepository) FindByID(ctx context.Context, id primitive.ObjectID) (models.Product, error) {
	var raw bson.M
	err := r.coll.FindOne(ctx, bson.M{
		"_id":       id,
		"isDeleted": bson.M{"$ne": true},
	}).Decode(&raw)
	if err != nil {
		return models.Product{}, mapError("products.findByID", err)
	}
	product, err := normalizeProductDocument(raw)
	if err != nil {
		return models.Product{}, repositories.NewError("products.findByID", repositories.ErrorUnavailable, "undecodable product", err)
	}
	return product, nil
}

func (r *ProductRepository) DecrementStock(ctx context.Context, id primitive.ObjectID, qty int) (bool, error) {
	filter := bson.M{
		"_id":         id,
		"isDeleted":   bson.M{"$ne": true},
		"isAvailable": bson.M{"$ne": false},
		"available":   bson.M{"$ne": false},
		"stock":       bson.M{"$gte": qty},
	}
	update := bson.M{"$inc": bson.M{"stock": -qty}}

	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, mapError("products.decrementStock", err)
	}
	return res.MatchedCount > 0, nil
}

func (r *ProductRepository) IncrementStock(ctx context.Context, id primitive.ObjectID, qty int) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"stock": qty}})
	if err != nil {
		return mapError("products.incrementStock", err)
	}
	if res.MatchedCount == 0 {
		return repositories.NotFound("products.incrementStock", "product not found")
	}
	return nil
}

// normalizeProductDocument folds the availability and stock shapes that
// older catalog writers used into models.Product.
func normalizeProductDocument(raw bson.M) (models.Product, error) {
	raw["isAvailable"] = availabilityOf(raw)

	if val, ok := raw["stock"]; ok {
		switch typed := val.(type) {
		case int32:
			raw["stock"] = int(typed)
		case int64:
			raw["stock"] = int(typed)
		case float64:
			raw["stock"] = int(typed)
		case int:
			raw["stock"] = typed
		default:
			raw["stock"] = 0
		}
	} else {
		raw["stock"] = 0
	}

	if _, ok := raw["isDeleted"].(bool); !ok {
		raw["isDeleted"] = false
	}

	data, err := bson.Marshal(raw)
	if err != nil {
		return models.Product{}, err
	}

	var p models.Product
	if err := bson.Unmarshal(data, &p); err != nil {
		return models.Product{}, err
	}
	if p.Stock < 0 {
		p.Stock = 0
	}
	return p, nil
}

func availabilityOf(raw bson.M) bool {
	for _, key := range []string{"isAvailable", "available"} {
		switch typed := raw[key].(type) {
		case bool:
			return typed
		case string:
			return typed != "false"
		}
	}
	return true
}
