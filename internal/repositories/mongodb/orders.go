package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cookiebarrel/internal/models"
	"cookiebarrel/internal/repositories"
)

type OrderRepository struct {
	coll *mongo.Collection
}

func (r *OrderRepository) Insert(ctx context.Context, order models.Order) (models.Order, error) {
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	if _, err := r.coll.InsertOne(ctx, order); err != nil {
		return models.Order{}, mapError("orders.insert", err)
	}
	return order, nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id primitive.ObjectID) (models.Order, error) {
	return r.findOne(ctx, "orders.findByID", bson.M{"_id": id})
}

func (r *OrderRepository) FindByNumber(ctx context.Context, orderNumber string) (models.Order, error) {
	return r.findOne(ctx, "orders.findByNumber", bson.M{"orderNumber": orderNumber})
}

func (r *OrderRepository) FindByIdempotencyKey(ctx context.Context, customerID, key string) (models.Order, error) {
	return r.findOne(ctx, "orders.findByIdempotencyKey", bson.M{
		"customerId":     customerID,
		"idempotencyKey": key,
	})
}

func (r *OrderRepository) findOne(ctx context.Context, op string, filter bson.M) (models.Order, error) {
	var order models.Order
	if err := r.coll.FindOne(ctx, filter).Decode(&order); err != nil {
		return models.Order{}, mapError(op, err)
	}
	return order, nil
}

func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (repositories.OrderPage, error) {
	query := bson.M{}
	if filter.CustomerID != "" {
		query["customerId"] = filter.CustomerID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.OrderNumber != "" {
		query["orderNumber"] = filter.OrderNumber
	}

	total, err := r.coll.CountDocuments(ctx, query)
	if err != nil {
		return repositories.OrderPage{}, mapError("orders.count", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	findOpts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip((page - 1) * filter.Limit).
		SetLimit(filter.Limit)

	cursor, err := r.coll.Find(ctx, query, findOpts)
	if err != nil {
		return repositories.OrderPage{}, mapError("orders.list", err)
	}
	defer cursor.Close(ctx)

	orders := make([]models.Order, 0)
	if err := cursor.All(ctx, &orders); err != nil {
		return repositories.OrderPage{}, mapError("orders.list", err)
	}
	return repositories.OrderPage{Items: orders, Total: total}, nil
}

func (r *OrderRepository) CountByStatus(ctx context.Context) (map[models.OrderStatus]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, mapError("orders.countByStatus", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status models.OrderStatus `bson:"_id"`
		Count  int64              `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, mapError("orders.countByStatus", err)
	}

	counts := make(map[models.OrderStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *OrderRepository) Update(ctx context.Context, order models.Order, expected repositories.OrderRevision) error {
	set := bson.M{
		"status":        order.Status,
		"paymentStatus": order.PaymentStatus,
		"notes":         order.Notes,
		"updatedAt":     order.UpdatedAt,
	}
	if order.ActualDeliveryTime != nil {
		set["actualDeliveryTime"] = *order.ActualDeliveryTime
	}
	if order.StockState != "" {
		set["stockState"] = order.StockState
	}

	filter := bson.M{"_id": order.ID, "status": expected.Status, "paymentStatus": expected.PaymentStatus}
	if expected.PaymentStatus == "" {
		filter["paymentStatus"] = bson.M{"$in": bson.A{"", nil}}
	}
	res, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return mapError("orders.update", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": order.ID})
	if err != nil {
		return mapError("orders.update", err)
	}
	if n == 0 {
		return repositories.NotFound("orders.update", "order not found")
	}
	return repositories.NewError("orders.update", repositories.ErrorConflict, "order status changed concurrently", nil)
}

// SetStockState treats a missing stockState field as the empty state.
func (r *OrderRepository) SetStockState(ctx context.Context, id primitive.ObjectID, from, to models.StockState) (bool, error) {
	filter := bson.M{"_id": id, "stockState": from}
	if from == "" {
		filter["stockState"] = bson.M{"$in": bson.A{"", nil}}
	}
	res, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"stockState": to}})
	if err != nil {
		return false, mapError("orders.setStockState", err)
	}
	if res.MatchedCount > 0 {
		return true, nil
	}

	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return false, mapError("orders.setStockState", err)
	}
	if n == 0 {
		return false, repositories.NotFound("orders.setStockState", "order not found")
	}
	return false, nil
}

func (r *OrderRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return mapError("orders.delete", err)
	}
	if res.DeletedCount == 0 {
		return repositories.NotFound("orders.delete", "order not found")
	}
	return nil
}

// HighestOrderNumber relies on the fixed width of CB###### numbers sorting
// lexicographically.
func (r *OrderRepository) HighestOrderNumber(ctx context.Context) (string, error) {
	opts := options.FindOne().
		SetSort(bson.D{{Key: "orderNumber", Value: -1}}).
		SetProjection(bson.M{"orderNumber": 1})

	var doc struct {
		OrderNumber string `bson:"orderNumber"`
	}
	err := r.coll.FindOne(ctx, bson.M{"orderNumber": bson.M{"$regex": `^CB[0-9]{6}$`}}, opts).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return "", nil
	}
	if err != nil {
		return "", mapError("orders.highestNumber", err)
	}
	return doc.OrderNumber, nil
}
