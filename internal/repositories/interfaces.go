package repositories

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"cookiebarrel/internal/models"
)

// Registry hands out the repositories backed by a single store.
type Registry interface {
	Orders() OrderRepository
	Products() ProductRepository
	Counters() CounterRepository
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
	UnitOfWork
}

// UnitOfWork groups repository calls in a transaction when the store supports it.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderListFilter narrows an order listing. Empty fields match everything.
type OrderListFilter struct {
	CustomerID  string
	Status      models.OrderStatus
	OrderNumber string
	Page        int64
	Limit       int64
}

type OrderPage struct {
	Items []models.Order
	Total int64
}

// OrderRevision is the stored state an order update was computed from.
type OrderRevision struct {
	Status        models.OrderStatus
	PaymentStatus models.PaymentStatus
}

func RevisionOf(order models.Order) OrderRevision {
	return OrderRevision{Status: order.Status, PaymentStatus: order.PaymentStatus}
}

type OrderRepository interface {
	// Insert assigns the order id when it is zero.
	Insert(ctx context.Context, order models.Order) (models.Order, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (models.Order, error)
	FindByNumber(ctx context.Context, orderNumber string) (models.Order, error)
	FindByIdempotencyKey(ctx context.Context, customerID, key string) (models.Order, error)
	List(ctx context.Context, filter OrderListFilter) (OrderPage, error)
	CountByStatus(ctx context.Context) (map[models.OrderStatus]int64, error)
	// Update replaces the mutable fields of an order only while its stored
	// status and payment status still equal expected. A lost race returns a
	// conflict error.
	Update(ctx context.Context, order models.Order, expected OrderRevision) error
	// SetStockState moves the stock state of an order from one value to
	// another. It reports false when the stored state is not from.
	SetStockState(ctx context.Context, id primitive.ObjectID, from, to models.StockState) (bool, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	// HighestOrderNumber returns "" when no order exists yet.
	HighestOrderNumber(ctx context.Context) (string, error)
}

type ProductRepository interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (models.Product, error)
	// DecrementStock atomically subtracts qty when the product is orderable and
	// holds at least qty units. It reports false when that precondition fails.
	DecrementStock(ctx context.Context, id primitive.ObjectID, qty int) (bool, error)
	IncrementStock(ctx context.Context, id primitive.ObjectID, qty int) error
}

type CounterRepository interface {
	// Next increments the named counter and returns the new value.
	Next(ctx context.Context, name string) (int64, error)
	// EnsureAtLeast raises the counter to floor if it is lower.
	EnsureAtLeast(ctx context.Context, name string, floor int64) error
}
