// Package memory keeps orders, products and counters in process memory. It
// backs STORE_DRIVER=memory and the service tests.
package memory

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"cookiebarrel/internal/models"
	"cookiebarrel/internal/repositories"
)

// Store is a mutex guarded repositories.Registry.
type Store struct {
	mu       sync.Mutex
	orders   map[primitive.ObjectID]models.Order
	products map[primitive.ObjectID]models.Product
	counters map[string]int64

	ordersRepo   *OrderRepository
	productsRepo *ProductRepository
	countersRepo *CounterRepository
}

var _ repositories.Registry = (*Store)(nil)

func NewStore() *Store {
	s := &Store{
		orders:   make(map[primitive.ObjectID]models.Order),
		products: make(map[primitive.ObjectID]models.Product),
		counters: make(map[string]int64),
	}
	s.ordersRepo = &OrderRepository{store: s}
	s.productsRepo = &ProductRepository{store: s}
	s.countersRepo = &CounterRepository{store: s}
	return s
}

func (s *Store) Orders() repositories.OrderRepository     { return s.ordersRepo }
func (s *Store) Products() repositories.ProductRepository { return s.productsRepo }
func (s *Store) Counters() repositories.CounterRepository { return s.countersRepo }

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }
func (s *Store) Close(context.Context) error    { return nil }

// RunInTx runs fn directly. Callers compensate their own writes on failure.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// PutProduct inserts or replaces a catalog entry.
func (s *Store) PutProduct(p models.Product) models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	s.products[p.ID] = p
	return p
}

// Stock returns the current stock of a product, or -1 when unknown.
func (s *Store) Stock(id primitive.ObjectID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return -1
	}
	return p.Stock
}

// OrderCount returns the number of stored orders.
func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}
