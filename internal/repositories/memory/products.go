package memory

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"cookiebarrel/internal/models"
	"cookiebarrel/internal/repositories"
)

type ProductRepository struct {
	store *Store
}

func (r *ProductRepository) FindByID(_ context.Context, id primitive.ObjectID) (models.Product, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok || p.IsDeleted {
		return models.Product{}, repositories.NotFound("products.findByID", "product not found")
	}
	return p, nil
}

func (r *ProductRepository) DecrementStock(_ context.Context, id primitive.ObjectID, qty int) (bool, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok || !p.Orderable() || p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	s.products[id] = p
	return true, nil
}

func (r *ProductRepository) IncrementStock(_ context.Context, id primitive.ObjectID, qty int) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return repositories.NotFound("products.incrementStock", "product not found")
	}
	p.Stock += qty
	s.products[id] = p
	return nil
}
