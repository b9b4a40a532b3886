package memory

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"cookiebarrel/internal/models"
	"cookiebarrel/internal/repositories"
)

type OrderRepository struct {
	store *Store
}

func (r *OrderRepository) Insert(ctx context.Context, order models.Order) (models.Order, error) {
	if err := ctx.Err(); err != nil {
		return models.Order{}, repositories.Unavailable("orders.insert", err)
	}
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.orders {
		if existing.OrderNumber == order.OrderNumber {
			return models.Order{}, repositories.Duplicate("orders.insert", repositories.FieldOrderNumber, nil)
		}
		if order.IdempotencyKey != "" &&
			existing.CustomerID == order.CustomerID &&
			existing.IdempotencyKey == order.IdempotencyKey {
			return models.Order{}, repositories.Duplicate("orders.insert", repositories.FieldIdempotencyKey, nil)
		}
	}
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	if _, exists := s.orders[order.ID]; exists {
		return models.Order{}, repositories.Duplicate("orders.insert", "_id", nil)
	}
	s.orders[order.ID] = order.Clone()
	return order, nil
}

func (r *OrderRepository) FindByID(_ context.Context, id primitive.ObjectID) (models.Order, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return models.Order{}, repositories.NotFound("orders.findByID", "order not found")
	}
	return order.Clone(), nil
}

func (r *OrderRepository) FindByNumber(_ context.Context, orderNumber string) (models.Order, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, order := range s.orders {
		if order.OrderNumber == orderNumber {
			return order.Clone(), nil
		}
	}
	return models.Order{}, repositories.NotFound("orders.findByNumber", "order not found")
}

func (r *OrderRepository) FindByIdempotencyKey(_ context.Context, customerID, key string) (models.Order, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, order := range s.orders {
		if key != "" && order.CustomerID == customerID && order.IdempotencyKey == key {
			return order.Clone(), nil
		}
	}
	return models.Order{}, repositories.NotFound("orders.findByIdempotencyKey", "order not found")
}

func (r *OrderRepository) List(_ context.Context, filter repositories.OrderListFilter) (repositories.OrderPage, error) {
	s := r.store
	s.mu.Lock()
	matched := make([]models.Order, 0, len(s.orders))
	for _, order := range s.orders {
		if filter.CustomerID != "" && order.CustomerID != filter.CustomerID {
			continue
		}
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		if filter.OrderNumber != "" && order.OrderNumber != filter.OrderNumber {
			continue
		}
		matched = append(matched, order.Clone())
	}
	s.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.Hex() > matched[j].ID.Hex()
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	page := repositories.OrderPage{Total: int64(len(matched)), Items: []models.Order{}}
	start := (filter.Page - 1) * filter.Limit
	if filter.Page < 1 || filter.Limit < 1 || start >= int64(len(matched)) {
		return page, nil
	}
	end := start + filter.Limit
	if end > int64(len(matched)) {
		end = int64(len(matched))
	}
	page.Items = matched[start:end]
	return page, nil
}

func (r *OrderRepository) CountByStatus(_ context.Context) (map[models.OrderStatus]int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[models.OrderStatus]int64, len(models.OrderStatuses))
	for _, order := range s.orders {
		counts[order.Status]++
	}
	return counts, nil
}

func (r *OrderRepository) Update(_ context.Context, order models.Order, expected repositories.OrderRevision) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.orders[order.ID]
	if !ok {
		return repositories.NotFound("orders.update", "order not found")
	}
	if repositories.RevisionOf(current) != expected {
		return repositories.NewError("orders.update", repositories.ErrorConflict, "order status changed concurrently", nil)
	}
	current.Status = order.Status
	current.PaymentStatus = order.PaymentStatus
	current.Notes = order.Notes
	current.ActualDeliveryTime = order.ActualDeliveryTime
	if order.StockState != "" {
		current.StockState = order.StockState
	}
	current.UpdatedAt = order.UpdatedAt
	s.orders[order.ID] = current.Clone()
	return nil
}

func (r *OrderRepository) SetStockState(_ context.Context, id primitive.ObjectID, from, to models.StockState) (bool, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.orders[id]
	if !ok {
		return false, repositories.NotFound("orders.setStockState", "order not found")
	}
	if current.StockState != from {
		return false, nil
	}
	current.StockState = to
	s.orders[id] = current
	return true, nil
}

func (r *OrderRepository) Delete(_ context.Context, id primitive.ObjectID) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[id]; !ok {
		return repositories.NotFound("orders.delete", "order not found")
	}
	delete(s.orders, id)
	return nil
}

func (r *OrderRepository) HighestOrderNumber(_ context.Context) (string, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		best    string
		bestSeq int64 = -1
	)
	for _, order := range s.orders {
		digits, ok := strings.CutPrefix(order.OrderNumber, "CB")
		if !ok {
			continue
		}
		seq, err := strconv.ParseInt(digits, 10, 64)
		if err != nil {
			continue
		}
		if seq > bestSeq {
			best, bestSeq = order.OrderNumber, seq
		}
	}
	return best, nil
}
