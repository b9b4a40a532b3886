// Package events publishes order lifecycle notifications for downstream
// consumers such as the messaging dispatcher.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"cookiebarrel/internal/models"
)

type EventType string

const (
	OrderCreated       EventType = "order.created"
	OrderStatusChanged EventType = "order.status.changed"
	OrderUpdated       EventType = "order.updated"
	OrderDeleted       EventType = "order.deleted"
)

type OrderEvent struct {
	ID             string               `json:"id"`
	Type           EventType            `json:"type"`
	OrderID        string               `json:"orderId"`
	OrderNumber    string               `json:"orderNumber"`
	CustomerID     string               `json:"customerId"`
	PreviousStatus models.OrderStatus   `json:"previousStatus,omitempty"`
	Status         models.OrderStatus   `json:"status"`
	PaymentStatus  models.PaymentStatus `json:"paymentStatus"`
	ActorID        string               `json:"actorId,omitempty"`
	FinalAmount    models.Money         `json:"finalAmount"`
	OccurredAt     time.Time            `json:"occurredAt"`
}

func NewOrderEvent(typ EventType, order models.Order, previous models.OrderStatus, actorID string, at time.Time) OrderEvent {
	return OrderEvent{
		ID:             uuid.NewString(),
		Type:           typ,
		OrderID:        order.ID.Hex(),
		OrderNumber:    order.OrderNumber,
		CustomerID:     order.CustomerID,
		PreviousStatus: previous,
		Status:         order.Status,
		PaymentStatus:  order.PaymentStatus,
		ActorID:        actorID,
		FinalAmount:    order.FinalAmount,
		OccurredAt:     at.UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, event OrderEvent) error
	Close() error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, OrderEvent) error { return nil }
func (NoopPublisher) Close() error                              { return nil }

// MemoryPublisher keeps published events in memory.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []OrderEvent
	Err    error
}

func (p *MemoryPublisher) Publish(_ context.Context, event OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *MemoryPublisher) Close() error { return nil }

func (p *MemoryPublisher) Events() []OrderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]OrderEvent(nil), p.events...)
}
