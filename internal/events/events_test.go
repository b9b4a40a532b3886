package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"cookiebarrel/internal/models"
)

func TestEncodeMessageKeysByOrderID(t *testing.T) {
	order := models.Order{
		ID:            primitive.NewObjectID(),
		OrderNumber:   "CB000042",
		CustomerID:    "customer-7",
		Status:        models.StatusConfirmed,
		PaymentStatus: models.PaymentPending,
		FinalAmount:   models.MustMoney("15.89"),
	}
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	event := NewOrderEvent(OrderStatusChanged, order, models.StatusPending, "staff-1", at)

	msg, err := encodeMessage(event)
	require.NoError(t, err)
	assert.Equal(t, order.ID.Hex(), string(msg.Key))
	assert.Equal(t, at, msg.Time)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "order.status.changed", string(msg.Headers[0].Value))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "CB000042", decoded["orderNumber"])
	assert.Equal(t, "pending", decoded["previousStatus"])
	assert.Equal(t, "confirmed", decoded["status"])
	assert.Equal(t, 15.89, decoded["finalAmount"])
	assert.NotEmpty(t, decoded["id"])
}

func TestNewOrderEventAssignsDistinctIDs(t *testing.T) {
	order := models.Order{ID: primitive.NewObjectID()}
	a := NewOrderEvent(OrderCreated, order, "", "", time.Now())
	b := NewOrderEvent(OrderCreated, order, "", "", time.Now())
	assert.NotEqual(t, a.ID, b.ID)
}
