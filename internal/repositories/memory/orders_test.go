package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"cookiebarrel/internal/models"
	"cookiebarrel/internal/repositories"
)

func TestOrderUpdateComparesStatusAndPaymentStatus(t *testing.T) {
	ctx := context.Background()
	orders := NewStore().Orders()
	order, err := orders.Insert(ctx, models.Order{
		OrderNumber:   "CB000001",
		CustomerID:    "customer-1",
		Status:        models.StatusPending,
		PaymentStatus: models.PaymentPending,
		StockState:    models.StockReserved,
	})
	require.NoError(t, err)
	read := repositories.RevisionOf(order)

	paid := order.Clone()
	paid.PaymentStatus = models.PaymentPaid
	require.NoError(t, orders.Update(ctx, paid, read))

	failed := order.Clone()
	failed.PaymentStatus = models.PaymentFailed
	err = orders.Update(ctx, failed, read)
	assert.True(t, repositories.IsConflict(err))

	stored, err := orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, stored.PaymentStatus)
	assert.Equal(t, models.StockReserved, stored.StockState)

	err = orders.Update(ctx, models.Order{ID: primitive.NewObjectID()}, read)
	assert.True(t, repositories.IsNotFound(err))
}

func TestOrderSetStockStateFlipsOnce(t *testing.T) {
	ctx := context.Background()
	orders := NewStore().Orders()
	order, err := orders.Insert(ctx, models.Order{OrderNumber: "CB000002", StockState: models.StockReserved})
	require.NoError(t, err)

	claimed, err := orders.SetStockState(ctx, order.ID, models.StockReserved, models.StockReleased)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = orders.SetStockState(ctx, order.ID, models.StockReserved, models.StockReleased)
	require.NoError(t, err)
	assert.False(t, claimed)

	_, err = orders.SetStockState(ctx, primitive.NewObjectID(), models.StockReserved, models.StockReleased)
	assert.True(t, repositories.IsNotFound(err))
}
