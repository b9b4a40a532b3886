package mongodb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestNormalizeProductDocumentHandlesLegacyShapes(t *testing.T) {
	price, err := primitive.ParseDecimal128("4.95")
	require.NoError(t, err)

	cases := []struct {
		name      string
		raw       bson.M
		available bool
		stock     int
		price     string
	}{
		{
			name:      "current shape",
			raw:       bson.M{"name": "Choco Chip", "price": price, "isAvailable": true, "stock": int32(12)},
			available: true, stock: 12, price: "4.95",
		},
		{
			name:      "legacy available flag and float stock",
			raw:       bson.M{"name": "Oat", "price": 3.5, "available": false, "stock": 7.0},
			available: false, stock: 7, price: "3.50",
		},
		{
			name:      "missing flags default to available",
			raw:       bson.M{"name": "Plain", "price": int32(2), "stock": int64(4)},
			available: true, stock: 4, price: "2.00",
		},
		{
			name:      "string flag and missing stock",
			raw:       bson.M{"name": "Seasonal", "price": "6.25", "isAvailable": "false"},
			available: false, stock: 0, price: "6.25",
		},
		{
			name:      "negative stock is clamped",
			raw:       bson.M{"name": "Broken", "price": 1.0, "stock": int32(-2)},
			available: true, stock: 0, price: "1.00",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := normalizeProductDocument(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.available, p.IsAvailable)
			assert.Equal(t, tc.stock, p.Stock)
			assert.Equal(t, tc.price, p.Price.String())
			assert.False(t, p.IsDeleted)
		})
	}
}

func TestNormalizeProductDocumentIncludesSaleFields(t *testing.T) {
	p, err := normalizeProductDocument(bson.M{
		"name":        "Test",
		"price":       100.0,
		"saleEnabled": true,
		"salePrice":   80.0,
		"stock":       int32(5),
	})
	require.NoError(t, err)
	assert.True(t, p.SaleEnabled)
	assert.True(t, p.OnSale())
	assert.Equal(t, "80.00", p.EffectivePrice().String())
}
