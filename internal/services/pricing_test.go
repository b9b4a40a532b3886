package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"cookiebarrel/internal/models"
)

func line(price string, qty int) models.OrderLine {
	return models.OrderLine{UnitPrice: models.MustMoney(price), Quantity: qty}
}

func TestCalculatorPrice(t *testing.T) {
	calc := NewCalculator(DefaultPricingConfig())

	cases := []struct {
		name                      string
		lines                     []models.OrderLine
		subtotal, fee, tax, final string
	}{
		{"single line under threshold", []models.OrderLine{line("4.95", 2)}, "9.90", "5.00", "0.99", "15.89"},
		{"exactly at threshold is free", []models.OrderLine{line("25.00", 2)}, "50.00", "0.00", "5.00", "55.00"},
		{"just under threshold pays fee", []models.OrderLine{line("49.99", 1)}, "49.99", "5.00", "5.00", "59.99"},
		{"mixed lines", []models.OrderLine{line("3.33", 3), line("0.10", 1)}, "10.09", "5.00", "1.01", "16.10"},
		{"tax half cent rounds up", []models.OrderLine{line("0.05", 1)}, "0.05", "5.00", "0.01", "5.06"},
		{"no binary drift", []models.OrderLine{line("0.10", 1), line("0.20", 1)}, "0.30", "5.00", "0.03", "5.33"},
		{"empty", nil, "0.00", "5.00", "0.00", "5.00"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := calc.Price(tc.lines)
			assert.Equal(t, tc.subtotal, got.Subtotal.String())
			assert.Equal(t, tc.fee, got.DeliveryFee.String())
			assert.Equal(t, tc.tax, got.Tax.String())
			assert.Equal(t, tc.final, got.FinalAmount.String())
			assert.True(t, got.FinalAmount.Equal(got.Subtotal.Add(got.DeliveryFee).Add(got.Tax)))
		})
	}
}

func TestCalculatorUsesConfiguredRules(t *testing.T) {
	calc := NewCalculator(PricingConfig{
		FreeDeliveryThreshold: decimal.RequireFromString("20"),
		DeliveryFee:           decimal.RequireFromString("2.50"),
		TaxRate:               decimal.RequireFromString("0.13"),
	})

	under := calc.Price([]models.OrderLine{line("9.99", 2)})
	assert.Equal(t, "19.98", under.Subtotal.String())
	assert.Equal(t, "2.50", under.DeliveryFee.String())
	assert.Equal(t, "2.60", under.Tax.String())
	assert.Equal(t, "25.08", under.FinalAmount.String())

	over := calc.Price([]models.OrderLine{line("10.00", 2)})
	assert.Equal(t, "0.00", over.DeliveryFee.String())
}

func TestCalculatorIsDeterministic(t *testing.T) {
	calc := NewCalculator(DefaultPricingConfig())
	lines := []models.OrderLine{line("1.17", 7), line("12.49", 3)}
	first := calc.Price(lines)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first.FinalAmount.String(), calc.Price(lines).FinalAmount.String())
	}
}
