package services

import (
	"github.com/shopspring/decimal"

	"cookiebarrel/internal/models"
)

// PricingConfig holds the store's delivery and tax rules.
type PricingConfig struct {
	FreeDeliveryThreshold decimal.Decimal
	DeliveryFee           decimal.Decimal
	TaxRate               decimal.Decimal
}

func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		FreeDeliveryThreshold: decimal.RequireFromString("50.00"),
		DeliveryFee:           decimal.RequireFromString("5.00"),
		TaxRate:               decimal.RequireFromString("0.10"),
	}
}

// PriceBreakdown is rounded to cents. FinalAmount is the exact sum of the
// three rounded components.
type PriceBreakdown struct {
	Subtotal    models.Money
	DeliveryFee models.Money
	Tax         models.Money
	FinalAmount models.Money
}

// Calculator prices order lines. It is pure and safe for concurrent use.
type Calculator struct {
	cfg PricingConfig
}

func NewCalculator(cfg PricingConfig) Calculator {
	return Calculator{cfg: cfg}
}

func (c Calculator) Price(lines []models.OrderLine) PriceBreakdown {
	raw := models.Money{}
	for _, line := range lines {
		raw = raw.Add(line.Total())
	}

	subtotal := raw.Rounded()
	fee := models.NewMoney(c.cfg.DeliveryFee).Rounded()
	if subtotal.GreaterThanOrEqual(models.NewMoney(c.cfg.FreeDeliveryThreshold)) {
		fee = models.Money{}
	}
	tax := models.NewMoney(raw.Decimal().Mul(c.cfg.TaxRate)).Rounded()

	return PriceBreakdown{
		Subtotal:    subtotal,
		DeliveryFee: fee,
		Tax:         tax,
		FinalAmount: subtotal.Add(fee).Add(tax),
	}
}
