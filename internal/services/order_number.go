package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"cookiebarrel/internal/observability"
	"cookiebarrel/internal/repositories"
)

const (
	OrderNumberPrefix  = "CB"
	orderNumberDigits  = 6
	orderNumberCounter = "orderNumber"
)

type OrderNumberGeneratorDeps struct {
	Counters repositories.CounterRepository
	Orders   repositories.OrderRepository
	Logger   *zap.Logger
}

// OrderNumberGenerator hands out CB###### numbers from an atomic counter.
type OrderNumberGenerator struct {
	counters repositories.CounterRepository
	orders   repositories.OrderRepository
	logger   *zap.Logger
}

func NewOrderNumberGenerator(deps OrderNumberGeneratorDeps) (*OrderNumberGenerator, error) {
	if deps.Counters == nil {
		return nil, errors.New("order numbers: counter repository is required")
	}
	return &OrderNumberGenerator{
		counters: deps.Counters,
		orders:   deps.Orders,
		logger:   observability.OrNop(deps.Logger).Named("order_number"),
	}, nil
}

// Sync raises the counter past the highest number already stored, so orders
// numbered before the counter existed are never reissued.
func (g *OrderNumberGenerator) Sync(ctx context.Context) error {
	if g.orders == nil {
		return nil
	}
	highest, err := g.orders.HighestOrderNumber(ctx)
	if err != nil {
		return fmt.Errorf("order numbers: read highest: %w", err)
	}
	if highest == "" {
		return nil
	}
	seq, ok := ParseOrderNumber(highest)
	if !ok {
		return nil
	}
	if err := g.counters.EnsureAtLeast(ctx, orderNumberCounter, seq); err != nil {
		return fmt.Errorf("order numbers: seed counter: %w", err)
	}
	g.logger.Info("order number counter synced", zap.String("highest", highest))
	return nil
}

func (g *OrderNumberGenerator) Next(ctx context.Context) (string, error) {
	seq, err := g.counters.Next(ctx, orderNumberCounter)
	if err != nil {
		return "", err
	}
	return FormatOrderNumber(seq), nil
}

func FormatOrderNumber(seq int64) string {
	return fmt.Sprintf("%s%0*d", OrderNumberPrefix, orderNumberDigits, seq)
}

// ParseOrderNumber extracts the sequence from a CB-prefixed order number.
func ParseOrderNumber(number string) (int64, bool) {
	digits, ok := strings.CutPrefix(strings.ToUpper(strings.TrimSpace(number)), OrderNumberPrefix)
	if !ok || digits == "" {
		return 0, false
	}
	seq, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || seq < 0 {
		return 0, false
	}
	return seq, true
}
