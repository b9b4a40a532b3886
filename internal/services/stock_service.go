package services

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"cookiebarrel/internal/models"
	"cookiebarrel/internal/observability"
	"cookiebarrel/internal/repositories"
)

// StockLine is a quantity of one product.
type StockLine struct {
	ProductID primitive.ObjectID
	Quantity  int
}

// Reservation records the per-product quantities taken from stock.
type Reservation struct {
	Lines []StockLine
}

func (r Reservation) Empty() bool { return len(r.Lines) == 0 }

type StockServiceDeps struct {
	Products repositories.ProductRepository
	Logger   *zap.Logger
	Metrics  *observability.Metrics
	Tracer   trace.Tracer
}

// StockService validates and moves product stock for the order lifecycle.
type StockService struct {
	products repositories.ProductRepository
	logger   *zap.Logger
	metrics  *observability.Metrics
	tracer   trace.Tracer
}

func NewStockService(deps StockServiceDeps) (*StockService, error) {
	if deps.Products == nil {
		return nil, errors.New("stock service: product repository is required")
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = observability.Tracer()
	}
	return &StockService{
		products: deps.Products,
		logger:   observability.OrNop(deps.Logger).Named("stock"),
		metrics:  deps.Metrics,
		tracer:   tracer,
	}, nil
}

// AggregateLines sums quantities per product, keeping first-seen order.
func AggregateLines(lines []StockLine) []StockLine {
	index := make(map[primitive.ObjectID]int, len(lines))
	out := make([]StockLine, 0, len(lines))
	for _, line := range lines {
		if i, ok := index[line.ProductID]; ok {
			out[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(out)
		out = append(out, line)
	}
	return out
}

// Check reads every product and verifies availability and stock for the whole
// request before anything is written. It returns the product snapshots.
func (s *StockService) Check(ctx context.Context, lines []StockLine) (map[primitive.ObjectID]models.Product, error) {
	ctx, span := s.tracer.Start(ctx, "stock.check")
	defer span.End()

	aggregated := AggregateLines(lines)
	span.SetAttributes(attribute.Int("stock.products", len(aggregated)))

	snapshots := make(map[primitive.ObjectID]models.Product, len(aggregated))
	for _, line := range aggregated {
		product, err := s.products.FindByID(ctx, line.ProductID)
		if err != nil {
			if repositories.IsNotFound(err) {
				span.SetStatus(codes.Error, "product unavailable")
				return nil, productUnavailable(line.ProductID, "product not found")
			}
			span.RecordError(err)
			return nil, storageError(err)
		}
		if !product.Orderable() {
			span.SetStatus(codes.Error, "product unavailable")
			return nil, productUnavailable(line.ProductID, fmt.Sprintf("%s is not available", product.Name))
		}
		if product.Stock < line.Quantity {
			span.SetStatus(codes.Error, "insufficient stock")
			return nil, insufficientStock(line.ProductID, product.Name, product.Stock, line.Quantity)
		}
		snapshots[line.ProductID] = product
	}

	span.SetStatus(codes.Ok, "stock available")
	return snapshots, nil
}

// Commit decrements stock for every product with a conditional update. When a
// decrement loses a race the products already taken are put back and the call
// fails with an insufficient stock error.
func (s *StockService) Commit(ctx context.Context, lines []StockLine) (Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "stock.commit")
	defer span.End()

	aggregated := AggregateLines(lines)
	taken := make([]StockLine, 0, len(aggregated))

	for _, line := range aggregated {
		ok, err := s.products.DecrementStock(ctx, line.ProductID, line.Quantity)
		if err != nil {
			span.RecordError(err)
			s.compensate(ctx, taken)
			return Reservation{}, storageError(err)
		}
		if !ok {
			s.metrics.StockConflict()
			s.compensate(ctx, taken)

			available := 0
			name := line.ProductID.Hex()
			if current, err := s.products.FindByID(ctx, line.ProductID); err == nil {
				available = current.Stock
				name = current.Name
				if !current.Orderable() {
					span.SetStatus(codes.Error, "product unavailable")
					return Reservation{}, productUnavailable(line.ProductID, fmt.Sprintf("%s is not available", name))
				}
			}
			s.logger.Info("stock decrement lost race",
				zap.String("productId", line.ProductID.Hex()),
				zap.Int("requested", line.Quantity),
				zap.Int("available", available),
			)
			span.SetStatus(codes.Error, "insufficient stock")
			return Reservation{}, insufficientStock(line.ProductID, name, available, line.Quantity)
		}
		taken = append(taken, line)
	}

	span.SetStatus(codes.Ok, "stock reserved")
	return Reservation{Lines: taken}, nil
}

// Release returns reserved quantities to stock. Products that no longer exist
// are skipped with a warning. A storage failure takes back the quantities
// already returned, so the reservation is released in full or not at all.
func (s *StockService) Release(ctx context.Context, reservation Reservation) error {
	ctx, span := s.tracer.Start(ctx, "stock.release")
	defer span.End()

	returned := make([]StockLine, 0, len(reservation.Lines))
	for _, line := range reservation.Lines {
		err := s.products.IncrementStock(ctx, line.ProductID, line.Quantity)
		switch {
		case err == nil:
			returned = append(returned, line)
		case repositories.IsNotFound(err):
			s.logger.Warn("stock release skipped for missing product",
				zap.String("productId", line.ProductID.Hex()),
				zap.Int("quantity", line.Quantity),
			)
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, "stock release failed")
			s.retake(ctx, returned)
			return storageError(err)
		}
	}
	return nil
}

// Compensate returns quantities taken for an order that was never written.
// It keeps going past failures; each one is logged with the product and
// quantity left outside stock.
func (s *StockService) Compensate(ctx context.Context, reservation Reservation) {
	s.compensate(ctx, reservation.Lines)
}

func (s *StockService) compensate(ctx context.Context, taken []StockLine) {
	for _, line := range taken {
		err := s.products.IncrementStock(ctx, line.ProductID, line.Quantity)
		if err != nil && !repositories.IsNotFound(err) {
			s.logger.Error("stock compensation failed",
				zap.String("productId", line.ProductID.Hex()),
				zap.Int("quantity", line.Quantity),
				zap.Error(err),
			)
		}
	}
}

func (s *StockService) retake(ctx context.Context, returned []StockLine) {
	for _, line := range returned {
		ok, err := s.products.DecrementStock(ctx, line.ProductID, line.Quantity)
		if err != nil || !ok {
			s.logger.Error("partial stock release could not be undone",
				zap.String("productId", line.ProductID.Hex()),
				zap.Int("quantity", line.Quantity),
				zap.Error(err),
			)
		}
	}
}

func productUnavailable(id primitive.ObjectID, message string) *Error {
	return &Error{Kind: KindProductUnavailable, Message: message, ProductID: id.Hex()}
}

func insufficientStock(id primitive.ObjectID, name string, available, requested int) *Error {
	return &Error{
		Kind:      KindInsufficientStock,
		Message:   fmt.Sprintf("insufficient stock for %s", name),
		ProductID: id.Hex(),
		Available: available,
		Requested: requested,
	}
}
