package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cookiebarrel/internal/events"
	"cookiebarrel/internal/models"
	"cookiebarrel/internal/observability"
	"cookiebarrel/internal/repositories"
)

const (
	defaultLeadTime       = 30 * time.Minute
	defaultPublishTimeout = 3 * time.Second

	customerPageLimit = 10
	staffPageLimit    = 50
	maxPageLimit      = 100

	orderNumberAttempts = 3
	updateAttempts      = 3
)

var errIdempotentReplay = errors.New("order already created for idempotency key")

// OrderServiceDeps bundles collaborators required to construct an order service.
type OrderServiceDeps struct {
	Orders     repositories.OrderRepository
	UnitOfWork repositories.UnitOfWork
	Stock      *StockService
	Numbers    *OrderNumberGenerator
	Pricing    Calculator
	Machine    StateMachine
	Events     events.Publisher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Tracer     trace.Tracer
	Clock      func() time.Time
	// LeadTime is added to the creation time for the delivery estimate.
	LeadTime       time.Duration
	PublishTimeout time.Duration
}

// OrderService is the only writer of order documents.
type OrderService struct {
	orders         repositories.OrderRepository
	uow            repositories.UnitOfWork
	stock          *StockService
	numbers        *OrderNumberGenerator
	pricing        Calculator
	machine        StateMachine
	events         events.Publisher
	metrics        *observability.Metrics
	logger         *zap.Logger
	tracer         trace.Tracer
	clock          func() time.Time
	leadTime       time.Duration
	publishTimeout time.Duration
	validate       *validator.Validate
}

func NewOrderService(deps OrderServiceDeps) (*OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Stock == nil {
		return nil, errors.New("order service: stock service is required")
	}
	if deps.Numbers == nil {
		return nil, errors.New("order service: order number generator is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	publisher := deps.Events
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = observability.Tracer()
	}
	leadTime := deps.LeadTime
	if leadTime <= 0 {
		leadTime = defaultLeadTime
	}
	publishTimeout := deps.PublishTimeout
	if publishTimeout <= 0 {
		publishTimeout = defaultPublishTimeout
	}
	pricing := deps.Pricing
	if pricing == (Calculator{}) {
		pricing = NewCalculator(DefaultPricingConfig())
	}
	machine := deps.Machine
	if machine.policy == "" {
		machine = NewStateMachine(PolicyAdjacent)
	}

	return &OrderService{
		orders:  deps.Orders,
		uow:     deps.UnitOfWork,
		stock:   deps.Stock,
		numbers: deps.Numbers,
		pricing: pricing,
		machine: machine,
		events:  publisher,
		metrics: deps.Metrics,
		logger:  observability.OrNop(deps.Logger).Named("order"),
		tracer:  tracer,
		clock: func() time.Time {
			return clock().UTC()
		},
		leadTime:       leadTime,
		publishTimeout: publishTimeout,
		validate:       newValidator(),
	}, nil
}

type CreateOrderCommand struct {
	Actor          models.Principal
	IdempotencyKey string
	Input          CreateOrderInput
}

type CreateOrderResult struct {
	Order models.Order
	// Replayed is set when an earlier order with the same idempotency key
	// was returned instead of creating a new one.
	Replayed bool
}

// CreateOrder validates, prices and reserves stock for a new order, then
// persists it as pending. Either the order and its reservation both exist
// afterwards or neither does.
func (s *OrderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (CreateOrderResult, error) {
	ctx, span := s.tracer.Start(ctx, "orders.create")
	defer span.End()
	span.SetAttributes(attribute.String("order.customer_id", cmd.Actor.ID))

	result, err := s.createOrder(ctx, cmd)
	if err != nil {
		s.recordFailure(span, "create", err)
		return CreateOrderResult{}, err
	}

	span.SetAttributes(
		attribute.String("order.number", result.Order.OrderNumber),
		attribute.Bool("order.replayed", result.Replayed),
	)
	span.SetStatus(codes.Ok, "order created")
	return result, nil
}

func (s *OrderService) createOrder(ctx context.Context, cmd CreateOrderCommand) (CreateOrderResult, error) {
	if strings.TrimSpace(cmd.Actor.ID) == "" {
		return CreateOrderResult{}, forbiddenError("an authenticated customer is required")
	}
	key, err := prepareIdempotencyKey(cmd.IdempotencyKey)
	if err != nil {
		return CreateOrderResult{}, err
	}
	draft, err := prepareCreateInput(s.validate, cmd.Input)
	if err != nil {
		return CreateOrderResult{}, err
	}

	if key != "" {
		existing, err := s.orders.FindByIdempotencyKey(ctx, cmd.Actor.ID, key)
		switch {
		case err == nil:
			s.logger.Info("order replayed for idempotency key",
				zap.String("orderNumber", existing.OrderNumber),
				zap.String("customerId", cmd.Actor.ID),
			)
			return CreateOrderResult{Order: existing, Replayed: true}, nil
		case !repositories.IsNotFound(err):
			return CreateOrderResult{}, mapRepositoryError(err, "order")
		}
	}

	snapshots, err := s.stock.Check(ctx, draft.stock)
	if err != nil {
		return CreateOrderResult{}, err
	}
	for i := range draft.lines {
		product := snapshots[draft.lines[i].ProductID]
		draft.lines[i].Name = product.Name
		draft.lines[i].UnitPrice = product.EffectivePrice()
	}
	price := s.pricing.Price(draft.lines)

	now := s.clock()
	order := models.Order{
		CustomerID:            cmd.Actor.ID,
		Items:                 draft.lines,
		Subtotal:              price.Subtotal,
		DeliveryFee:           price.DeliveryFee,
		Tax:                   price.Tax,
		FinalAmount:           price.FinalAmount,
		Status:                models.StatusPending,
		PaymentMethod:         draft.paymentMethod,
		PaymentStatus:         models.PaymentPending,
		DeliveryAddress:       draft.address,
		ContactInfo:           draft.contact,
		SpecialInstructions:   draft.specialInstructions,
		EstimatedDeliveryTime: now.Add(s.leadTime),
		IdempotencyKey:        key,
		StockState:            models.StockReserved,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	var created models.Order
	err = s.runInTx(ctx, func(txCtx context.Context) error {
		reservation, err := s.stock.Commit(txCtx, draft.stock)
		if err != nil {
			return err
		}
		created, err = s.insertNumbered(txCtx, order)
		if err != nil {
			s.releaseReservation(txCtx, reservation, "order insert failed")
			return err
		}
		return nil
	})
	if errors.Is(err, errIdempotentReplay) {
		existing, findErr := s.orders.FindByIdempotencyKey(ctx, cmd.Actor.ID, key)
		if findErr != nil {
			return CreateOrderResult{}, mapRepositoryError(findErr, "order")
		}
		return CreateOrderResult{Order: existing, Replayed: true}, nil
	}
	if err != nil {
		return CreateOrderResult{}, mapRepositoryError(err, "order")
	}

	s.metrics.OrderCreated()
	s.logger.Info("order created",
		zap.String("orderId", created.ID.Hex()),
		zap.String("orderNumber", created.OrderNumber),
		zap.String("customerId", created.CustomerID),
		zap.String("finalAmount", created.FinalAmount.String()),
	)
	s.publishEvent(ctx, events.NewOrderEvent(events.OrderCreated, created, "", cmd.Actor.ID, now))
	return CreateOrderResult{Order: created}, nil
}

// insertNumbered assigns the next order number and inserts the order. A number
// collision with an order written outside the counter draws a fresh number.
func (s *OrderService) insertNumbered(ctx context.Context, order models.Order) (models.Order, error) {
	var lastErr error
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		number, err := s.numbers.Next(ctx)
		if err != nil {
			return models.Order{}, storageError(err)
		}
		order.OrderNumber = number

		created, err := s.orders.Insert(ctx, order)
		switch {
		case err == nil:
			return created, nil
		case order.IdempotencyKey != "" && repositories.IsDuplicateField(err, repositories.FieldIdempotencyKey):
			return models.Order{}, errIdempotentReplay
		case repositories.IsDuplicateField(err, repositories.FieldOrderNumber):
			s.logger.Warn("order number already taken", zap.String("orderNumber", number))
			lastErr = err
			continue
		default:
			return models.Order{}, mapRepositoryError(err, "order")
		}
	}
	return models.Order{}, storageError(lastErr)
}

type UpdateOrderCommand struct {
	Actor         models.Principal
	OrderID       string
	Status        *string
	Notes         *string
	PaymentStatus *string
}

// UpdateOrder applies a status transition, a payment status change and staff
// notes in one conditional write. Entering cancelled returns the reserved
// stock. Repeating a transition the order already made changes nothing,
// except that a repeated cancel finishes a stock release that failed.
func (s *OrderService) UpdateOrder(ctx context.Context, cmd UpdateOrderCommand) (models.Order, error) {
	ctx, span := s.tracer.Start(ctx, "orders.update")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", cmd.OrderID))

	order, err := s.updateOrder(ctx, cmd)
	if err != nil {
		s.recordFailure(span, "update", err)
		return models.Order{}, err
	}
	span.SetAttributes(attribute.String("order.status", string(order.Status)))
	span.SetStatus(codes.Ok, "order updated")
	return order, nil
}

func (s *OrderService) updateOrder(ctx context.Context, cmd UpdateOrderCommand) (models.Order, error) {
	id, err := parseOrderID(cmd.OrderID)
	if err != nil {
		return models.Order{}, err
	}
	if cmd.Status == nil && cmd.Notes == nil && cmd.PaymentStatus == nil {
		return models.Order{}, validationError(CodeMissingFields, "nothing to update: provide status, notes or paymentStatus", "status", "notes", "paymentStatus")
	}

	var (
		target        models.OrderStatus
		paymentTarget models.PaymentStatus
		notes         string
	)
	if cmd.Status != nil {
		if target, err = models.ParseOrderStatus(*cmd.Status); err != nil {
			return models.Order{}, validationError(CodeInvalidInput, err.Error(), "status")
		}
	}
	if cmd.PaymentStatus != nil {
		if paymentTarget, err = models.ParsePaymentStatus(*cmd.PaymentStatus); err != nil {
			return models.Order{}, validationError(CodeInvalidInput, err.Error(), "paymentStatus")
		}
	}
	if cmd.Notes != nil {
		if !cmd.Actor.IsStaff() {
			return models.Order{}, forbiddenError("only staff may edit order notes")
		}
		if notes, err = prepareNotes(*cmd.Notes); err != nil {
			return models.Order{}, err
		}
	}

	for attempt := 1; ; attempt++ {
		current, err := s.loadVisible(ctx, cmd.Actor, id)
		if err != nil {
			return models.Order{}, err
		}

		now := s.clock()
		updated := current.Clone()
		changed := false
		var transition Transition

		if cmd.Status != nil {
			transition, err = s.machine.Check(cmd.Actor, current.Status, target)
			if err != nil {
				return models.Order{}, err
			}
			if !transition.NoOp {
				s.machine.Apply(&updated, transition, now)
				changed = true
			}
		}
		if cmd.PaymentStatus != nil {
			noop, err := s.machine.CheckPayment(cmd.Actor, current.PaymentStatus, paymentTarget)
			if err != nil {
				return models.Order{}, err
			}
			if !noop {
				updated.PaymentStatus = paymentTarget
				changed = true
			}
		}
		if cmd.Notes != nil && notes != current.Notes {
			updated.Notes = notes
			changed = true
		}

		// A cancel whose stock release failed earlier is finished by the
		// next cancel of the same order.
		finishRelease := transition.NoOp && target == models.StatusCancelled &&
			current.StockState == models.StockReserved
		if !changed && !finishRelease {
			return current, nil
		}
		if changed {
			updated.UpdatedAt = now
		}
		if transition.RestoreStock {
			updated.StockState = models.StockReleased
		}

		err = s.runInTx(ctx, func(txCtx context.Context) error {
			if changed {
				if err := s.orders.Update(txCtx, updated, repositories.RevisionOf(current)); err != nil {
					return err
				}
			}
			switch {
			case transition.RestoreStock:
				return s.releaseStock(txCtx, updated)
			case finishRelease:
				return s.claimAndReleaseStock(txCtx, updated)
			}
			return nil
		})
		if repositories.IsConflict(err) && attempt < updateAttempts {
			s.logger.Info("order changed concurrently, re-evaluating", zap.String("orderId", id.Hex()))
			continue
		}
		if err != nil {
			if (transition.RestoreStock || finishRelease) && !repositories.IsConflict(err) {
				s.logger.Error("order cancellation did not complete",
					zap.String("orderId", id.Hex()),
					zap.Error(err),
				)
			}
			return models.Order{}, mapRepositoryError(err, "order")
		}

		if finishRelease {
			updated.StockState = models.StockReleased
		}
		if changed {
			s.afterUpdate(ctx, cmd.Actor, current, updated)
		}
		return updated, nil
	}
}

// releaseStock returns the stock of an order whose cancel already marked it
// released. A failed release marks it reserved again so a repeated cancel
// can finish the job.
func (s *OrderService) releaseStock(ctx context.Context, order models.Order) error {
	err := s.stock.Release(ctx, reservationOf(order))
	if err == nil {
		return nil
	}
	if _, markErr := s.orders.SetStockState(ctx, order.ID, models.StockReleased, models.StockReserved); markErr != nil {
		s.logger.Error("stock state could not be reset after failed release",
			zap.String("orderId", order.ID.Hex()),
			zap.Error(markErr),
		)
	}
	return err
}

// claimAndReleaseStock releases the stock of a cancelled order still marked
// reserved. Only the caller that flips the marker touches stock.
func (s *OrderService) claimAndReleaseStock(ctx context.Context, order models.Order) error {
	claimed, err := s.orders.SetStockState(ctx, order.ID, models.StockReserved, models.StockReleased)
	if err != nil || !claimed {
		return err
	}
	if err := s.releaseStock(ctx, order); err != nil {
		return err
	}
	s.logger.Info("stock restored for cancelled order",
		zap.String("orderId", order.ID.Hex()),
		zap.String("orderNumber", order.OrderNumber),
	)
	return nil
}

func (s *OrderService) afterUpdate(ctx context.Context, actor models.Principal, before, after models.Order) {
	fields := []zap.Field{
		zap.String("orderId", after.ID.Hex()),
		zap.String("orderNumber", after.OrderNumber),
		zap.String("actorId", actor.ID),
		zap.String("actorRole", string(actor.Role)),
	}
	if before.Status != after.Status {
		s.metrics.StatusChanged(string(before.Status), string(after.Status))
		s.logger.Info("order status changed", append(fields,
			zap.String("from", string(before.Status)),
			zap.String("to", string(after.Status)),
		)...)
		s.publishEvent(ctx, events.NewOrderEvent(events.OrderStatusChanged, after, before.Status, actor.ID, after.UpdatedAt))
		return
	}
	s.logger.Info("order updated", fields...)
	s.publishEvent(ctx, events.NewOrderEvent(events.OrderUpdated, after, before.Status, actor.ID, after.UpdatedAt))
}

// GetOrder returns an order visible to actor. Orders owned by someone else
// are reported as not found to non-staff callers.
func (s *OrderService) GetOrder(ctx context.Context, actor models.Principal, orderID string) (models.Order, error) {
	id, err := parseOrderID(orderID)
	if err != nil {
		return models.Order{}, err
	}
	return s.loadVisible(ctx, actor, id)
}

type ListOrdersQuery struct {
	Status      string
	OrderNumber string
	Page        int64
	Limit       int64
}

type ListOrdersResult struct {
	Orders     []models.Order
	Page       int64
	Limit      int64
	Total      int64
	TotalPages int64
	// Stats holds per-status counts across all orders; staff only.
	Stats map[models.OrderStatus]int64
}

// ListOrders pages through the caller's orders, or through every order for
// staff. Staff also receive per-status counts.
func (s *OrderService) ListOrders(ctx context.Context, actor models.Principal, query ListOrdersQuery) (ListOrdersResult, error) {
	if strings.TrimSpace(actor.ID) == "" {
		return ListOrdersResult{}, forbiddenError("an authenticated caller is required")
	}

	filter := repositories.OrderListFilter{
		OrderNumber: strings.ToUpper(strings.TrimSpace(query.OrderNumber)),
		Page:        query.Page,
		Limit:       query.Limit,
	}
	if raw := strings.TrimSpace(query.Status); raw != "" {
		status, err := models.ParseOrderStatus(raw)
		if err != nil {
			return ListOrdersResult{}, validationError(CodeInvalidInput, err.Error(), "status")
		}
		filter.Status = status
	}
	if !actor.IsStaff() {
		filter.CustomerID = actor.ID
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = customerPageLimit
		if actor.IsStaff() {
			filter.Limit = staffPageLimit
		}
	}
	if filter.Limit > maxPageLimit {
		filter.Limit = maxPageLimit
	}

	var (
		page  repositories.OrderPage
		stats map[models.OrderStatus]int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		page, err = s.orders.List(gctx, filter)
		return err
	})
	if actor.IsStaff() {
		g.Go(func() error {
			counts, err := s.orders.CountByStatus(gctx)
			if err != nil {
				return err
			}
			stats = make(map[models.OrderStatus]int64, len(models.OrderStatuses))
			for _, status := range models.OrderStatuses {
				stats[status] = counts[status]
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ListOrdersResult{}, mapRepositoryError(err, "orders")
	}

	return ListOrdersResult{
		Orders:     page.Items,
		Page:       filter.Page,
		Limit:      filter.Limit,
		Total:      page.Total,
		TotalPages: int64(math.Ceil(float64(page.Total) / float64(filter.Limit))),
		Stats:      stats,
	}, nil
}

// DeleteOrder hard-deletes an order. It bypasses the state machine and does
// not touch stock.
func (s *OrderService) DeleteOrder(ctx context.Context, actor models.Principal, orderID string) error {
	if !actor.IsAdmin() {
		return forbiddenError("only admins may delete orders")
	}
	id, err := parseOrderID(orderID)
	if err != nil {
		return err
	}
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return mapRepositoryError(err, "order")
	}
	if err := s.orders.Delete(ctx, id); err != nil {
		return mapRepositoryError(err, "order")
	}

	s.logger.Warn("order deleted",
		zap.String("orderId", id.Hex()),
		zap.String("orderNumber", order.OrderNumber),
		zap.String("actorId", actor.ID),
	)
	s.publishEvent(ctx, events.NewOrderEvent(events.OrderDeleted, order, order.Status, actor.ID, s.clock()))
	return nil
}

func (s *OrderService) loadVisible(ctx context.Context, actor models.Principal, id primitive.ObjectID) (models.Order, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return models.Order{}, mapRepositoryError(err, "order")
	}
	if !actor.IsStaff() && order.CustomerID != actor.ID {
		return models.Order{}, notFoundError("order not found")
	}
	return order, nil
}

func (s *OrderService) runInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.uow == nil {
		return fn(ctx)
	}
	return s.uow.RunInTx(ctx, fn)
}

func (s *OrderService) releaseReservation(ctx context.Context, reservation Reservation, reason string) {
	if reservation.Empty() {
		return
	}
	s.logger.Warn("returning reserved stock", zap.String("reason", reason))
	s.stock.Compensate(ctx, reservation)
}

func (s *OrderService) publishEvent(ctx context.Context, event events.OrderEvent) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()
	if err := s.events.Publish(pubCtx, event); err != nil {
		s.logger.Warn("order event publish failed",
			zap.String("type", string(event.Type)),
			zap.String("orderId", event.OrderID),
			zap.Error(err),
		)
	}
}

func (s *OrderService) recordFailure(span trace.Span, operation string, err error) {
	kind := KindOf(err)
	s.metrics.OrderFailed(operation, string(kind))
	span.SetStatus(codes.Error, string(kind))
	if kind == KindStorage {
		span.RecordError(err)
		s.logger.Error("order operation failed", zap.String("operation", operation), zap.Error(err))
	}
}

func reservationOf(order models.Order) Reservation {
	lines := make([]StockLine, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, StockLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return Reservation{Lines: AggregateLines(lines)}
}

func parseOrderID(raw string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(raw))
	if err != nil {
		return primitive.NilObjectID, validationError(CodeInvalidInput, "invalid order id", "id")
	}
	return id, nil
}
