package services

import (
	"time"

	"cookiebarrel/internal/models"
)

// TransitionPolicy controls how far staff may move an order in one update.
type TransitionPolicy string

const (
	// PolicyAdjacent allows staff to move exactly one step forward.
	PolicyAdjacent TransitionPolicy = "adjacent"
	// PolicyForward allows staff to skip ahead along the fulfilment path.
	PolicyForward TransitionPolicy = "forward"
)

var fulfilmentStep = map[models.OrderStatus]int{
	models.StatusPending:        0,
	models.StatusConfirmed:      1,
	models.StatusPreparing:      2,
	models.StatusReady:          3,
	models.StatusOutForDelivery: 4,
	models.StatusDelivered:      5,
}

var cancellableFrom = map[models.OrderStatus]bool{
	models.StatusPending:   true,
	models.StatusConfirmed: true,
}

var paymentTransitions = map[models.PaymentStatus][]models.PaymentStatus{
	models.PaymentPending: {models.PaymentPaid, models.PaymentFailed},
	models.PaymentFailed:  {models.PaymentPaid},
	models.PaymentPaid:    {models.PaymentRefunded},
}

// Transition is a checked status change ready to apply.
type Transition struct {
	From models.OrderStatus
	To   models.OrderStatus
	// NoOp is set when the order already has the target status.
	NoOp bool
	// RestoreStock is set when entering cancelled.
	RestoreStock bool
}

type StateMachine struct {
	policy TransitionPolicy
}

func NewStateMachine(policy TransitionPolicy) StateMachine {
	if policy != PolicyForward {
		policy = PolicyAdjacent
	}
	return StateMachine{policy: policy}
}

func (m StateMachine) Policy() TransitionPolicy { return m.policy }

// Check validates moving order from its current status to target on behalf of
// actor. Customers may only cancel; staff may advance or cancel.
func (m StateMachine) Check(actor models.Principal, current, target models.OrderStatus) (Transition, error) {
	if !target.Valid() {
		return Transition{}, invalidInput("unknown status %q", target)
	}
	if !actor.IsStaff() && target != models.StatusCancelled {
		return Transition{}, forbiddenError("customers may only cancel orders")
	}

	t := Transition{From: current, To: target}
	if current == target {
		t.NoOp = true
		return t, nil
	}
	if !current.Valid() {
		return Transition{}, invalidTransition("order has unrecognised status %q", current)
	}
	if current.Terminal() {
		return Transition{}, invalidTransition("order is %s and can no longer change", current)
	}

	if target == models.StatusCancelled {
		if !cancellableFrom[current] {
			return Transition{}, invalidTransition("order cannot be cancelled once it is %s", current)
		}
		t.RestoreStock = true
		return t, nil
	}

	from, to := fulfilmentStep[current], fulfilmentStep[target]
	switch {
	case to <= from:
		return Transition{}, invalidTransition("order cannot move back from %s to %s", current, target)
	case m.policy == PolicyAdjacent && to != from+1:
		return Transition{}, invalidTransition("order must move to %s before %s", nextStatus(current), target)
	}
	return t, nil
}

// Apply writes a checked transition onto order. The delivery timestamp is set
// only the first time the order reaches delivered.
func (m StateMachine) Apply(order *models.Order, t Transition, now time.Time) {
	if t.NoOp {
		return
	}
	order.Status = t.To
	order.UpdatedAt = now
	if t.To == models.StatusDelivered && order.ActualDeliveryTime == nil {
		delivered := now
		order.ActualDeliveryTime = &delivered
	}
}

// CheckPayment validates a payment status change. Only staff may change it.
func (m StateMachine) CheckPayment(actor models.Principal, current, target models.PaymentStatus) (noop bool, err error) {
	if !actor.IsStaff() {
		return false, forbiddenError("only staff may update payment status")
	}
	if current == target {
		return true, nil
	}
	for _, allowed := range paymentTransitions[current] {
		if allowed == target {
			return false, nil
		}
	}
	return false, invalidTransition("payment status cannot change from %s to %s", current, target)
}

func nextStatus(current models.OrderStatus) models.OrderStatus {
	step := fulfilmentStep[current]
	for status, s := range fulfilmentStep {
		if s == step+1 {
			return status
		}
	}
	return current
}
