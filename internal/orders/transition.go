package orders

import (
	"context"
	"fmt"
)

// Transition moves a placed order along the status machine. Every forward
// and correction edge belongs to the supplier party; cancellation is
// delegated to the configured CancelPolicy. The status the order left is
// returned alongside the updated order.
func (s *Service) Transition(ctx context.Context, actor Actor, orderID int64, target Status) (o *Order, from Status, err error) {
	o, err = s.mutateOrder(ctx, orderID, func(tx Tx, o *Order) error {
		if !o.IsParty(actor) && actor.Role != RoleAdmin {
			return fmt.Errorf("%w: order %d", ErrNotFound, o.ID)
		}
		from = o.Status
		if err := s.checkTransition(o, actor, target); err != nil {
			return err
		}
		o.Status = target
		return s.touch(ctx, tx, o)
	})
	if err != nil {
		return nil, "", err
	}
	s.logger().Info("order status changed", "order_id", o.ID, "from", from, "to", target, "actor_id", actor.UserID)
	return o, from, nil
}

func (s *Service) checkTransition(o *Order, actor Actor, target Status) error {
	if target == StatusCancelled {
		if !CanCancel(o.Status) {
			return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, o.Status, target)
		}
		if !s.cancelPolicy()(o, actor) {
			return fmt.Errorf("%w: %s is not allowed to cancel order %d", ErrIllegalTransition, actor.Role, o.ID)
		}
		return nil
	}
	if !CanTransition(o.Status, target) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, o.Status, target)
	}
	if !o.IsSupplier(actor) {
		return fmt.Errorf("%w: only the supplier can move order %d to %s", ErrIllegalTransition, o.ID, target)
	}
	return nil
}

// MarkPaymentPaid confirms a GCash payment. It does not touch order status.
func (s *Service) MarkPaymentPaid(ctx context.Context, actor Actor, orderID int64) (*Order, error) {
	o, err := s.mutateOrder(ctx, orderID, func(tx Tx, o *Order) error {
		if !o.IsSupplier(actor) {
			return fmt.Errorf("%w: only the supplier can confirm payment for order %d", ErrForbidden, o.ID)
		}
		if o.PaymentMethod != PaymentGCash {
			return fmt.Errorf("%w: payment confirmation only applies to gcash orders", ErrInvalidState)
		}
		if o.PaymentStatus != PaymentPending {
			return fmt.Errorf("%w: payment is %s, not pending", ErrInvalidState, o.PaymentStatus)
		}
		o.PaymentStatus = PaymentPaid
		return s.touch(ctx, tx, o)
	})
	if err != nil {
		return nil, err
	}
	s.logger().Info("payment marked paid", "order_id", o.ID, "actor_id", actor.UserID)
	return o, nil
}

// RevertPaymentToPending undoes a paid (or failed) payment mark.
func (s *Service) RevertPaymentToPending(ctx context.Context, actor Actor, orderID int64) (*Order, error) {
	o, err := s.mutateOrder(ctx, orderID, func(tx Tx, o *Order) error {
		if !o.IsSupplier(actor) {
			return fmt.Errorf("%w: only the supplier can revert payment for order %d", ErrForbidden, o.ID)
		}
		if o.Status == StatusDraft || o.PaymentMethod == "" {
			return fmt.Errorf("%w: order %d has not been submitted", ErrInvalidState, o.ID)
		}
		if o.PaymentStatus == PaymentPending {
			return fmt.Errorf("%w: payment is already pending", ErrInvalidState)
		}
		o.PaymentStatus = PaymentPending
		return s.touch(ctx, tx, o)
	})
	if err != nil {
		return nil, err
	}
	s.logger().Info("payment reverted to pending", "order_id", o.ID, "actor_id", actor.UserID)
	return o, nil
}
