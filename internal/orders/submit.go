package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type SubmitRequest struct {
	PaymentMethod   PaymentMethod
	DeliveryOption  DeliveryOption
	ShippingAddress string
	Notes           string
}

func (r SubmitRequest) validate() error {
	switch r.PaymentMethod {
	case PaymentCashOnDelivery, PaymentGCash:
	default:
		return fmt.Errorf("%w: invalid payment method %q", ErrValidation, r.PaymentMethod)
	}
	switch r.DeliveryOption {
	case DeliveryPickup, DeliveryDeliver:
	default:
		return fmt.Errorf("%w: invalid delivery option %q", ErrValidation, r.DeliveryOption)
	}
	return nil
}

// DeliveryFee is zero for pickup, otherwise the per-unit rate times the
// number of units on the order.
func (p Policy) DeliveryFee(o *Order, opt DeliveryOption) int64 {
	if opt != DeliveryDeliver {
		return 0
	}
	return int64(o.TotalQuantity()) * p.DeliveryRatePerUnitCents
}

// Submit turns a draft into a placed order. From here on the lines are frozen.
func (s *Service) Submit(ctx context.Context, actor Actor, orderID int64, req SubmitRequest) (*Order, error) {
	o, err := s.mutateOrder(ctx, orderID, func(tx Tx, o *Order) error {
		if !o.IsStore(actor) {
			return fmt.Errorf("%w: only the ordering store can submit order %d", ErrForbidden, o.ID)
		}
		if o.Status != StatusDraft {
			return fmt.Errorf("%w: order %d is already %s", ErrInvalidState, o.ID, o.Status)
		}
		if len(o.Items) == 0 {
			return fmt.Errorf("%w: cannot submit order with no items", ErrInvalidState)
		}
		if err := req.validate(); err != nil {
			return err
		}

		// total dihitung ulang dari item, jangan percaya nilai tersimpan
		o.Recalculate()
		if o.TotalCents < s.Policy.MinimumOrderCents {
			return fmt.Errorf("%w: minimum is %s, current total is %s",
				ErrMinimumOrder, FormatCents(s.Policy.MinimumOrderCents), FormatCents(o.TotalCents))
		}

		o.DeliveryFeeCents = s.Policy.DeliveryFee(o, req.DeliveryOption)
		o.Status = StatusPreparing
		o.PaymentStatus = PaymentPending
		o.PaymentMethod = req.PaymentMethod
		o.DeliveryOption = req.DeliveryOption
		o.ShippingAddress = strings.TrimSpace(req.ShippingAddress)
		o.Notes = strings.TrimSpace(req.Notes)
		return s.touch(ctx, tx, o)
	})
	if err != nil {
		return nil, err
	}
	s.logger().Info("order submitted", "order_id", o.ID, "total_cents", o.TotalCents,
		"delivery_fee_cents", o.DeliveryFeeCents, "payment_method", o.PaymentMethod)
	return o, nil
}

// FormatCents renders minor units as "1234.56".
func FormatCents(c int64) string {
	return decimal.New(c, -2).StringFixed(2)
}
