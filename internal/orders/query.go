package orders

import (
	"context"
	"fmt"
)

type OrderDetail struct {
	Order
	Ratings       []Rating
	MessagingOpen bool
}

// GetOrder returns the order with items and ratings, visible to its parties
// and to admins.
func (s *Service) GetOrder(ctx context.Context, actor Actor, orderID int64) (*OrderDetail, error) {
	o, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.IsParty(actor) && actor.Role != RoleAdmin {
		// jangan bocorkan keberadaan order milik pihak lain
		return nil, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
	}
	rs, err := s.Store.ListRatingsByOrder(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	return &OrderDetail{Order: *o, Ratings: rs, MessagingOpen: s.MessagingOpen(o)}, nil
}

// ListOrders lists the actor's orders, newest first. Drafts are left out
// unless status asks for them explicitly.
func (s *Service) ListOrders(ctx context.Context, actor Actor, status Status) ([]Order, error) {
	f := OrderFilter{Status: status}
	switch actor.Role {
	case RoleStore:
		f.StoreID = actor.UserID
	case RoleSupplier:
		f.SupplierID = actor.UserID
	case RoleAdmin:
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrForbidden, actor.Role)
	}
	return s.Store.ListOrders(ctx, f)
}
