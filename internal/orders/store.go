package orders

import (
	"context"
	"log/slog"
	"time"
)

// Store is the durable side of the engine. Every mutation runs inside InTx so
// that a read-modify-write on one order is atomic; implementations lock the
// order row for the lifetime of the transaction.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error

	// FindDraft returns (nil, nil) when the pair has no draft.
	FindDraft(ctx context.Context, storeID, supplierID int64) (*Order, error)
	GetOrder(ctx context.Context, orderID int64) (*Order, error)
	ListOrders(ctx context.Context, f OrderFilter) ([]Order, error)
	ListMessages(ctx context.Context, orderID int64) ([]Message, error)
	ListRatingsByOrder(ctx context.Context, orderID int64) ([]Rating, error)
	ListRatingsForRated(ctx context.Context, userID int64) ([]Rating, error)
}

// Tx is a unit of work. Orders returned by the Lock* methods carry their items.
type Tx interface {
	LockOrder(ctx context.Context, orderID int64) (*Order, error)
	LockOrderByItem(ctx context.Context, itemID int64) (*Order, error)

	// InsertDraft assigns o.ID, or fails with ErrConflict when the pair
	// already has a draft.
	InsertDraft(ctx context.Context, o *Order) error
	UpdateOrder(ctx context.Context, o *Order) error
	DeleteOrder(ctx context.Context, orderID int64) error

	InsertItem(ctx context.Context, it *OrderItem) error
	UpdateItem(ctx context.Context, it OrderItem) error
	DeleteItem(ctx context.Context, itemID int64) error

	InsertMessage(ctx context.Context, m *Message) error

	HasRating(ctx context.Context, orderID, raterID int64) (bool, error)
	// InsertRating fails with ErrDuplicateRating on (order, rater) collision.
	InsertRating(ctx context.Context, r *Rating) error
}

// Catalog is the read-only product accessor. No caching happens on this side
// beyond the unit price captured on an order line.
type Catalog interface {
	GetProduct(ctx context.Context, productID int64) (Product, error)
}

type OrderFilter struct {
	StoreID    int64
	SupplierID int64
	// Status empty means every non-draft order.
	Status Status
}

type Policy struct {
	MinimumOrderCents        int64
	DeliveryRatePerUnitCents int64
	MessagingWindow          time.Duration
	Cancel                   CancelPolicy
}

func DefaultPolicy() Policy {
	return Policy{
		MinimumOrderCents:        500000,
		DeliveryRatePerUnitCents: 2000,
		MessagingWindow:          12 * time.Hour,
		Cancel:                   DenyCancel,
	}
}

type Service struct {
	Store   Store
	Catalog Catalog
	Policy  Policy
	Log     *slog.Logger
	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) logger() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

func (s *Service) cancelPolicy() CancelPolicy {
	if s.Policy.Cancel != nil {
		return s.Policy.Cancel
	}
	return DenyCancel
}
