package orders

import "time"

type Role string

const (
	RoleStore    Role = "store"
	RoleSupplier Role = "supplier"
	RoleAdmin    Role = "admin"
)

// Actor is the authenticated caller, supplied by the auth layer.
type Actor struct {
	UserID int64
	Role   Role
}

type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentGCash          PaymentMethod = "gcash"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

type DeliveryOption string

const (
	DeliveryPickup  DeliveryOption = "pickup"
	DeliveryDeliver DeliveryOption = "deliver"
)

// Product is the catalog snapshot read at the moment of a cart mutation.
type Product struct {
	ID            int64
	SupplierID    int64
	Name          string
	Unit          string
	PriceCents    int64
	StockQuantity int
}

type Order struct {
	ID               int64
	StoreID          int64
	SupplierID       int64
	Status           Status // lihat status.go
	TotalCents       int64
	PaymentMethod    PaymentMethod
	PaymentStatus    PaymentStatus
	DeliveryOption   DeliveryOption
	DeliveryFeeCents int64
	ShippingAddress  string
	Notes            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Items            []OrderItem
}

type OrderItem struct {
	ID             int64
	OrderID        int64
	ProductID      int64
	Quantity       int
	UnitPriceCents int64
	SubtotalCents  int64
}

type Message struct {
	ID        int64
	OrderID   int64
	SenderID  int64
	Content   string
	ImageURL  string
	CreatedAt time.Time
}

type Rating struct {
	ID        int64
	OrderID   int64
	RaterID   int64
	RatedID   int64
	Score     int
	Comment   string
	CreatedAt time.Time
}

type RatingSummary struct {
	UserID  int64
	Average float64
	Count   int
}

// Recalculate rebuilds every subtotal and the order total from the current lines.
func (o *Order) Recalculate() {
	var total int64
	for i := range o.Items {
		it := &o.Items[i]
		it.SubtotalCents = int64(it.Quantity) * it.UnitPriceCents
		total += it.SubtotalCents
	}
	o.TotalCents = total
}

func (o *Order) ItemByProduct(productID int64) *OrderItem {
	for i := range o.Items {
		if o.Items[i].ProductID == productID {
			return &o.Items[i]
		}
	}
	return nil
}

func (o *Order) ItemByID(itemID int64) *OrderItem {
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			return &o.Items[i]
		}
	}
	return nil
}

// TotalQuantity is the number of units across all lines.
func (o *Order) TotalQuantity() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

// IsParty reports whether the actor is the store or supplier of this order.
func (o *Order) IsParty(a Actor) bool {
	return o.IsStore(a) || o.IsSupplier(a)
}

func (o *Order) IsStore(a Actor) bool {
	return a.Role == RoleStore && a.UserID == o.StoreID
}

func (o *Order) IsSupplier(a Actor) bool {
	return a.Role == RoleSupplier && a.UserID == o.SupplierID
}

// CounterParty returns the other trading party of userID on this order.
func (o *Order) CounterParty(userID int64) (int64, bool) {
	switch userID {
	case o.StoreID:
		return o.SupplierID, true
	case o.SupplierID:
		return o.StoreID, true
	}
	return 0, false
}
