package httpx

import (
	"time"

	"github.com/ariefcatur/go-supplier-orders/internal/orders"
	"github.com/shopspring/decimal"
)

// Money is an amount in cents that serializes as a fixed two-decimal string.
type Money int64

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + decimal.New(int64(m), -2).StringFixed(2) + `"`), nil
}

type ItemDTO struct {
	ID        int64 `json:"id"`
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
	UnitPrice Money `json:"unit_price"`
	Subtotal  Money `json:"subtotal"`
}

type OrderDTO struct {
	ID              int64       `json:"id"`
	StoreID         int64       `json:"store_id"`
	SupplierID      int64       `json:"supplier_id"`
	Status          string      `json:"status"`
	TotalAmount     Money       `json:"total_amount"`
	DeliveryFee     Money       `json:"delivery_fee"`
	GrandTotal      Money       `json:"grand_total"`
	PaymentMethod   string      `json:"payment_method,omitempty"`
	PaymentStatus   string      `json:"payment_status,omitempty"`
	DeliveryOption  string      `json:"delivery_option,omitempty"`
	ShippingAddress string      `json:"shipping_address,omitempty"`
	Notes           string      `json:"notes,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	Items           []ItemDTO   `json:"order_items"`
	Ratings         []RatingDTO `json:"ratings,omitempty"`
	MessagingOpen   *bool       `json:"messaging_open,omitempty"`
}

type MessageDTO struct {
	ID        int64     `json:"id"`
	OrderID   int64     `json:"order_id"`
	SenderID  int64     `json:"sender_id"`
	Content   string    `json:"content"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type RatingDTO struct {
	ID        int64     `json:"id"`
	OrderID   int64     `json:"order_id"`
	RaterID   int64     `json:"rater_id"`
	RatedID   int64     `json:"rated_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type StatusDTO struct {
	OrderID       int64     `json:"order_id"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
	MessagingOpen bool      `json:"messaging_open"`
	Cached        bool      `json:"cached"`
}

func toOrderDTO(o *orders.Order) OrderDTO {
	d := OrderDTO{
		ID:              o.ID,
		StoreID:         o.StoreID,
		SupplierID:      o.SupplierID,
		Status:          string(o.Status),
		TotalAmount:     Money(o.TotalCents),
		DeliveryFee:     Money(o.DeliveryFeeCents),
		GrandTotal:      Money(o.TotalCents + o.DeliveryFeeCents),
		PaymentMethod:   string(o.PaymentMethod),
		PaymentStatus:   string(o.PaymentStatus),
		DeliveryOption:  string(o.DeliveryOption),
		ShippingAddress: o.ShippingAddress,
		Notes:           o.Notes,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		Items:           make([]ItemDTO, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		d.Items = append(d.Items, ItemDTO{
			ID:        it.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: Money(it.UnitPriceCents),
			Subtotal:  Money(it.SubtotalCents),
		})
	}
	return d
}

func toMessageDTO(m orders.Message) MessageDTO {
	return MessageDTO{ID: m.ID, OrderID: m.OrderID, SenderID: m.SenderID, Content: m.Content, ImageURL: m.ImageURL, CreatedAt: m.CreatedAt}
}

func toRatingDTO(r orders.Rating) RatingDTO {
	return RatingDTO{ID: r.ID, OrderID: r.OrderID, RaterID: r.RaterID, RatedID: r.RatedID, Rating: r.Score, Comment: r.Comment, CreatedAt: r.CreatedAt}
}

func toRatingDTOs(rs []orders.Rating) []RatingDTO {
	out := make([]RatingDTO, 0, len(rs))
	for _, r := range rs {
		out = append(out, toRatingDTO(r))
	}
	return out
}
