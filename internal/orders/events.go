package orders

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Lifecycle notifications published by the API after a successful operation.
// The engine itself never publishes; consumers (audit log, notifiers) read
// them from TopicOrderLifecycle.
const TopicOrderLifecycle = "order.lifecycle"

const (
	EventDraftCreated         = "DraftCreated"
	EventDraftDiscarded       = "DraftDiscarded"
	EventOrderSubmitted       = "OrderSubmitted"
	EventOrderStatusChanged   = "OrderStatusChanged"
	EventPaymentStatusChanged = "PaymentStatusChanged"
	EventMessagePosted        = "MessagePosted"
	EventOrderRated           = "OrderRated"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"` // e.g., "order-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	OrderID       int64           `json:"order_id"`
	ActorID       int64           `json:"actor_id,omitempty"`
	ActorRole     Role            `json:"actor_role,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// ---- Payload tipe per event ----

type DraftPayload struct {
	OrderID    int64 `json:"order_id"`
	StoreID    int64 `json:"store_id"`
	SupplierID int64 `json:"supplier_id"`
}

type OrderSubmittedPayload struct {
	OrderID          int64          `json:"order_id"`
	StoreID          int64          `json:"store_id"`
	SupplierID       int64          `json:"supplier_id"`
	ItemCount        int            `json:"item_count"`
	TotalCents       int64          `json:"total_cents"`
	DeliveryFeeCents int64          `json:"delivery_fee_cents"`
	PaymentMethod    PaymentMethod  `json:"payment_method"`
	DeliveryOption   DeliveryOption `json:"delivery_option"`
}

type StatusChangedPayload struct {
	OrderID int64  `json:"order_id"`
	From    Status `json:"from"`
	To      Status `json:"to"`
}

type PaymentChangedPayload struct {
	OrderID       int64         `json:"order_id"`
	PaymentStatus PaymentStatus `json:"payment_status"`
}

type MessagePostedPayload struct {
	OrderID   int64 `json:"order_id"`
	MessageID int64 `json:"message_id"`
	SenderID  int64 `json:"sender_id"`
	HasImage  bool  `json:"has_image"`
}

type OrderRatedPayload struct {
	OrderID int64 `json:"order_id"`
	RaterID int64 `json:"rater_id"`
	RatedID int64 `json:"rated_id"`
	Score   int   `json:"score"`
}

func NewEnvelope(eventType, producer, traceID string, orderID int64, actor Actor, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: strconv.FormatInt(orderID, 10),
		OrderID:       orderID,
		ActorID:       actor.UserID,
		ActorRole:     actor.Role,
		Payload:       b,
	}, nil
}

// Partition key = order id, supaya semua event 1 order maintain urutan.
func PartitionKey(orderID int64) []byte { return []byte(strconv.FormatInt(orderID, 10)) }
