package orders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	all := []Status{StatusDraft, StatusPreparing, StatusInTransit, StatusDelivered, StatusCancelled}
	allowed := map[[2]Status]bool{
		{StatusPreparing, StatusInTransit}: true,
		{StatusInTransit, StatusDelivered}: true,
		{StatusDelivered, StatusInTransit}: true,
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]Status{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestCanCancel(t *testing.T) {
	assert.True(t, CanCancel(StatusDraft))
	assert.True(t, CanCancel(StatusPreparing))
	assert.True(t, CanCancel(StatusInTransit))
	assert.False(t, CanCancel(StatusDelivered))
	assert.False(t, CanCancel(StatusCancelled))
}

func TestParseStatus(t *testing.T) {
	s, ok := ParseStatus("in_transit")
	assert.True(t, ok)
	assert.Equal(t, StatusInTransit, s)

	_, ok = ParseStatus("shipped")
	assert.False(t, ok)
}

func TestCancelPolicyByName(t *testing.T) {
	o := &Order{StoreID: 1, SupplierID: 2}
	storeActor := Actor{UserID: 1, Role: RoleStore}

	p, ok := CancelPolicyByName("")
	assert.True(t, ok)
	assert.False(t, p(o, storeActor))

	p, ok = CancelPolicyByName("parties")
	assert.True(t, ok)
	assert.True(t, p(o, storeActor))
	assert.False(t, p(o, Actor{UserID: 9, Role: RoleAdmin}))

	_, ok = CancelPolicyByName("anyone")
	assert.False(t, ok)
}

func TestMessagingOpen(t *testing.T) {
	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	window := 12 * time.Hour

	for _, st := range []Status{StatusDraft, StatusPreparing, StatusInTransit, StatusCancelled} {
		o := &Order{Status: st, UpdatedAt: at}
		assert.True(t, MessagingOpen(o, at.Add(72*time.Hour), window), st)
	}

	o := &Order{Status: StatusDelivered, UpdatedAt: at}
	assert.True(t, MessagingOpen(o, at.Add(11*time.Hour+59*time.Minute), window))
	assert.False(t, MessagingOpen(o, at.Add(window), window))
	assert.False(t, MessagingOpen(o, at.Add(12*time.Hour+time.Minute), window))
}

func TestDeliveryFee(t *testing.T) {
	p := DefaultPolicy()
	o := &Order{Items: []OrderItem{{Quantity: 4}, {Quantity: 7}}}

	assert.EqualValues(t, 22000, p.DeliveryFee(o, DeliveryDeliver))
	assert.EqualValues(t, 0, p.DeliveryFee(o, DeliveryPickup))
}

func TestRecalculate(t *testing.T) {
	o := &Order{TotalCents: 1, Items: []OrderItem{
		{Quantity: 3, UnitPriceCents: 9999, SubtotalCents: 7},
		{Quantity: 1, UnitPriceCents: 150000},
	}}
	o.Recalculate()
	assert.EqualValues(t, 29997, o.Items[0].SubtotalCents)
	assert.EqualValues(t, 179997, o.TotalCents)
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "4999.99", FormatCents(499999))
	assert.Equal(t, "5000.00", FormatCents(500000))
	assert.Equal(t, "0.05", FormatCents(5))
}

func TestCounterParty(t *testing.T) {
	o := &Order{StoreID: 1, SupplierID: 2}
	id, ok := o.CounterParty(1)
	assert.True(t, ok)
	assert.EqualValues(t, 2, id)
	id, ok = o.CounterParty(2)
	assert.True(t, ok)
	assert.EqualValues(t, 1, id)
	_, ok = o.CounterParty(3)
	assert.False(t, ok)
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, RatingSummary{UserID: 5}, Summarize(5, nil))
	s := Summarize(5, []Rating{{Score: 5}, {Score: 4}, {Score: 4}})
	assert.Equal(t, 3, s.Count)
	assert.InDelta(t, 4.3333, s.Average, 0.001)
}

func TestNewEnvelope(t *testing.T) {
	env, err := NewEnvelope(EventOrderSubmitted, "order-api", "req-1", 42,
		Actor{UserID: 1, Role: RoleStore}, OrderSubmittedPayload{OrderID: 42, TotalCents: 500000})
	assert.NoError(t, err)
	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, "42", env.CorrelationID)
	assert.Equal(t, 1, env.EventVersion)
	assert.JSONEq(t, `{"order_id":42,"store_id":0,"supplier_id":0,"item_count":0,"total_cents":500000,
		"delivery_fee_cents":0,"payment_method":"","delivery_option":""}`, string(env.Payload))
	assert.Equal(t, []byte("42"), PartitionKey(42))
}
