package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-supplier-orders/internal/orders"
	"github.com/redis/go-redis/v9"
)

// CachedStatus is the slice of an order the status poller needs. The parties
// are kept so access can be checked without touching Postgres.
type CachedStatus struct {
	OrderID       int64                `json:"order_id"`
	StoreID       int64                `json:"store_id"`
	SupplierID    int64                `json:"supplier_id"`
	Status        orders.Status        `json:"status"`
	PaymentStatus orders.PaymentStatus `json:"payment_status,omitempty"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

func StatusOf(o *orders.Order) CachedStatus {
	return CachedStatus{
		OrderID:       o.ID,
		StoreID:       o.StoreID,
		SupplierID:    o.SupplierID,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		UpdatedAt:     o.UpdatedAt,
	}
}

// Order rebuilds the header fields the access and messaging checks read.
func (c CachedStatus) Order() *orders.Order {
	return &orders.Order{
		ID:            c.OrderID,
		StoreID:       c.StoreID,
		SupplierID:    c.SupplierID,
		Status:        c.Status,
		PaymentStatus: c.PaymentStatus,
		UpdatedAt:     c.UpdatedAt,
	}
}

type StatusCache struct {
	R   *redis.Client
	TTL time.Duration
}

func (c *StatusCache) ttl() time.Duration {
	if c.TTL > 0 {
		return c.TTL
	}
	return TTLStatusCache
}

// Get returns ok=false on a cache miss.
func (c *StatusCache) Get(ctx context.Context, orderID int64) (CachedStatus, bool, error) {
	s, err := c.R.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return CachedStatus{}, false, nil
	}
	if err != nil {
		return CachedStatus{}, false, err
	}
	var cs CachedStatus
	if err := json.Unmarshal(s, &cs); err != nil {
		return CachedStatus{}, false, err
	}
	return cs, true, nil
}

func (c *StatusCache) Set(ctx context.Context, cs CachedStatus) error {
	b, err := json.Marshal(cs)
	if err != nil {
		return err
	}
	return c.R.Set(ctx, fmt.Sprintf(KeyOrderStatus, cs.OrderID), b, c.ttl()).Err()
}

func (c *StatusCache) Invalidate(ctx context.Context, orderID int64) error {
	return c.R.Del(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Err()
}
