package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper remembers processed event ids per consuming service.
type Deduper struct {
	R       *redis.Client
	Service string
	TTL     time.Duration
}

func (d *Deduper) key(eventID string) string {
	return fmt.Sprintf(KeyDedup, d.Service, eventID)
}

func (d *Deduper) Seen(ctx context.Context, eventID string) (bool, error) {
	return Exists(ctx, d.R, d.key(eventID))
}

func (d *Deduper) Mark(ctx context.Context, eventID string) error {
	ttl := d.TTL
	if ttl <= 0 {
		ttl = TTLDedup
	}
	_, err := Claim(ctx, d.R, d.key(eventID), ttl)
	return err
}
