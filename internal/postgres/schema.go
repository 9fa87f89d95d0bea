package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// products is owned by the catalog service; it is created here only so a
// fresh database can run the order engine on its own.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id             BIGSERIAL PRIMARY KEY,
		supplier_id    BIGINT NOT NULL,
		sku            TEXT UNIQUE,
		name           TEXT NOT NULL,
		unit           TEXT NOT NULL DEFAULT '',
		price_cents    BIGINT NOT NULL CHECK (price_cents >= 0),
		stock_quantity INT NOT NULL DEFAULT 0,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id                 BIGSERIAL PRIMARY KEY,
		store_id           BIGINT NOT NULL,
		supplier_id        BIGINT NOT NULL,
		status             TEXT NOT NULL DEFAULT 'draft',
		total_cents        BIGINT NOT NULL DEFAULT 0,
		payment_method     TEXT NOT NULL DEFAULT '',
		payment_status     TEXT NOT NULL DEFAULT '',
		delivery_option    TEXT NOT NULL DEFAULT '',
		delivery_fee_cents BIGINT NOT NULL DEFAULT 0,
		shipping_address   TEXT NOT NULL DEFAULT '',
		notes              TEXT NOT NULL DEFAULT '',
		created_at         TIMESTAMPTZ NOT NULL,
		updated_at         TIMESTAMPTZ NOT NULL
	)`,
	// satu draft per pasangan store/supplier
	`CREATE UNIQUE INDEX IF NOT EXISTS orders_one_draft_per_pair
		ON orders(store_id, supplier_id) WHERE status = 'draft'`,
	`CREATE INDEX IF NOT EXISTS orders_store_idx ON orders(store_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS orders_supplier_idx ON orders(supplier_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id               BIGSERIAL PRIMARY KEY,
		order_id         BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id       BIGINT NOT NULL,
		quantity         INT NOT NULL CHECK (quantity >= 1),
		unit_price_cents BIGINT NOT NULL,
		subtotal_cents   BIGINT NOT NULL,
		UNIQUE (order_id, product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id         BIGSERIAL PRIMARY KEY,
		order_id   BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		sender_id  BIGINT NOT NULL,
		content    TEXT NOT NULL DEFAULT '',
		image_url  TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS messages_order_idx ON messages(order_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS ratings (
		id         BIGSERIAL PRIMARY KEY,
		order_id   BIGINT NOT NULL REFERENCES orders(id),
		rater_id   BIGINT NOT NULL,
		rated_id   BIGINT NOT NULL,
		score      INT NOT NULL CHECK (score BETWEEN 1 AND 5),
		comment    TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE (order_id, rater_id)
	)`,
	`CREATE INDEX IF NOT EXISTS ratings_rated_idx ON ratings(rated_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS order_audit_log (
		event_id    UUID PRIMARY KEY,
		event_type  TEXT NOT NULL,
		order_id    BIGINT NOT NULL,
		actor_id    BIGINT NOT NULL DEFAULT 0,
		actor_role  TEXT NOT NULL DEFAULT '',
		producer    TEXT NOT NULL,
		payload     JSONB NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS order_audit_log_order_idx ON order_audit_log(order_id, occurred_at)`,
}

// Migrate applies the schema idempotently.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i, err)
		}
	}
	return nil
}
