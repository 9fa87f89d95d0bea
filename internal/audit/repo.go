package audit

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-supplier-orders/internal/orders"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PGLog struct {
	DB *pgxpool.Pool
}

func (l *PGLog) Record(ctx context.Context, e Entry) error {
	_, err := l.DB.Exec(ctx, `
		INSERT INTO order_audit_log(event_id, event_type, order_id, actor_id, actor_role, producer, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (event_id) DO NOTHING`,
		e.EventID, e.EventType, e.OrderID, e.ActorID, string(e.ActorRole), e.Producer, e.Payload, e.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// History returns the trail of one order in the order events happened.
func (l *PGLog) History(ctx context.Context, orderID int64) ([]Entry, error) {
	rows, err := l.DB.Query(ctx, `
		SELECT event_id::text, event_type, order_id, actor_id, actor_role, producer, payload, occurred_at
		FROM order_audit_log WHERE order_id=$1 ORDER BY occurred_at, recorded_at`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var (
			e    Entry
			role string
		)
		if err := rows.Scan(&e.EventID, &e.EventType, &e.OrderID, &e.ActorID, &role, &e.Producer, &e.Payload, &e.OccurredAt); err != nil {
			return nil, err
		}
		e.ActorRole = orders.Role(role)
		out = append(out, e)
	}
	return out, rows.Err()
}
