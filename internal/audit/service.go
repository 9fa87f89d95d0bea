// Package audit consumes order lifecycle events and keeps a durable,
// append-only trail of them in order_audit_log.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	kafkax "github.com/ariefcatur/go-supplier-orders/internal/kafka"
	"github.com/ariefcatur/go-supplier-orders/internal/orders"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

// Entry is one row of the audit trail.
type Entry struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OrderID    int64           `json:"order_id"`
	ActorID    int64           `json:"actor_id,omitempty"`
	ActorRole  orders.Role     `json:"actor_role,omitempty"`
	Producer   string          `json:"producer"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Recorder persists entries. Recording the same event id twice must be a no-op.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Deduper is satisfied by *redisx.Deduper.
type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

var ErrMalformed = errors.New("malformed event")

var known = map[string]bool{
	orders.EventDraftCreated:         true,
	orders.EventDraftDiscarded:       true,
	orders.EventOrderSubmitted:       true,
	orders.EventOrderStatusChanged:   true,
	orders.EventPaymentStatusChanged: true,
	orders.EventMessagePosted:        true,
	orders.EventOrderRated:           true,
}

type Service struct {
	Log    Recorder
	Dedup  Deduper
	Logger *slog.Logger
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// HandleLifecycle is installed as the consumer handler. Returning nil commits
// the offset, so malformed and unknown events are logged and skipped rather
// than retried forever.
func (s *Service) HandleLifecycle(ctx context.Context, m kafkago.Message) error {
	// 1) decode envelope
	e, err := decode(m.Value)
	if err != nil {
		s.logger().Warn("audit: skipping event", "offset", m.Offset, "error", err)
		return nil
	}
	if !known[e.EventType] {
		s.logger().Debug("audit: ignoring event type", "event_type", e.EventType)
		return nil
	}

	// 2) dedup via Redis (pakai event_id). Redis hanya fast-path,
	// insert ke DB tetap idempotent.
	if s.Dedup != nil {
		seen, err := s.Dedup.Seen(ctx, e.EventID)
		if err != nil {
			s.logger().Warn("audit: dedup lookup failed", "event_id", e.EventID, "error", err)
		}
		if seen {
			return nil
		}
	}

	// 3) persist
	if err := s.Log.Record(ctx, e); err != nil {
		return fmt.Errorf("record %s: %w", e.EventID, err)
	}
	if s.Dedup != nil {
		if err := s.Dedup.Mark(ctx, e.EventID); err != nil {
			s.logger().Warn("audit: dedup mark failed", "event_id", e.EventID, "error", err)
		}
	}
	s.logger().Info("audit: recorded", "event_id", e.EventID, "event_type", e.EventType, "order_id", e.OrderID)
	return nil
}

func decode(b []byte) (Entry, error) {
	env, err := kafkax.DecodeEnvelope(b)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.EventID == "" || env.EventType == "" || env.OrderID <= 0 {
		return Entry{}, fmt.Errorf("%w: missing event_id, event_type or order_id", ErrMalformed)
	}
	// order_audit_log.event_id is a UUID column
	if _, err := uuid.Parse(env.EventID); err != nil {
		return Entry{}, fmt.Errorf("%w: event_id %q: %v", ErrMalformed, env.EventID, err)
	}
	payload := env.Payload
	if len(payload) == 0 || string(payload) == "null" {
		payload = json.RawMessage("{}")
	}
	return Entry{
		EventID:    env.EventID,
		EventType:  env.EventType,
		OrderID:    env.OrderID,
		ActorID:    env.ActorID,
		ActorRole:  env.ActorRole,
		Producer:   env.Producer,
		Payload:    payload,
		OccurredAt: env.OccurredAt,
	}, nil
}
