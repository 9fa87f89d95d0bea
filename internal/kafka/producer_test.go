package kafka

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishRespectsContextWhenInboxFull(t *testing.T) {
	p := NewProducer([]string{"127.0.0.1:1"}, "order.lifecycle", 1, slog.Default())

	require.NoError(t, p.Publish(context.Background(), []byte("1"), []byte("a")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Publish(ctx, []byte("1"), []byte("b"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCloseWithoutMessagesShutsDown(t *testing.T) {
	p := NewProducer([]string{"127.0.0.1:1"}, "order.lifecycle", 4, slog.Default())
	p.Start(context.Background())
	p.Close()

	done := make(chan struct{})
	go func() {
		p.WaitClosed()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("producer did not shut down")
	}
}

func TestUnwrapPayload(t *testing.T) {
	type payload struct {
		OrderID int64 `json:"order_id"`
	}
	p, err := UnwrapPayload[payload](MustMarshal(payload{OrderID: 7}))
	require.NoError(t, err)
	assert.EqualValues(t, 7, p.OrderID)

	_, err = UnwrapPayload[payload]([]byte(`[`))
	assert.ErrorContains(t, err, "decode payload")
}

func TestDecodeEnvelope(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"event_id":"e1","event_type":"OrderRated","event_version":1,"order_id":3,"payload":{}}`))
	require.NoError(t, err)
	assert.EqualValues(t, 3, env.OrderID)

	_, err = DecodeEnvelope([]byte(`{"event_version":2}`))
	assert.ErrorContains(t, err, "unsupported event version")
	_, err = DecodeEnvelope([]byte(`{`))
	assert.Error(t, err)
}
