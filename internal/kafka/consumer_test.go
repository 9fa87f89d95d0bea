package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed []int64
	closed    bool
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.pending) > 0 {
		m := f.pending[0]
		f.pending = f.pending[1:]
		f.mu.Unlock()
		return m, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeReader) commits() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.committed...)
}

func testConsumer(r reader, workers int) *Consumer {
	c := newConsumer(r, workers, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.minBackoff = time.Millisecond
	c.maxBackoff = 5 * time.Millisecond
	return c
}

// run starts c in the background and returns a func that stops it and
// returns Start's result.
func run(t *testing.T, c *Consumer, h Handler) func() error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx, h) }()
	return func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("consumer did not stop")
			return nil
		}
	}
}

func TestFailedMessageIsRetriedBeforeLaterOffsets(t *testing.T) {
	r := &fakeReader{pending: []kafka.Message{
		{Partition: 0, Offset: 9},
		{Partition: 0, Offset: 10},
	}}

	var mu sync.Mutex
	var calls []int64
	failures := 2
	h := func(_ context.Context, m kafka.Message) error {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, m.Offset)
		if m.Offset == 9 && failures > 0 {
			failures--
			return errors.New("db down")
		}
		return nil
	}

	stop := run(t, testConsumer(r, 4), h)
	assert.Eventually(t, func() bool { return len(r.commits()) == 2 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, stop())

	assert.Equal(t, []int64{9, 10}, r.commits())
	mu.Lock()
	assert.Equal(t, []int64{9, 9, 9, 10}, calls)
	mu.Unlock()
	assert.True(t, r.closed)
}

func TestNothingCommittedPastAFailingMessage(t *testing.T) {
	r := &fakeReader{pending: []kafka.Message{
		{Partition: 3, Offset: 9},
		{Partition: 3, Offset: 10},
	}}

	var mu sync.Mutex
	attempts := 0
	seen10 := false
	h := func(_ context.Context, m kafka.Message) error {
		mu.Lock()
		defer mu.Unlock()
		if m.Offset == 10 {
			seen10 = true
			return nil
		}
		attempts++
		return errors.New("db down")
	}

	stop := run(t, testConsumer(r, 2), h)
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return attempts >= 3
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, stop())

	assert.Empty(t, r.commits())
	mu.Lock()
	assert.False(t, seen10)
	mu.Unlock()
}

func TestPartitionsAreHandledIndependently(t *testing.T) {
	r := &fakeReader{pending: []kafka.Message{
		{Partition: 0, Offset: 1},
		{Partition: 1, Offset: 1},
		{Partition: 1, Offset: 2},
	}}
	// partition 0 never succeeds; partition 1 still drains on its own worker
	h := func(_ context.Context, m kafka.Message) error {
		if m.Partition == 0 {
			return errors.New("poison")
		}
		return nil
	}

	stop := run(t, testConsumer(r, 2), h)
	assert.Eventually(t, func() bool { return len(r.commits()) == 2 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, stop())
	assert.Equal(t, []int64{1, 2}, r.commits())
}

func TestStartReturnsReaderError(t *testing.T) {
	boom := errors.New("broker gone")
	c := testConsumer(errReader{err: boom}, 1)
	assert.ErrorIs(t, c.Start(context.Background(), func(context.Context, kafka.Message) error { return nil }), boom)
}

type errReader struct{ err error }

func (e errReader) FetchMessage(context.Context) (kafka.Message, error) { return kafka.Message{}, e.err }
func (e errReader) CommitMessages(context.Context, ...kafka.Message) error { return nil }
func (e errReader) Close() error { return nil }
