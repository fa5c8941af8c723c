package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ============================================
// fakeReader: serves a fixed list, then blocks until ctx is done
// ============================================

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
	closed    bool
	fetchErr  error
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if r.fetchErr != nil {
		r.mu.Unlock()
		return kafka.Message{}, r.fetchErr
	}
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func TestConsumer_CommitsOnlyHandledMessages(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{{Offset: 1}, {Offset: 2}, {Offset: 3}}}
	c := newConsumer(r, 1, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	seen := make(chan int64, 3)
	done := make(chan error, 1)
	go func() {
		done <- c.Start(ctx, func(_ context.Context, m kafka.Message) error {
			defer func() { seen <- m.Offset }()
			if m.Offset == 2 {
				return errors.New("bad message")
			}
			return nil
		})
	}()

	for i := 0; i < 3; i++ {
		<-seen
	}
	cancel()
	require.NoError(t, <-done)

	r.mu.Lock()
	defer r.mu.Unlock()
	assert.ElementsMatch(t, []int64{1, 3}, r.committed)
	assert.True(t, r.closed)
}

func TestConsumer_ReaderErrorStops(t *testing.T) {
	r := &fakeReader{fetchErr: errors.New("broker gone")}
	c := newConsumer(r, 2, zap.NewNop())

	err := c.Start(context.Background(), func(context.Context, kafka.Message) error { return nil })

	assert.EqualError(t, err, "broker gone")
	assert.True(t, r.closed)
}
