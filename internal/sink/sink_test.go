package sink

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskmesh/riskmesh/internal/domain"
)

type fakeWriter struct {
	failCount atomic.Int64
	inserted  chan domain.PersistedTransaction
}

func newFakeWriter(fails int64) *fakeWriter {
	w := &fakeWriter{inserted: make(chan domain.PersistedTransaction, 16)}
	w.failCount.Store(fails)
	return w
}

func (w *fakeWriter) Insert(_ context.Context, tx domain.PersistedTransaction) error {
	if w.failCount.Load() > 0 {
		w.failCount.Add(-1)
		return errors.New("transient failure")
	}
	w.inserted <- tx
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestPool_SuccessfulWriteIsCounted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := newFakeWriter(0)
	dl := NewDeadLetterProducer("", false, testLogger())
	p := NewPool(ctx, w, dl, testLogger(), PoolConfig{Workers: 1, QueueSize: 8, MaxAttempts: 3, BaseBackoff: time.Millisecond})

	p.Enqueue(domain.PersistedTransaction{EventID: "e1"})

	select {
	case tx := <-w.inserted:
		assert.Equal(t, "e1", tx.EventID)
	case <-time.After(time.Second):
		t.Fatal("write never landed")
	}
	assert.Eventually(t, func() bool { return p.WrittenCount() == 1 }, time.Second, time.Millisecond)
}

func TestPool_RetriesThenSucceeds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := newFakeWriter(2)
	dl := NewDeadLetterProducer("", false, testLogger())
	p := NewPool(ctx, w, dl, testLogger(), PoolConfig{Workers: 1, QueueSize: 8, MaxAttempts: 5, BaseBackoff: time.Millisecond})

	p.Enqueue(domain.PersistedTransaction{EventID: "e2"})

	select {
	case tx := <-w.inserted:
		assert.Equal(t, "e2", tx.EventID)
	case <-time.After(2 * time.Second):
		t.Fatal("write never succeeded after retries")
	}
}

func TestPool_ExhaustsRetriesThenDeadLetters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := newFakeWriter(100)
	dl := NewDeadLetterProducer("", false, testLogger())
	p := NewPool(ctx, w, dl, testLogger(), PoolConfig{Workers: 1, QueueSize: 8, MaxAttempts: 2, BaseBackoff: time.Millisecond})

	p.Enqueue(domain.PersistedTransaction{EventID: "e3"})

	require.Eventually(t, func() bool { return p.DeadLetterCount() == 1 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, int64(0), p.WrittenCount())
}

func TestPool_FullQueueDropsToDeadLetterWithoutBlocking(t *testing.T) {
	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := newFakeWriter(0)
	dl := NewDeadLetterProducer("", false, testLogger())
	// Zero workers: nothing ever drains the queue, so the second enqueue
	// must fall through to the full-queue branch rather than blocking.
	p := &Pool{writer: w, deadLetter: dl, logger: testLogger(), queue: make(chan job, 1), maxAttempts: 3, baseBackoff: time.Millisecond}

	p.Enqueue(domain.PersistedTransaction{EventID: "first"})
	p.Enqueue(domain.PersistedTransaction{EventID: "second"})

	assert.Equal(t, int64(1), p.DeadLetterCount())
}

func TestPool_OpenCircuitShortCircuitsWithoutCallingWriter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := newFakeWriter(100)
	dl := NewDeadLetterProducer("", false, testLogger())
	p := NewPool(ctx, w, dl, testLogger(), PoolConfig{
		Workers: 1, QueueSize: 8, MaxAttempts: 1, BaseBackoff: time.Millisecond,
		CircuitFailThreshold: 1, CircuitResetTimeout: time.Minute,
	})

	p.Enqueue(domain.PersistedTransaction{EventID: "e4"})
	require.Eventually(t, func() bool { return p.DeadLetterCount() == 1 }, 2*time.Second, time.Millisecond)

	p.Enqueue(domain.PersistedTransaction{EventID: "e5"})
	require.Eventually(t, func() bool { return p.ShortCircuitedCount() == 1 }, 2*time.Second, time.Millisecond)
}

func TestDeadLetterProducer_DisabledPublishIsNoop(t *testing.T) {
	dl := NewDeadLetterProducer("", false, testLogger())
	err := dl.Publish(context.Background(), "k", map[string]string{"a": "b"})
	assert.NoError(t, err)
	assert.NoError(t, dl.Close())
}
