// Package sink implements RiskMesh's durable transaction sink: an
// append-only write of every scored event, performed off the hot path by
// a bounded worker pool so the engine never blocks on a write
// acknowledgement.
package sink

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/riskmesh/riskmesh/internal/domain"
	"github.com/riskmesh/riskmesh/internal/guard"
)

// circuitKey is the single breaker key the sink's writer is tracked under.
// There is only ever one durable writer per pool, so a single key is enough
// to trip the breaker when the writer itself (not an individual write) is
// unhealthy.
const circuitKey = "sink_writer"

// Writer is the durable persistence surface the pool writes through.
// PostgresSink below is the production implementation.
type Writer interface {
	Insert(ctx context.Context, tx domain.PersistedTransaction) error
}

// job is one queued write plus the number of attempts already made.
type job struct {
	tx       domain.PersistedTransaction
	attempts int
}

// Pool is a bounded worker pool that drains writes to a Writer with
// exponential backoff, and republishes to the dead-letter producer once a
// write exhausts its retry budget. Enqueue never blocks the caller — a
// full queue increments the dead-letter counter and drops the write.
type Pool struct {
	writer     Writer
	deadLetter *DeadLetterProducer
	logger     *slog.Logger
	circuit    *guard.CircuitBreaker

	queue chan job

	maxAttempts int
	baseBackoff time.Duration

	deadLettered atomic.Int64
	written      atomic.Int64
	shortCircuited atomic.Int64
}

// PoolConfig configures Pool.
type PoolConfig struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	BaseBackoff time.Duration

	// CircuitFailThreshold is the number of consecutive write failures that
	// trips the breaker and starts dead-lettering writes without touching
	// the writer at all.
	CircuitFailThreshold int
	CircuitResetTimeout  time.Duration
}

// DefaultPoolConfig matches the specification's bounded-queue, bounded-retry design.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Workers:              4,
		QueueSize:            1024,
		MaxAttempts:          5,
		BaseBackoff:          50 * time.Millisecond,
		CircuitFailThreshold: 10,
		CircuitResetTimeout:  30 * time.Second,
	}
}

// NewPool creates and starts a Pool's worker goroutines. Workers stop when
// ctx is cancelled.
func NewPool(ctx context.Context, writer Writer, deadLetter *DeadLetterProducer, logger *slog.Logger, cfg PoolConfig) *Pool {
	p := &Pool{
		writer:      writer,
		deadLetter:  deadLetter,
		logger:      logger,
		circuit:     guard.NewCircuitBreaker(cfg.CircuitFailThreshold, cfg.CircuitResetTimeout),
		queue:       make(chan job, cfg.QueueSize),
		maxAttempts: cfg.MaxAttempts,
		baseBackoff: cfg.BaseBackoff,
	}

	for i := 0; i < cfg.Workers; i++ {
		go p.worker(ctx)
	}

	return p
}

// Enqueue submits tx for durable persistence, fire-and-forget. If the
// queue is full the write is immediately dead-lettered rather than
// blocking the caller.
func (p *Pool) Enqueue(tx domain.PersistedTransaction) {
	select {
	case p.queue <- job{tx: tx}:
	default:
		p.dropToDeadLetter(context.Background(), job{tx: tx})
	}
}

func (p *Pool) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-p.queue:
			p.attempt(ctx, j)
		}
	}
}

func (p *Pool) attempt(ctx context.Context, j job) {
	if gr := p.circuit.Check(ctx, circuitKey); !gr.Allowed {
		p.shortCircuited.Add(1)
		p.dropToDeadLetter(ctx, j)
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	err := p.writer.Insert(writeCtx, j.tx)
	cancel()

	if err == nil {
		p.circuit.RecordSuccess(circuitKey)
		p.written.Add(1)
		return
	}

	p.circuit.RecordFailure(circuitKey)

	j.attempts++
	if j.attempts >= p.maxAttempts {
		p.dropToDeadLetter(ctx, j)
		return
	}

	backoff := p.baseBackoff * time.Duration(1<<uint(j.attempts))
	p.logger.Warn("sink write failed, retrying", "attempt", j.attempts, "backoff", backoff, "error", err)

	time.AfterFunc(backoff, func() {
		select {
		case p.queue <- j:
		default:
			p.dropToDeadLetter(context.Background(), j)
		}
	})
}

func (p *Pool) dropToDeadLetter(ctx context.Context, j job) {
	p.deadLettered.Add(1)
	p.logger.Error("sink write exhausted retries, dead-lettering", "event", j.tx.EventID)
	if p.deadLetter != nil {
		if err := p.deadLetter.Publish(ctx, j.tx.EventID, j.tx); err != nil {
			p.logger.Error("dead-letter publish failed", "event", j.tx.EventID, "error", err)
		}
	}
}

// DeadLetterCount returns the number of writes that were ultimately dropped.
func (p *Pool) DeadLetterCount() int64 { return p.deadLettered.Load() }

// WrittenCount returns the number of writes successfully persisted.
func (p *Pool) WrittenCount() int64 { return p.written.Load() }

// ShortCircuitedCount returns the number of writes skipped outright because
// the writer's circuit breaker was open.
func (p *Pool) ShortCircuitedCount() int64 { return p.shortCircuited.Load() }
