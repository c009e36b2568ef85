package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/riskmesh/riskmesh/internal/config"
	"github.com/riskmesh/riskmesh/internal/domain"
)

// NewPostgresPool creates a pgx connection pool tuned for the sink's
// write-heavy, low-fanout access pattern.
func NewPostgresPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	poolCfg.MaxConns = 20
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// PostgresSink is the durable-sink Writer backed by a pgx pool. One row
// per scored transaction, append-only, no graph state.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink wraps an existing pool.
func NewPostgresSink(pool *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{pool: pool}
}

const insertTransactionSQL = `
INSERT INTO transactions (
	event_id, user_id, device_id, ip_address, merchant_id, card_id,
	transaction_amount, risk_score, propagation_depth, occurred_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (event_id) DO NOTHING`

// Insert persists one scored transaction. Idempotent on event_id so a
// retried write after a transient failure never double-inserts.
func (s *PostgresSink) Insert(ctx context.Context, tx domain.PersistedTransaction) error {
	_, err := s.pool.Exec(ctx, insertTransactionSQL,
		tx.EventID, tx.UserID, tx.DeviceID, tx.IPAddress, tx.MerchantID, tx.CardID,
		tx.TransactionAmount, tx.RiskScore, tx.PropagationDepth, tx.Timestamp,
	)
	return err
}

// HealthCheck pings the database and returns an error if unreachable. The
// liveness endpoint does not call it.
func HealthCheck(ctx context.Context, pool *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return pool.Ping(ctx)
}
