// Package analytics serves read-only reporting off the hot path. It never
// touches the live graph: distribution/top-risky/profile queries run against
// the durable sink, and rolling performance counters are fed a summary of
// each scored event after the fact.
package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Reader answers analytics queries against the durable sink's transactions
// table, following the teacher's admin reports handler: direct pool
// queries, no repository indirection.
type Reader struct {
	pool *pgxpool.Pool
}

// NewReader creates a Reader over the durable sink's connection pool.
func NewReader(pool *pgxpool.Pool) *Reader {
	return &Reader{pool: pool}
}

// Bucket is one range of a risk-score histogram.
type Bucket struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

var bucketRanges = []struct {
	label      string
	lower, upper float64
}{
	{"0.0-0.2", 0.0, 0.2},
	{"0.2-0.4", 0.2, 0.4},
	{"0.4-0.6", 0.4, 0.6},
	{"0.6-0.8", 0.6, 0.8},
	{"0.8-1.0", 0.8, 1.01},
}

// Distribution buckets every persisted transaction's risk score into five
// fixed-width ranges.
func (r *Reader) Distribution(ctx context.Context) ([]Bucket, error) {
	buckets := make([]Bucket, len(bucketRanges))
	for i, br := range bucketRanges {
		buckets[i].Label = br.label
		err := r.pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM transactions WHERE risk_score >= $1 AND risk_score < $2`,
			br.lower, br.upper,
		).Scan(&buckets[i].Count)
		if err != nil {
			return nil, err
		}
	}
	return buckets, nil
}

// RiskyUser summarizes one user for the top-risky-users report.
type RiskyUser struct {
	UserID       string  `json:"user_id"`
	MaxRiskScore float64 `json:"max_risk_score"`
	EventCount   int64   `json:"event_count"`
}

// TopRisky returns the limit users with the highest observed risk score.
func (r *Reader) TopRisky(ctx context.Context, limit int) ([]RiskyUser, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, MAX(risk_score) AS max_risk, COUNT(*) AS event_count
		FROM transactions
		GROUP BY user_id
		ORDER BY max_risk DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RiskyUser
	for rows.Next() {
		var u RiskyUser
		if err := rows.Scan(&u.UserID, &u.MaxRiskScore, &u.EventCount); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// UserProfile is a per-user rollup of every persisted transaction.
type UserProfile struct {
	UserID         string  `json:"user_id"`
	EventCount     int64   `json:"event_count"`
	TotalVolume    float64 `json:"total_volume"`
	DistinctDevices int64  `json:"distinct_devices"`
	DistinctIPs    int64   `json:"distinct_ips"`
	FlaggedCount   int64   `json:"flagged_count"`
}

// UserProfile aggregates every transaction persisted for userID.
func (r *Reader) UserProfile(ctx context.Context, userID string) (UserProfile, error) {
	profile := UserProfile{UserID: userID}
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(transaction_amount), 0),
			COUNT(DISTINCT device_id),
			COUNT(DISTINCT ip_address),
			COUNT(*) FILTER (WHERE risk_score >= 0.6)
		FROM transactions
		WHERE user_id = $1`, userID,
	).Scan(&profile.EventCount, &profile.TotalVolume, &profile.DistinctDevices, &profile.DistinctIPs, &profile.FlaggedCount)
	if err != nil {
		return UserProfile{}, err
	}
	return profile, nil
}

// EventSummary is the per-request data the ingest handler hands to
// RecordEvent, once scoring has already completed.
type EventSummary struct {
	Flagged          bool
	LatencyMS        float64
	PropagationDepth int
}

// Performance holds rolling, in-process counters fed directly by the
// ingest handler rather than re-derived from the sink — the same split the
// teacher draws between request-scoped metrics and durable reporting.
type Performance struct {
	mu sync.Mutex

	eventCount  int64
	flaggedCount int64
	latencySum  float64
	depthSum    int64
	startedAt   time.Time
}

// NewPerformance creates an empty rolling-performance tracker.
func NewPerformance() *Performance {
	return &Performance{startedAt: time.Now()}
}

// RecordEvent folds one scored event's summary into the rolling counters.
func (p *Performance) RecordEvent(s EventSummary) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.eventCount++
	if s.Flagged {
		p.flaggedCount++
	}
	p.latencySum += s.LatencyMS
	p.depthSum += int64(s.PropagationDepth)
}

// PerformanceSnapshot is the point-in-time view returned by the
// performance analytics endpoint.
type PerformanceSnapshot struct {
	EventCount          int64   `json:"event_count"`
	FlagRate            float64 `json:"flag_rate"`
	AverageLatencyMS    float64 `json:"average_latency_ms"`
	AveragePropagationDepth float64 `json:"average_propagation_depth"`
	UptimeSeconds       float64 `json:"uptime_seconds"`
}

// Snapshot computes the current rolling averages.
func (p *Performance) Snapshot() PerformanceSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := PerformanceSnapshot{
		EventCount:    p.eventCount,
		UptimeSeconds: time.Since(p.startedAt).Seconds(),
	}
	if p.eventCount > 0 {
		snap.FlagRate = float64(p.flaggedCount) / float64(p.eventCount)
		snap.AverageLatencyMS = p.latencySum / float64(p.eventCount)
		snap.AveragePropagationDepth = float64(p.depthSum) / float64(p.eventCount)
	}
	return snap
}
