// Package engine implements RiskMesh's central orchestrator: the single
// path every ingested transaction travels from validation to scored
// response, in the canonical ordering the specification fixes.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/riskmesh/riskmesh/internal/cache"
	"github.com/riskmesh/riskmesh/internal/domain"
	"github.com/riskmesh/riskmesh/internal/graph"
	"github.com/riskmesh/riskmesh/internal/graph/cluster"
	"github.com/riskmesh/riskmesh/internal/graph/decay"
	"github.com/riskmesh/riskmesh/internal/graph/propagate"
	"github.com/riskmesh/riskmesh/internal/metrics"
	"github.com/riskmesh/riskmesh/internal/risk/baserules"
	"github.com/riskmesh/riskmesh/internal/risk/explain"
	"github.com/riskmesh/riskmesh/internal/sink"
)

// cacheInvalidateDelta is the absolute risk change that forces a cached
// user entry to be dropped rather than served stale.
const cacheInvalidateDelta = 0.05

// Config tunes every stage the engine drives.
type Config struct {
	Propagation  propagate.Params
	Cluster      cluster.Params
	DecayFactor  float64
	EventDeadline time.Duration
}

// DefaultConfig matches the specification's defaults end to end.
func DefaultConfig() Config {
	return Config{
		Propagation:   propagate.DefaultParams(),
		Cluster:       cluster.DefaultParams(),
		DecayFactor:   decay.DefaultFactor,
		EventDeadline: 200 * time.Millisecond,
	}
}

// Engine wires the graph, cache, durable sink, and metrics into the
// canonical scoring pipeline.
type Engine struct {
	// mu serializes steps 2-7 (runUnderLock) across concurrent events.
	mu sync.Mutex

	graph  *graph.Store
	cache  cache.Cache
	sink   *sink.Pool
	metrics *metrics.Metrics
	logger *slog.Logger
	cfg    Config
}

// New creates a RiskEngine.
func New(g *graph.Store, c cache.Cache, s *sink.Pool, m *metrics.Metrics, logger *slog.Logger, cfg Config) *Engine {
	return &Engine{graph: g, cache: c, sink: s, metrics: m, logger: logger, cfg: cfg}
}

// Score runs one transaction event through the canonical 11-step pipeline
// and returns its scoring response. principal identifies the caller for
// cache partitioning; it is never written to the graph.
func (e *Engine) Score(ctx context.Context, principal string, event domain.TransactionEvent) (domain.ScoreResponse, error) {
	start := time.Now()

	if err := event.Validate(); err != nil {
		return domain.ScoreResponse{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.EventDeadline)
	defer cancel()

	fingerprint := event.Fingerprint()
	cacheKey := cache.PropagationKey(principal + ":" + fingerprint)

	if cached, ok := e.cacheGet(ctx, cacheKey); ok {
		e.metrics.RecordRequest(time.Since(start), cached.Flagged())
		cached.Cached = true
		cached.TotalLatencyMS = msSince(start)
		return cached, nil
	}

	now := time.Now()

	locked := e.runUnderLock(ctx, event, now)
	baseResult, propResult, clusterResult, depthTruncated := locked.base, locked.propagation, locked.cluster, locked.depthTruncated

	final := domain.Clamp01(propResult.UpdatedRisk[event.UserID] + clusterResult.Boost[event.UserID])

	breakdown := domain.CalculationBreakdown{
		BaseRisk:         baseResult.BaseRisk,
		AfterPropagation: propResult.UpdatedRisk[event.UserID],
		AfterTimeDecay:   locked.afterTimeDecay,
		ClusterBoost:     clusterResult.Boost[event.UserID],
		Final:            final,
	}

	_, ringMember := clusterMembership(clusterResult.Rings, event.UserID)
	_, denseMember := clusterMembershipDense(clusterResult.DenseSubgraphs, event.UserID)
	starHub := isStarHub(clusterResult.StarPatterns, event.UserID)

	explanation := explain.Assemble(explain.Input{
		Breakdown:   breakdown,
		BaseFlags:   baseResult.Flags,
		RingMember:  ringMember,
		DenseMember: denseMember,
		StarHub:     starHub,
	})

	response := domain.ScoreResponse{
		TransactionID:    uuid.NewString(),
		RiskScore:        final,
		BaseRisk:         baseResult.BaseRisk,
		ClusteringBoost:  clusterResult.Boost[event.UserID],
		PropagationDepth: propResult.DeepestDepth,
		DepthTruncated:   depthTruncated,
		Timestamp:        now,
		Cached:           false,
		Explanation:      explanation,
		ClusteringInfo: domain.ClusteringInfo{
			Rings:          clusterResult.Rings,
			DenseSubgraphs: clusterResult.DenseSubgraphs,
			StarPatterns:   clusterResult.StarPatterns,
		},
	}

	e.sink.Enqueue(domain.PersistedTransaction{
		EventID:           response.TransactionID,
		UserID:            event.UserID,
		DeviceID:          event.DeviceID,
		IPAddress:         event.IPAddress,
		MerchantID:        event.MerchantID,
		CardID:            event.CardID,
		TransactionAmount: event.TransactionAmount,
		RiskScore:         final,
		PropagationDepth:  propResult.DeepestDepth,
		Timestamp:         now,
	})

	e.metrics.RecordRequest(time.Since(start), response.Flagged())
	e.metrics.RecordPropagation(locked.propElapsed, depthTruncated)

	e.maybeInvalidateUser(ctx, event.UserID, breakdown.AfterPropagation, final, ringMember)
	e.cacheSet(ctx, cacheKey, response)

	response.TotalLatencyMS = msSince(start)
	return response, nil
}

// lockedResult bundles the outputs of the CPU-bound steps 2-7 so
// runUnderLock returns a single value instead of an unwieldy tuple.
type lockedResult struct {
	base           baserules.Result
	propagation    propagate.Result
	cluster        cluster.Result
	depthTruncated bool
	propElapsed    time.Duration
	afterTimeDecay float64
}

// runUnderLock performs steps 2-7: node/edge upserts, base-risk signal
// resolution, propagation, and clustering, holding e.mu for the whole
// section so concurrent events never interleave their graph mutations.
// Every graph mutation in this section is CPU-bound; nothing here ever
// suspends on I/O.
func (e *Engine) runUnderLock(ctx context.Context, event domain.TransactionEvent, now time.Time) lockedResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	afterTimeDecay := e.decayAndTouch(event, now)

	newDevice := !e.graph.HasEdge(event.UserID, domain.NodeUser, event.DeviceID, domain.NodeDevice)
	newIP := !e.graph.HasEdge(event.UserID, domain.NodeUser, event.IPAddress, domain.NodeIP)
	newMerchant := !e.graph.HasEdge(event.DeviceID, domain.NodeDevice, event.MerchantID, domain.NodeMerchant)

	baseResult := baserules.Evaluate(baserules.Signals{
		TransactionAmount: event.TransactionAmount,
		NewDevice:         newDevice,
		NewIP:             newIP,
		NewMerchant:       newMerchant,
	})

	// Propagation runs before this event's own edges are upserted: the
	// edges this transaction is about to create must not let it flood
	// risk into nodes it only just connected to. A first-ever event on
	// brand new entities has no prior neighbors and so never propagates
	// past the source itself.
	propStart := time.Now()
	propResult := propagate.Run(ctx, e.graph, event.UserID, domain.NodeUser, baseResult.BaseRisk, e.cfg.Propagation, now)
	propElapsed := time.Since(propStart)

	e.graph.UpsertEdge(event.UserID, domain.NodeUser, event.DeviceID, domain.NodeDevice, 1.0, now)
	e.graph.UpsertEdge(event.UserID, domain.NodeUser, event.IPAddress, domain.NodeIP, 1.0, now)
	e.graph.UpsertEdge(event.UserID, domain.NodeUser, event.MerchantID, domain.NodeMerchant, 1.0, now)
	e.graph.UpsertEdge(event.DeviceID, domain.NodeDevice, event.MerchantID, domain.NodeMerchant, 1.0, now)
	e.graph.UpsertEdge(event.DeviceID, domain.NodeDevice, event.IPAddress, domain.NodeIP, 1.0, now)
	if event.HasCard() {
		e.graph.UpsertEdge(event.UserID, domain.NodeUser, event.CardID, domain.NodeCard, 1.0, now)
	}

	seeds := []cluster.Ref{
		{ID: event.UserID, Type: domain.NodeUser},
		{ID: event.DeviceID, Type: domain.NodeDevice},
		{ID: event.IPAddress, Type: domain.NodeIP},
		{ID: event.MerchantID, Type: domain.NodeMerchant},
	}
	if event.HasCard() {
		seeds = append(seeds, cluster.Ref{ID: event.CardID, Type: domain.NodeCard})
	}
	clusterResult := cluster.Detect(e.graph, seeds, e.cfg.Cluster)

	depthTruncated := propResult.Truncated

	for id, boost := range clusterResult.Boost {
		ref, ok := clusterResult.Refs[id]
		if !ok {
			continue
		}
		node, ok := e.graph.GetNode(ref.ID, ref.Type)
		if !ok {
			continue
		}
		e.graph.SetRisk(ref.ID, ref.Type, domain.Clamp01(node.Risk+boost), now)
	}

	return lockedResult{
		base:           baseResult,
		propagation:    propResult,
		cluster:        clusterResult,
		depthTruncated: depthTruncated,
		propElapsed:    propElapsed,
		afterTimeDecay: afterTimeDecay,
	}
}

// decayAndTouch upserts the canonical nodes and applies lazy time decay to
// any that already existed. It returns the user node's post-decay risk,
// the value the explanation breakdown reports as after_time_decay.
func (e *Engine) decayAndTouch(event domain.TransactionEvent, now time.Time) float64 {
	userDecayed := e.touchNode(event.UserID, domain.NodeUser, now)
	e.touchNode(event.DeviceID, domain.NodeDevice, now)
	e.touchNode(event.IPAddress, domain.NodeIP, now)
	e.touchNode(event.MerchantID, domain.NodeMerchant, now)
	if event.HasCard() {
		e.touchNode(event.CardID, domain.NodeCard, now)
	}
	return userDecayed
}

// touchNode applies lazy time decay to an existing node and returns the
// decayed risk, or 0 for a node seen here for the first time.
func (e *Engine) touchNode(id string, t domain.NodeType, now time.Time) float64 {
	decayed := 0.0
	if existing, ok := e.graph.GetNode(id, t); ok {
		decayed = decay.Apply(existing.Risk, existing.LastSeen, now, e.cfg.DecayFactor)
		e.graph.SetRisk(id, t, decayed, now)
	}
	e.graph.UpsertNode(id, t, 0, now)
	return decayed
}

func (e *Engine) cacheGet(ctx context.Context, key string) (domain.ScoreResponse, bool) {
	subCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()

	raw, ok := e.cache.Get(subCtx, key)
	if !ok {
		return domain.ScoreResponse{}, false
	}

	resp, err := decodeResponse(raw)
	if err != nil {
		e.logger.Warn("cache payload decode failed", "error", err)
		return domain.ScoreResponse{}, false
	}
	return resp, true
}

func (e *Engine) cacheSet(ctx context.Context, key string, resp domain.ScoreResponse) {
	encoded, err := encodeResponse(resp)
	if err != nil {
		e.logger.Warn("cache payload encode failed", "error", err)
		return
	}
	e.cache.Set(ctx, key, encoded, cache.PropagationTTL)
}

func (e *Engine) maybeInvalidateUser(ctx context.Context, userID string, before, after float64, joinedRing bool) {
	if joinedRing || absDiff(before, after) > cacheInvalidateDelta {
		e.cache.Invalidate(ctx, cache.UserRiskKey(userID))
	}
}

// EntityRisk returns an entity's current risk, serving it from the
// user_risk or entity cache keyspace when a prior lookup left it warm and
// falling back to (and repopulating from) the graph otherwise. This is the
// lookup maybeInvalidateUser's cache eviction exists to keep honest: a
// stale entry evicted there is simply repopulated here on next read.
func (e *Engine) EntityRisk(ctx context.Context, id string, t domain.NodeType) (float64, bool) {
	key := cacheKeyFor(id, t)

	if raw, ok := e.cache.Get(ctx, key); ok {
		if risk, ok := decodeRisk(raw); ok {
			return risk, true
		}
	}

	node, ok := e.graph.GetNode(id, t)
	if !ok {
		return 0, false
	}

	e.cache.Set(ctx, key, encodeRisk(node.Risk), cacheTTLFor(t))
	return node.Risk, true
}

// cacheKeyFor and cacheTTLFor route a node to its keyspace: users get the
// dedicated user_risk keyspace, every other entity type shares entity.
func cacheKeyFor(id string, t domain.NodeType) string {
	if t == domain.NodeUser {
		return cache.UserRiskKey(id)
	}
	return cache.EntityKey(string(t), id)
}

func cacheTTLFor(t domain.NodeType) time.Duration {
	if t == domain.NodeUser {
		return cache.UserRiskTTL
	}
	return cache.EntityTTL
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

func clusterMembership(rings []domain.RingInfo, id string) (domain.RingInfo, bool) {
	for _, r := range rings {
		for _, n := range r.Nodes {
			if n == id {
				return r, true
			}
		}
	}
	return domain.RingInfo{}, false
}

func clusterMembershipDense(subgraphs []domain.DenseSubgraphInfo, id string) (domain.DenseSubgraphInfo, bool) {
	for _, d := range subgraphs {
		for _, n := range d.Nodes {
			if n == id {
				return d, true
			}
		}
	}
	return domain.DenseSubgraphInfo{}, false
}

func isStarHub(stars []domain.StarInfo, id string) bool {
	for _, s := range stars {
		if s.Hub == id {
			return true
		}
	}
	return false
}
