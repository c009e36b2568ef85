// Package graph implements RiskMesh's in-memory entity-relationship graph:
// lazily created nodes and directed weighted edges, with an incident-edge
// index per direction so neighbor queries stay O(degree) instead of O(E).
package graph

import (
	"sync"
	"time"

	"github.com/riskmesh/riskmesh/internal/domain"
)

// key is the internal node identity — (type, id), matching the data model's
// identity rule so two different entity types never collide on a shared id.
func key(t domain.NodeType, id string) string {
	return string(t) + ":" + id
}

type edgeRecord struct {
	srcKey, dstKey string
	weight         float64
	interactions   int64
	firstSeen      time.Time
	lastSeen       time.Time
}

func (e *edgeRecord) toDomain(srcID, dstID string) domain.Edge {
	return domain.Edge{
		Src:              srcID,
		Dst:              dstID,
		Weight:           e.weight,
		InteractionCount: e.interactions,
		FirstSeen:        e.firstSeen,
		LastSeen:         e.lastSeen,
	}
}

type nodeRecord struct {
	id               string
	typ              domain.NodeType
	risk             float64
	lastSeen         time.Time
	interactions     int64
}

func (n *nodeRecord) toDomain() domain.Node {
	return domain.Node{
		ID:               n.id,
		Type:             n.typ,
		Risk:             n.risk,
		LastSeen:         n.lastSeen,
		InteractionCount: n.interactions,
	}
}

// Store is RiskMesh's graph. A single RWMutex guards all mutation; reads
// take the shared lock. Mutation is always CPU-bound — no method here ever
// suspends while the lock is held.
type Store struct {
	mu sync.RWMutex

	nodes map[string]*nodeRecord
	// outEdges[srcKey][dstKey] and inEdges[dstKey][srcKey] both point at the
	// same edgeRecord so either direction updates the same weight/counters.
	outEdges map[string]map[string]*edgeRecord
	inEdges  map[string]map[string]*edgeRecord
}

// New creates an empty graph store.
func New() *Store {
	return &Store{
		nodes:    make(map[string]*nodeRecord),
		outEdges: make(map[string]map[string]*edgeRecord),
		inEdges:  make(map[string]map[string]*edgeRecord),
	}
}

// UpsertNode creates the node if absent, or refreshes last_seen and bumps
// the interaction counter if present. A lower default risk never overwrites
// a higher existing risk.
func (s *Store) UpsertNode(id string, t domain.NodeType, initialRisk float64, now time.Time) domain.Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(t, id)
	n, ok := s.nodes[k]
	if !ok {
		n = &nodeRecord{
			id:           id,
			typ:          t,
			risk:         domain.Clamp01(initialRisk),
			lastSeen:     now,
			interactions: 1,
		}
		s.nodes[k] = n
		return n.toDomain()
	}

	if initialRisk > n.risk {
		n.risk = domain.Clamp01(initialRisk)
	}
	n.lastSeen = now
	n.interactions++
	return n.toDomain()
}

// GetNode returns the node if present.
func (s *Store) GetNode(id string, t domain.NodeType) (domain.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[key(t, id)]
	if !ok {
		return domain.Node{}, false
	}
	return n.toDomain(), true
}

// HasEdge reports whether a directed edge src->dst already exists, without
// mutating anything. Used by base-risk rules to evaluate "new" relations
// before this event's edges are upserted.
func (s *Store) HasEdge(srcID string, srcType domain.NodeType, dstID string, dstType domain.NodeType) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out, ok := s.outEdges[key(srcType, srcID)]
	if !ok {
		return false
	}
	_, ok = out[key(dstType, dstID)]
	return ok
}

// UpsertEdge creates missing endpoints (as the given types, risk 0), then
// creates or updates the directed edge src->dst. Weight is blended using an
// interaction-count-weighted running average rather than overwritten, so a
// single anomalous observation cannot swing a well-established relation.
func (s *Store) UpsertEdge(srcID string, srcType domain.NodeType, dstID string, dstType domain.NodeType, weight float64, now time.Time) domain.Edge {
	s.mu.Lock()
	defer s.mu.Unlock()

	srcKey := key(srcType, srcID)
	dstKey := key(dstType, dstID)

	if _, ok := s.nodes[srcKey]; !ok {
		s.nodes[srcKey] = &nodeRecord{id: srcID, typ: srcType, lastSeen: now, interactions: 1}
	}
	if _, ok := s.nodes[dstKey]; !ok {
		s.nodes[dstKey] = &nodeRecord{id: dstID, typ: dstType, lastSeen: now, interactions: 1}
	}

	out, ok := s.outEdges[srcKey]
	if !ok {
		out = make(map[string]*edgeRecord)
		s.outEdges[srcKey] = out
	}

	e, ok := out[dstKey]
	if !ok {
		e = &edgeRecord{
			srcKey:       srcKey,
			dstKey:       dstKey,
			weight:       domain.Clamp01(weight),
			interactions: 1,
			firstSeen:    now,
			lastSeen:     now,
		}
		out[dstKey] = e

		in, ok := s.inEdges[dstKey]
		if !ok {
			in = make(map[string]*edgeRecord)
			s.inEdges[dstKey] = in
		}
		in[srcKey] = e

		return e.toDomain(srcID, dstID)
	}

	total := float64(e.interactions)
	e.weight = domain.Clamp01((e.weight*total + weight) / (total + 1))
	e.interactions++
	e.lastSeen = now

	return e.toDomain(srcID, dstID)
}

// SetRisk clamps and sets a node's risk, refreshing last_seen.
func (s *Store) SetRisk(id string, t domain.NodeType, risk float64, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[key(t, id)]
	if !ok {
		return
	}
	n.risk = domain.Clamp01(risk)
	n.lastSeen = now
}

// Neighbors returns the edges incident to (id, t) in the requested direction.
func (s *Store) Neighbors(id string, t domain.NodeType, dir domain.Direction) []domain.NeighborView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	k := key(t, id)
	var views []domain.NeighborView

	if dir == domain.DirOut || dir == domain.DirBoth {
		for dstKey, e := range s.outEdges[k] {
			dst := s.nodes[dstKey]
			if dst == nil {
				continue
			}
			views = append(views, domain.NeighborView{OtherID: dst.id, OtherType: dst.typ, Edge: e.toDomain(id, dst.id)})
		}
	}
	if dir == domain.DirIn || dir == domain.DirBoth {
		for srcKey, e := range s.inEdges[k] {
			src := s.nodes[srcKey]
			if src == nil {
				continue
			}
			views = append(views, domain.NeighborView{OtherID: src.id, OtherType: src.typ, Edge: e.toDomain(src.id, id)})
		}
	}

	return views
}

// Snapshot summarizes current node/edge counts per type.
func (s *Store) Snapshot() domain.GraphSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[domain.NodeType]int)
	for _, n := range s.nodes {
		counts[n.typ]++
	}

	edgeCount := 0
	for _, out := range s.outEdges {
		edgeCount += len(out)
	}

	return domain.GraphSnapshot{
		NodeCountByType: counts,
		EdgeCount:       edgeCount,
		NodeCount:       len(s.nodes),
	}
}

// Prune removes nodes whose last_seen is older than horizon (relative to
// now) and cascades removal to their incident edges. Intended to run
// out-of-band (a periodic background job), never from the hot path.
func (s *Store) Prune(now time.Time, horizon time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-horizon)
	pruned := 0

	for k, n := range s.nodes {
		if n.lastSeen.After(cutoff) {
			continue
		}

		for dstKey := range s.outEdges[k] {
			delete(s.inEdges[dstKey], k)
		}
		delete(s.outEdges, k)

		for srcKey := range s.inEdges[k] {
			delete(s.outEdges[srcKey], k)
		}
		delete(s.inEdges, k)

		delete(s.nodes, k)
		pruned++
	}

	return pruned
}
