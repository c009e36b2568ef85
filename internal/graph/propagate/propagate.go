// Package propagate implements RiskMesh's bounded-depth BFS risk
// diffusion: risk observed at a source node spreads along outgoing edges,
// attenuated by edge weight and a damping factor, down to a configured
// maximum depth.
package propagate

import (
	"context"
	"sort"
	"time"

	"github.com/riskmesh/riskmesh/internal/domain"
)

// Params configures a single propagation run.
type Params struct {
	Alpha     float64 // damping factor applied per hop, in (0,1]
	MaxDepth  int     // deepest hop a risk update may be applied at
	Threshold float64 // base risk below this skips propagation entirely
}

// DefaultParams matches the values named in the specification.
func DefaultParams() Params {
	return Params{Alpha: 0.5, MaxDepth: 2, Threshold: 0.1}
}

// Graph is the read/write surface propagate needs from the graph store,
// expressed as an interface so propagation can be unit tested against a
// fake without touching the real store's locking.
type Graph interface {
	GetNode(id string, t domain.NodeType) (domain.Node, bool)
	Neighbors(id string, t domain.NodeType, dir domain.Direction) []domain.NeighborView
	SetRisk(id string, t domain.NodeType, risk float64, now time.Time)
}

type nodeKey struct {
	id  string
	typ domain.NodeType
}

type frontierEntry struct {
	nodeKey
	depth int
}

// Result is the outcome of one propagation run.
type Result struct {
	// UpdatedRisk maps every node id touched during this run (including
	// the source) to its resulting risk.
	UpdatedRisk map[string]float64
	// DeepestDepth is the deepest depth actually reached before the BFS
	// exhausted its frontier, hit MaxDepth, or was truncated.
	DeepestDepth int
	// Truncated is true when ctx's deadline was exceeded mid-run. Already
	// applied mutations are kept; this is never surfaced as an error to
	// the caller, only as a flag on the response.
	Truncated bool
}

// Run performs level-synchronous BFS from sourceID/sourceType, seeded with
// baseRisk, honoring ctx's deadline. If baseRisk is below params.Threshold,
// propagation is skipped entirely and the source keeps its base risk. A
// per-call visited set guarantees at most one update per node.
func Run(ctx context.Context, g Graph, sourceID string, sourceType domain.NodeType, baseRisk float64, params Params, now time.Time) Result {
	result := Result{UpdatedRisk: map[string]float64{sourceID: baseRisk}}

	g.SetRisk(sourceID, sourceType, baseRisk, now)

	if baseRisk < params.Threshold {
		return result
	}

	source := nodeKey{sourceID, sourceType}
	visited := map[nodeKey]bool{source: true}
	risks := map[nodeKey]float64{source: baseRisk}

	frontier := []frontierEntry{{nodeKey: source, depth: 0}}

	for len(frontier) > 0 {
		select {
		case <-ctx.Done():
			result.Truncated = true
			copyRisks(result.UpdatedRisk, risks)
			return result
		default:
		}

		sort.Slice(frontier, func(i, j int) bool { return frontier[i].id < frontier[j].id })

		var next []frontierEntry

		for _, cur := range frontier {
			if cur.depth > result.DeepestDepth {
				result.DeepestDepth = cur.depth
			}
			if cur.depth >= params.MaxDepth {
				continue
			}

			neighbors := g.Neighbors(cur.id, cur.typ, domain.DirOut)
			sort.Slice(neighbors, func(i, j int) bool { return neighbors[i].OtherID < neighbors[j].OtherID })

			curRisk := risks[cur.nodeKey]

			for _, nb := range neighbors {
				nk := nodeKey{nb.OtherID, nb.OtherType}
				if visited[nk] {
					continue
				}
				visited[nk] = true

				node, ok := g.GetNode(nb.OtherID, nb.OtherType)
				existing := 0.0
				if ok {
					existing = node.Risk
				}

				delta := params.Alpha * curRisk * nb.Edge.Weight
				updated := domain.Clamp01(existing + delta)

				risks[nk] = updated
				g.SetRisk(nb.OtherID, nb.OtherType, updated, now)

				next = append(next, frontierEntry{nodeKey: nk, depth: cur.depth + 1})
			}
		}

		frontier = next
	}

	copyRisks(result.UpdatedRisk, risks)
	return result
}

func copyRisks(dst map[string]float64, src map[nodeKey]float64) {
	for k, v := range src {
		dst[k.id] = v
	}
}
