// Package cluster detects fraud rings, dense subgraphs, and star patterns
// within the 2-hop neighborhood of an event's nodes, and computes the
// once-per-event risk boost each detected pattern contributes.
package cluster

import (
	"sort"

	"github.com/riskmesh/riskmesh/internal/domain"
)

// Params tunes every detector. Defaults match the specification.
type Params struct {
	RingMinSize    int
	DenseMinRatio  float64
	DenseMinNodes  int
	StarMinDegree  int
	RingBoost      float64
	DenseBoost     float64
	StarBoost      float64
}

func DefaultParams() Params {
	return Params{
		RingMinSize:   3,
		DenseMinRatio: 1.5,
		DenseMinNodes: 4,
		StarMinDegree: 10,
		RingBoost:     0.15,
		DenseBoost:    0.10,
		StarBoost:     0.10,
	}
}

// Graph is the read surface cluster needs.
type Graph interface {
	Neighbors(id string, t domain.NodeType, dir domain.Direction) []domain.NeighborView
}

// Ref identifies a single node by its compound identity.
type Ref struct {
	ID   string
	Type domain.NodeType
}

func (r Ref) key() string { return string(r.Type) + ":" + r.ID }

// Result carries every cluster detected for one event, plus the resolved
// per-node boost (only the single largest applicable boost is kept).
type Result struct {
	Rings          []domain.RingInfo
	DenseSubgraphs []domain.DenseSubgraphInfo
	StarPatterns   []domain.StarInfo
	// Boost maps node id to the largest applicable boost for this event.
	Boost map[string]float64
	// Refs maps every id present in Boost back to its typed identity, so
	// callers can write the boost back to the correct node without
	// re-deriving type from bare id.
	Refs map[string]Ref
}

type subNode struct {
	ref Ref
	out []Ref
	in  []Ref
}

// buildSubgraph walks 2 hops out from each seed in both directions and
// returns the induced subgraph (nodes plus their directed edges, limited
// to endpoints both already present in the induced set).
func buildSubgraph(g Graph, seeds []Ref) map[string]*subNode {
	const hops = 2

	visited := map[string]Ref{}
	frontier := make([]Ref, 0, len(seeds))
	for _, s := range seeds {
		if _, ok := visited[s.key()]; !ok {
			visited[s.key()] = s
			frontier = append(frontier, s)
		}
	}

	for depth := 0; depth < hops; depth++ {
		var next []Ref
		for _, cur := range frontier {
			for _, nb := range g.Neighbors(cur.ID, cur.Type, domain.DirBoth) {
				ref := Ref{ID: nb.OtherID, Type: nb.OtherType}
				if _, ok := visited[ref.key()]; !ok {
					visited[ref.key()] = ref
					next = append(next, ref)
				}
			}
		}
		frontier = next
	}

	nodes := make(map[string]*subNode, len(visited))
	for k, ref := range visited {
		nodes[k] = &subNode{ref: ref}
	}

	for k, n := range nodes {
		_ = k
		for _, nb := range g.Neighbors(n.ref.ID, n.ref.Type, domain.DirOut) {
			dst := Ref{ID: nb.OtherID, Type: nb.OtherType}
			if other, ok := nodes[dst.key()]; ok {
				n.out = append(n.out, dst)
				other.in = append(other.in, n.ref)
			}
		}
	}

	return nodes
}

// Detect runs all three detectors over the 2-hop induced subgraph of
// seeds and resolves the per-node boost.
func Detect(g Graph, seeds []Ref, params Params) Result {
	sub := buildSubgraph(g, seeds)

	result := Result{Boost: make(map[string]float64), Refs: make(map[string]Ref)}
	remember := func(id string) {
		for _, n := range sub {
			if n.ref.ID == id {
				result.Refs[id] = n.ref
				return
			}
		}
	}

	rings := detectRings(sub, params.RingMinSize)
	for _, ring := range rings {
		result.Rings = append(result.Rings, domain.RingInfo{Nodes: ring})
		for _, id := range ring {
			applyBoost(result.Boost, id, params.RingBoost)
			remember(id)
		}
	}

	dense := detectDenseSubgraphs(sub, params.DenseMinNodes, params.DenseMinRatio)
	for _, d := range dense {
		result.DenseSubgraphs = append(result.DenseSubgraphs, d)
		for _, id := range d.Nodes {
			applyBoost(result.Boost, id, params.DenseBoost)
			remember(id)
		}
	}

	stars := detectStars(sub, params.StarMinDegree)
	for _, st := range stars {
		result.StarPatterns = append(result.StarPatterns, st)
		applyBoost(result.Boost, st.Hub, params.StarBoost)
		remember(st.Hub)
	}

	return result
}

// applyBoost keeps only the max applicable boost per node, never the sum.
func applyBoost(boosts map[string]float64, id string, candidate float64) {
	if candidate > boosts[id] {
		boosts[id] = candidate
	}
}

// detectRings finds the 2-core of the undirected view via peeling (every
// node on an undirected cycle survives, as do nodes on a path joining two
// cycles): a node with fewer than two surviving neighbors can never be
// part of a cycle, so it is stripped, and stripping cascades until every
// remaining node still has two surviving neighbors. Directed edge
// orientation carries no information about fraud rings here — shared
// entities link otherwise-unrelated users regardless of which side
// created the edge — so peeling runs on the undirected view, same as
// detectDenseSubgraphs. Connected components of the survivors, with at
// least minSize members, are reported as rings.
func detectRings(nodes map[string]*subNode, minSize int) [][]string {
	adj := buildUndirectedAdjacency(nodes)

	degree := make(map[string]int, len(adj))
	for k, neighbors := range adj {
		degree[k] = len(neighbors)
	}

	removed := make(map[string]bool, len(adj))
	queue := make([]string, 0, len(adj))
	for _, k := range sortedStringKeys(degree) {
		if degree[k] < 2 {
			queue = append(queue, k)
		}
	}

	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		if removed[k] {
			continue
		}
		removed[k] = true
		for _, nb := range adj[k] {
			if removed[nb] {
				continue
			}
			degree[nb]--
			if degree[nb] < 2 {
				queue = append(queue, nb)
			}
		}
	}

	survivors := make(map[string]bool, len(adj))
	for k := range adj {
		if !removed[k] {
			survivors[k] = true
		}
	}

	visited := map[string]bool{}
	var result [][]string
	for _, k := range sortedKeys(nodes) {
		if !survivors[k] || visited[k] {
			continue
		}
		var component []string
		stack := []string{k}
		visited[k] = true
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			component = append(component, nodes[cur].ref.ID)
			for _, nb := range adj[cur] {
				if survivors[nb] && !visited[nb] {
					visited[nb] = true
					stack = append(stack, nb)
				}
			}
		}
		if len(component) >= minSize {
			sort.Strings(component)
			result = append(result, component)
		}
	}

	return result
}

// buildUndirectedAdjacency flattens a subgraph's directed edges into a
// symmetric neighbor list, deduplicating edges that exist in both
// directions.
func buildUndirectedAdjacency(nodes map[string]*subNode) map[string][]string {
	adjSet := make(map[string]map[string]bool, len(nodes))
	for k := range nodes {
		adjSet[k] = make(map[string]bool)
	}

	for k, n := range nodes {
		for _, o := range n.out {
			ok := o.key()
			if ok == k {
				continue
			}
			if _, exists := nodes[ok]; !exists {
				continue
			}
			adjSet[k][ok] = true
			adjSet[ok][k] = true
		}
	}

	adj := make(map[string][]string, len(adjSet))
	for k, set := range adjSet {
		neighbors := make([]string, 0, len(set))
		for nb := range set {
			neighbors = append(neighbors, nb)
		}
		sort.Strings(neighbors)
		adj[k] = neighbors
	}
	return adj
}

func sortedStringKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// detectDenseSubgraphs finds undirected connected components with at least
// minNodes members and an edge/node ratio >= minRatio.
func detectDenseSubgraphs(nodes map[string]*subNode, minNodes int, minRatio float64) []domain.DenseSubgraphInfo {
	parent := map[string]string{}
	var find func(string) string
	find = func(x string) string {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	for k := range nodes {
		parent[k] = k
	}

	undirectedEdges := 0
	seen := map[string]bool{}
	for k, n := range nodes {
		for _, o := range n.out {
			ok := o.key()
			if _, exists := nodes[ok]; !exists {
				continue
			}
			union(k, ok)
			edgeKey := k + "|" + ok
			rev := ok + "|" + k
			if !seen[edgeKey] && !seen[rev] {
				seen[edgeKey] = true
				undirectedEdges++
			}
		}
	}

	groups := map[string][]string{}
	for k := range nodes {
		root := find(k)
		groups[root] = append(groups[root], k)
	}

	var result []domain.DenseSubgraphInfo
	for _, members := range groups {
		if len(members) < minNodes {
			continue
		}

		edges := 0
		memberSet := map[string]bool{}
		for _, m := range members {
			memberSet[m] = true
		}
		es := map[string]bool{}
		for _, m := range members {
			for _, o := range nodes[m].out {
				ok := o.key()
				if !memberSet[ok] {
					continue
				}
				ek, rk := m+"|"+ok, ok+"|"+m
				if !es[ek] && !es[rk] {
					es[ek] = true
					edges++
				}
			}
		}

		ratio := float64(edges) / float64(len(members))
		if ratio >= minRatio {
			ids := make([]string, 0, len(members))
			for _, m := range members {
				ids = append(ids, nodes[m].ref.ID)
			}
			sort.Strings(ids)
			result = append(result, domain.DenseSubgraphInfo{Nodes: ids, Ratio: ratio})
		}
	}

	return result
}

// detectStars finds hubs with out-degree > minDegree whose spokes carry no
// edges among themselves.
func detectStars(nodes map[string]*subNode, minDegree int) []domain.StarInfo {
	var result []domain.StarInfo

	for k, n := range nodes {
		_ = k
		if len(n.out) <= minDegree {
			continue
		}

		spokeSet := map[string]bool{}
		for _, o := range n.out {
			spokeSet[o.key()] = true
		}

		interconnected := false
		for sk := range spokeSet {
			sn, ok := nodes[sk]
			if !ok {
				continue
			}
			for _, o := range sn.out {
				if spokeSet[o.key()] {
					interconnected = true
					break
				}
			}
			if interconnected {
				break
			}
		}
		if interconnected {
			continue
		}

		spokes := make([]string, 0, len(n.out))
		for _, o := range n.out {
			if other, ok := nodes[o.key()]; ok {
				spokes = append(spokes, other.ref.ID)
			}
		}
		sort.Strings(spokes)

		result = append(result, domain.StarInfo{
			Hub:    n.ref.ID,
			Spokes: spokes,
			Degree: len(n.out),
		})
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Hub < result[j].Hub })
	return result
}

func sortedKeys(nodes map[string]*subNode) []string {
	keys := make([]string, 0, len(nodes))
	for k := range nodes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
