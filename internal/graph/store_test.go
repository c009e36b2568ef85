package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskmesh/riskmesh/internal/domain"
)

func TestUpsertNode_SecondCallNeverLowersRisk(t *testing.T) {
	s := New()
	now := time.Now()

	s.UpsertNode("u1", domain.NodeUser, 0.8, now)
	node := s.UpsertNode("u1", domain.NodeUser, 0.1, now.Add(time.Second))

	assert.InDelta(t, 0.8, node.Risk, 1e-9)
	assert.Equal(t, int64(2), node.InteractionCount)
}

func TestHasEdge_FalseUntilUpserted(t *testing.T) {
	s := New()
	now := time.Now()

	assert.False(t, s.HasEdge("u1", domain.NodeUser, "d1", domain.NodeDevice))
	s.UpsertEdge("u1", domain.NodeUser, "d1", domain.NodeDevice, 1.0, now)
	assert.True(t, s.HasEdge("u1", domain.NodeUser, "d1", domain.NodeDevice))
}

func TestUpsertEdge_BlendsWeightAsRunningAverage(t *testing.T) {
	s := New()
	now := time.Now()

	s.UpsertEdge("u1", domain.NodeUser, "d1", domain.NodeDevice, 1.0, now)
	edge := s.UpsertEdge("u1", domain.NodeUser, "d1", domain.NodeDevice, 0.0, now.Add(time.Second))

	assert.InDelta(t, 0.5, edge.Weight, 1e-9)
	assert.Equal(t, int64(2), edge.InteractionCount)
}

func TestUpsertEdge_CreatesMissingEndpointNodes(t *testing.T) {
	s := New()
	now := time.Now()

	s.UpsertEdge("u1", domain.NodeUser, "d1", domain.NodeDevice, 1.0, now)

	_, ok := s.GetNode("u1", domain.NodeUser)
	assert.True(t, ok)
	_, ok = s.GetNode("d1", domain.NodeDevice)
	assert.True(t, ok)
}

func TestNeighbors_BothDirectionReturnsInAndOutEdges(t *testing.T) {
	s := New()
	now := time.Now()

	s.UpsertEdge("u1", domain.NodeUser, "d1", domain.NodeDevice, 1.0, now)
	s.UpsertEdge("d1", domain.NodeDevice, "m1", domain.NodeMerchant, 1.0, now)

	views := s.Neighbors("d1", domain.NodeDevice, domain.DirBoth)
	require.Len(t, views, 2)

	var ids []string
	for _, v := range views {
		ids = append(ids, v.OtherID)
	}
	assert.Contains(t, ids, "u1")
	assert.Contains(t, ids, "m1")
}

func TestSnapshot_CountsNodesAndEdgesByType(t *testing.T) {
	s := New()
	now := time.Now()

	s.UpsertEdge("u1", domain.NodeUser, "d1", domain.NodeDevice, 1.0, now)
	s.UpsertEdge("u2", domain.NodeUser, "d1", domain.NodeDevice, 1.0, now)

	snap := s.Snapshot()
	assert.Equal(t, 2, snap.NodeCountByType[domain.NodeUser])
	assert.Equal(t, 1, snap.NodeCountByType[domain.NodeDevice])
	assert.Equal(t, 2, snap.EdgeCount)
	assert.Equal(t, 3, snap.NodeCount)
}

func TestPrune_RemovesStaleNodesAndIncidentEdges(t *testing.T) {
	s := New()
	base := time.Now()

	s.UpsertEdge("u1", domain.NodeUser, "d1", domain.NodeDevice, 1.0, base)
	s.UpsertNode("u2", domain.NodeUser, 0, base.Add(2*time.Hour))

	pruned := s.Prune(base.Add(2*time.Hour), time.Hour)

	assert.Equal(t, 2, pruned) // u1 and d1 are stale; u2 was just touched
	_, ok := s.GetNode("u1", domain.NodeUser)
	assert.False(t, ok)
	_, ok = s.GetNode("u2", domain.NodeUser)
	assert.True(t, ok)
	assert.False(t, s.HasEdge("u1", domain.NodeUser, "d1", domain.NodeDevice))
}
