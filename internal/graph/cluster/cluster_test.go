package cluster

import (
	"testing"
	"time"

	"github.com/riskmesh/riskmesh/internal/domain"
	"github.com/riskmesh/riskmesh/internal/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect_RingOfThreeUsersSharingDeviceAndIP(t *testing.T) {
	g := graph.New()
	now := time.Now()

	// u1, u2, u3 each transact from the same device and the same IP. No
	// edge ever points back from d1 or i1 to a user, so this cycle only
	// exists in the undirected view: each user has two neighbors (d1, i1)
	// and each of d1, i1 has three neighbors, so every node survives
	// 2-core peeling as a single ring.
	for _, u := range []string{"u1", "u2", "u3"} {
		g.UpsertEdge(u, domain.NodeUser, "d1", domain.NodeDevice, 1.0, now)
		g.UpsertEdge(u, domain.NodeUser, "i1", domain.NodeIP, 1.0, now)
	}

	result := Detect(g, []Ref{{ID: "u3", Type: domain.NodeUser}}, DefaultParams())

	require.Len(t, result.Rings, 1)
	assert.ElementsMatch(t, []string{"u1", "u2", "u3", "d1", "i1"}, result.Rings[0].Nodes)
	assert.Equal(t, 0.15, result.Boost["u1"])
	assert.Equal(t, 0.15, result.Boost["u2"])
	assert.Equal(t, 0.15, result.Boost["u3"])
	assert.Equal(t, 0.15, result.Boost["d1"])
	assert.Equal(t, 0.15, result.Boost["i1"])
}

func TestDetect_NoClustersOnSparseGraph(t *testing.T) {
	g := graph.New()
	now := time.Now()
	g.UpsertEdge("u1", domain.NodeUser, "d1", domain.NodeDevice, 1.0, now)

	result := Detect(g, []Ref{{ID: "u1", Type: domain.NodeUser}}, DefaultParams())

	assert.Empty(t, result.Rings)
	assert.Empty(t, result.DenseSubgraphs)
	assert.Empty(t, result.StarPatterns)
	assert.Empty(t, result.Boost)
}

func TestDetect_StarHubWithUnconnectedSpokes(t *testing.T) {
	g := graph.New()
	now := time.Now()

	for i := 0; i < 12; i++ {
		id := string(rune('a' + i))
		g.UpsertEdge("hub", domain.NodeMerchant, id, domain.NodeUser, 1.0, now)
	}

	result := Detect(g, []Ref{{ID: "hub", Type: domain.NodeMerchant}}, DefaultParams())

	assert.Len(t, result.StarPatterns, 1)
	assert.Equal(t, "hub", result.StarPatterns[0].Hub)
	assert.Equal(t, 0.10, result.Boost["hub"])
	assert.NotContains(t, result.Boost, "a", "spokes are not boosted")
}

func TestDetect_BoostIsMaxNotSum(t *testing.T) {
	boosts := map[string]float64{}
	applyBoost(boosts, "n1", 0.10)
	applyBoost(boosts, "n1", 0.15)
	applyBoost(boosts, "n1", 0.10)
	assert.Equal(t, 0.15, boosts["n1"])
}
