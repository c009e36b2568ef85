package explain

import (
	"testing"

	"github.com/riskmesh/riskmesh/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestAssemble_ApproveBelowThreshold(t *testing.T) {
	e := Assemble(Input{Breakdown: domain.CalculationBreakdown{Final: 0.1}})
	assert.Equal(t, domain.RecommendApprove, e.Recommendation)
	assert.Equal(t, "no significant risk factors", e.Reason)
}

func TestAssemble_ReviewBand(t *testing.T) {
	e := Assemble(Input{Breakdown: domain.CalculationBreakdown{Final: 0.5}, BaseFlags: []string{"new_device"}})
	assert.Equal(t, domain.RecommendReview, e.Recommendation)
	assert.Contains(t, e.Reason, "new device")
}

func TestAssemble_ChallengeAtBoundary(t *testing.T) {
	e := Assemble(Input{Breakdown: domain.CalculationBreakdown{Final: 0.6}})
	assert.Equal(t, domain.RecommendChallenge, e.Recommendation)
}

func TestAssemble_RingMembershipNamed(t *testing.T) {
	e := Assemble(Input{Breakdown: domain.CalculationBreakdown{Final: 0.7}, RingMember: true})
	assert.Contains(t, e.Reason, "fraud ring detected")
}
