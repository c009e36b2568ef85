// Package explain assembles the human-readable explanation attached to a
// scoring response. It performs no graph work — every input it needs has
// already been computed by the engine.
package explain

import (
	"strings"

	"github.com/riskmesh/riskmesh/internal/domain"
)

const (
	ApproveThreshold   = 0.3
	ChallengeThreshold = 0.6
)

// Input carries everything explain needs from the engine's run.
type Input struct {
	Breakdown  domain.CalculationBreakdown
	BaseFlags  []string
	RingMember bool
	DenseMember bool
	StarHub    bool
}

// Assemble derives the recommendation and reason phrase from Input.
func Assemble(in Input) domain.Explanation {
	final := in.Breakdown.Final

	var recommendation domain.Recommendation
	switch {
	case final < ApproveThreshold:
		recommendation = domain.RecommendApprove
	case final < ChallengeThreshold:
		recommendation = domain.RecommendReview
	default:
		recommendation = domain.RecommendChallenge
	}

	var reasons []string
	reasons = append(reasons, humanizeFlags(in.BaseFlags)...)
	if in.RingMember {
		reasons = append(reasons, "fraud ring detected")
	}
	if in.DenseMember {
		reasons = append(reasons, "dense cluster detected")
	}
	if in.StarHub {
		reasons = append(reasons, "hub of star pattern")
	}

	reason := "no significant risk factors"
	if len(reasons) > 0 {
		reason = strings.Join(reasons, ", ")
	}

	return domain.Explanation{
		Recommendation: recommendation,
		Reason:         reason,
		Breakdown:      in.Breakdown,
	}
}

func humanizeFlags(flags []string) []string {
	out := make([]string, 0, len(flags))
	for _, f := range flags {
		switch f {
		case "large_amount":
			out = append(out, "large amount")
		case "new_device":
			out = append(out, "new device")
		case "new_ip":
			out = append(out, "new IP")
		case "new_merchant":
			out = append(out, "new merchant")
		default:
			out = append(out, f)
		}
	}
	return out
}
