// Package decay implements RiskMesh's lazy time-decay model: a node's
// stored risk decays exponentially with the days elapsed since it was last
// observed. There is no background sweeper — callers apply this inline,
// immediately before a node participates in base-risk evaluation or
// propagation.
package decay

import (
	"math"
	"time"
)

// DefaultFactor is the default per-day multiplicative decay.
const DefaultFactor = 0.995

// Floor is the minimum decayed risk a node ever reports — prolonged
// silence dulls suspicion, it never erases it entirely.
const Floor = 0.01

// Apply computes risk * factor^daysSince, floored at Floor. A zero or
// negative elapsed interval is the identity transform.
func Apply(risk float64, lastSeen, now time.Time, factor float64) float64 {
	days := now.Sub(lastSeen).Hours() / 24
	if days <= 0 {
		return risk
	}
	decayed := risk * math.Pow(factor, days)
	if decayed < Floor {
		return Floor
	}
	return decayed
}
