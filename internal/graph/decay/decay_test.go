package decay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApply_ZeroElapsedIsIdentity(t *testing.T) {
	now := time.Now()
	assert.Equal(t, 0.73, Apply(0.73, now, now, DefaultFactor))
}

func TestApply_NegativeElapsedIsIdentity(t *testing.T) {
	now := time.Now()
	future := now.Add(24 * time.Hour)
	assert.Equal(t, 0.73, Apply(0.73, future, now, DefaultFactor))
}

func TestApply_MonotoneNonIncreasing(t *testing.T) {
	now := time.Now()
	lastSeen := now.Add(-10 * 24 * time.Hour)

	r5 := Apply(0.8, now.Add(-5*24*time.Hour), now, DefaultFactor)
	r10 := Apply(0.8, lastSeen, now, DefaultFactor)

	assert.GreaterOrEqual(t, r5, r10-Floor)
	assert.LessOrEqual(t, r10, r5+1e-9)
}

func TestApply_FloorsAtMinimum(t *testing.T) {
	now := time.Now()
	lastSeen := now.Add(-3650 * 24 * time.Hour)
	assert.Equal(t, Floor, Apply(0.9, lastSeen, now, DefaultFactor))
}

func TestApply_OneDayMatchesFormula(t *testing.T) {
	now := time.Now()
	lastSeen := now.Add(-24 * time.Hour)
	got := Apply(0.5, lastSeen, now, DefaultFactor)
	assert.InDelta(t, 0.5*0.995, got, 1e-9)
}
