// Package baserules implements RiskMesh's additive base-risk rule table —
// a small set of independent conditions, each contributing a fixed amount
// to the base risk score, evaluated against graph state as it stood before
// the current event's mutations were applied.
package baserules

// Signals are the inputs to the rule table, already resolved by the
// caller against pre-mutation graph state.
type Signals struct {
	TransactionAmount float64
	NewDevice         bool // no existing user->device edge
	NewIP             bool // no existing user->ip edge
	NewMerchant       bool // no existing {user,device}->merchant edge
}

// Result is the outcome of evaluating the rule table.
type Result struct {
	BaseRisk float64
	Flags    []string
}

const (
	HighAmountThreshold = 1000.0

	HighAmountContribution   = 0.30
	NewDeviceContribution    = 0.20
	NewIPContribution        = 0.20
	NewMerchantContribution  = 0.10
)

// Evaluate runs the additive rule table, clamping the total to 1.0.
func Evaluate(signals Signals) Result {
	var score float64
	var flags []string

	if signals.TransactionAmount > HighAmountThreshold {
		score += HighAmountContribution
		flags = append(flags, "large_amount")
	}
	if signals.NewDevice {
		score += NewDeviceContribution
		flags = append(flags, "new_device")
	}
	if signals.NewIP {
		score += NewIPContribution
		flags = append(flags, "new_ip")
	}
	if signals.NewMerchant {
		score += NewMerchantContribution
		flags = append(flags, "new_merchant")
	}

	if score > 1.0 {
		score = 1.0
	}

	return Result{BaseRisk: score, Flags: flags}
}
