package baserules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate_ColdStartSmallAmount(t *testing.T) {
	result := Evaluate(Signals{TransactionAmount: 50, NewDevice: true, NewIP: true, NewMerchant: true})
	assert.InDelta(t, 0.5, result.BaseRisk, 1e-9)
}

func TestEvaluate_SmallAmountAllExistingEdges(t *testing.T) {
	result := Evaluate(Signals{TransactionAmount: 50})
	assert.Equal(t, 0.0, result.BaseRisk)
	assert.Empty(t, result.Flags)
}

func TestEvaluate_ClampsAtOne(t *testing.T) {
	result := Evaluate(Signals{TransactionAmount: 5000, NewDevice: true, NewIP: true, NewMerchant: true})
	assert.Equal(t, 1.0, result.BaseRisk)
}

func TestEvaluate_HighAmountOnly(t *testing.T) {
	result := Evaluate(Signals{TransactionAmount: 1500})
	assert.InDelta(t, 0.30, result.BaseRisk, 1e-9)
	assert.Equal(t, []string{"large_amount"}, result.Flags)
}
