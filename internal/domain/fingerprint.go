package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
)

// bucketedAmount rounds amount down to the nearest 10 units so that near-
// identical repeat charges map onto the same cache entry.
func bucketedAmount(amount float64) int64 {
	return int64(math.Floor(amount/10)) * 10
}

// Fingerprint derives the cache key component that identifies a logically
// repeated event: the same user/device/ip/merchant combination and
// roughly the same amount.
func (e TransactionEvent) Fingerprint() string {
	raw := fmt.Sprintf("%s|%s|%s|%s|%d", e.UserID, e.DeviceID, e.IPAddress, e.MerchantID, bucketedAmount(e.TransactionAmount))
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
