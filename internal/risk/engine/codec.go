package engine

import (
	"encoding/json"
	"strconv"

	"github.com/riskmesh/riskmesh/internal/domain"
)

// encodeResponse and decodeResponse serialize a ScoreResponse for storage
// in the cache's string-valued keyspace.
func encodeResponse(resp domain.ScoreResponse) (string, error) {
	b, err := json.Marshal(resp)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeResponse(raw string) (domain.ScoreResponse, error) {
	var resp domain.ScoreResponse
	err := json.Unmarshal([]byte(raw), &resp)
	return resp, err
}

// encodeRisk and decodeRisk serialize a single risk score for storage in
// the user_risk and entity keyspaces, which cache a scalar rather than a
// full response payload.
func encodeRisk(risk float64) string {
	return strconv.FormatFloat(risk, 'f', -1, 64)
}

func decodeRisk(raw string) (float64, bool) {
	risk, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return risk, true
}
