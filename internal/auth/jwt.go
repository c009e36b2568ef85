package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims holds the custom JWT claims carried on ingest requests. RiskMesh
// does not implement authorization policy — the only thing a claim is used
// for is resolving a principal id to a rate-limit bucket.
type Claims struct {
	jwt.RegisteredClaims
	Principal string `json:"principal"`
}

// PrincipalManager issues and validates short-lived principal tokens.
type PrincipalManager struct {
	secret []byte
	expiry time.Duration
}

// NewPrincipalManager creates a manager with the given signing secret and token expiry.
func NewPrincipalManager(secret string, expiry time.Duration) *PrincipalManager {
	return &PrincipalManager{secret: []byte(secret), expiry: expiry}
}

// GenerateToken issues a signed token for the given principal id.
func (m *PrincipalManager) GenerateToken(principal string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
		},
		Principal: principal,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ValidateToken parses and validates a signed principal token.
func (m *PrincipalManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return claims, nil
}
