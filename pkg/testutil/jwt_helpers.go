// Package testutil holds helpers shared by package tests.
package testutil

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTTestHelper mints tokens shaped like the ones the Farmhand API issues.
// The dashboard never verifies signatures, so any secret works.
type JWTTestHelper struct {
	Secret []byte
}

// NewJWTTestHelper creates a new JWT test helper with a default test secret
func NewJWTTestHelper() *JWTTestHelper {
	return &JWTTestHelper{
		Secret: []byte("test-secret-for-unit-tests"),
	}
}

// GenerateToken returns a token for userID that expires after ttl.
func (h *JWTTestHelper) GenerateToken(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"iat":     now.Unix(),
		"exp":     now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.Secret)
}

// GenerateExpiredToken returns a token for userID that expired an hour ago.
func (h *JWTTestHelper) GenerateExpiredToken(userID string) (string, error) {
	return h.GenerateToken(userID, -time.Hour)
}

// GenerateTokenWithoutExpiry returns a token carrying no exp claim.
func (h *JWTTestHelper) GenerateTokenWithoutExpiry(userID string) (string, error) {
	claims := jwt.MapClaims{"user_id": userID}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.Secret)
}
