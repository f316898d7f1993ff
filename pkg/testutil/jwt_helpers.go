// Package testutil holds helpers shared by tests across packages.
package testutil

import (
	"time"

	"frameworks/klaxon/pkg/auth"

	"github.com/golang-jwt/jwt/v5"
)

// JWTTestHelper mints console session tokens for handler and middleware
// tests.
type JWTTestHelper struct {
	Secret []byte
}

// NewJWTTestHelper returns a helper with a fixed throwaway secret.
func NewJWTTestHelper() *JWTTestHelper {
	return &JWTTestHelper{Secret: []byte("klaxon-test-secret")}
}

// NewJWTTestHelperWithSecret returns a helper signing with the given secret.
func NewJWTTestHelperWithSecret(secret []byte) *JWTTestHelper {
	return &JWTTestHelper{Secret: secret}
}

// GenerateValidJWT mints a session token the way the console does.
func (h *JWTTestHelper) GenerateValidJWT(userID, tenantID, email, role string) (string, error) {
	return auth.GenerateJWT(userID, tenantID, email, role, h.Secret)
}

// GenerateExpiredJWT mints a token that expired an hour ago.
func (h *JWTTestHelper) GenerateExpiredJWT(userID, tenantID, email, role string) (string, error) {
	issued := time.Now().Add(-2 * time.Hour)
	claims := &auth.Claims{
		UserID:   userID,
		TenantID: tenantID,
		Email:    email,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(time.Hour)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.Secret)
}
