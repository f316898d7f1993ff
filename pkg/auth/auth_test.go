package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestServiceTokenComparison(t *testing.T) {
	if err := ValidateServiceToken("", "expected"); err == nil {
		t.Fatal("expected error for missing token")
	}
	if err := ValidateServiceToken("bad", "expected"); err == nil {
		t.Fatal("expected error for mismatched token")
	}
	// An unset expected token must never turn into allow-all.
	if err := ValidateServiceToken("anything", ""); err == nil {
		t.Fatal("expected error when no service token is configured")
	}
	if err := ValidateServiceToken("expected", "expected"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	secret := []byte("s3cr3t")
	token, err := GenerateJWT("user1", "tenant1", "u@example.com", "admin", secret)
	if err != nil {
		t.Fatalf("generate jwt: %v", err)
	}

	claims, err := ValidateJWT(token, secret)
	if err != nil {
		t.Fatalf("validate jwt: %v", err)
	}
	if claims.UserID != "user1" || claims.TenantID != "tenant1" {
		t.Fatalf("identity claims mismatch: %+v", claims)
	}
	if claims.Email != "u@example.com" || claims.Role != "admin" {
		t.Fatalf("profile claims mismatch: %+v", claims)
	}

	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		t.Fatal("expected issued-at and expiry to be set")
	}
	window := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	if window != sessionTTL {
		t.Fatalf("expected session window %v, got %v", sessionTTL, window)
	}
}

func TestValidateJWTRejections(t *testing.T) {
	mint := func(secret []byte, expiresAt time.Time) string {
		claims := &Claims{
			UserID:   "user1",
			TenantID: "tenant1",
			RegisteredClaims: jwt.RegisteredClaims{
				IssuedAt:  jwt.NewNumericDate(expiresAt.Add(-sessionTTL)),
				ExpiresAt: jwt.NewNumericDate(expiresAt),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return token
	}

	secret := []byte("klaxon-secret")
	cases := []struct {
		name  string
		token string
		want  error
	}{
		{"wrong secret", mint([]byte("other-secret"), time.Now().Add(time.Hour)), ErrInvalidJWT},
		{"expired", mint(secret, time.Now().Add(-time.Minute)), ErrExpiredJWT},
		{"malformed", "not.a.jwt", ErrInvalidJWT},
		{"empty", "", ErrInvalidJWT},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			claims, err := ValidateJWT(tc.token, secret)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if claims != nil {
				t.Fatal("expected nil claims on rejection")
			}
		})
	}
}

func TestValidateJWTRejectsNoneAlgorithm(t *testing.T) {
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		UserID:   "user1",
		TenantID: "tenant1",
		Role:     "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to build none token: %v", err)
	}

	claims, err := ValidateJWT(token, []byte("klaxon-secret"))
	if err == nil {
		t.Fatal("expected rejection of unsigned token")
	}
	if claims != nil {
		t.Fatal("expected nil claims for unsigned token")
	}
}
