package auth

import (
	"crypto/subtle"
	"errors"
	"os"
)

// ErrMissingServiceToken is returned when a caller presents no token at all.
var ErrMissingServiceToken = errors.New("service token missing")

// ErrInvalidServiceToken is returned when the presented token does not match.
var ErrInvalidServiceToken = errors.New("service token mismatch")

// GetServiceToken reads the fleet-shared token from the environment.
func GetServiceToken() string {
	return os.Getenv("SERVICE_TOKEN")
}

// ValidateServiceToken checks a fleet bearer token against the expected
// value in constant time. An empty expected token rejects everything, so a
// replica missing SERVICE_TOKEN can never fall open.
func ValidateServiceToken(token string, expectedToken string) error {
	switch {
	case token == "":
		return ErrMissingServiceToken
	case expectedToken == "":
		return ErrInvalidServiceToken
	case subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1:
		return ErrInvalidServiceToken
	}
	return nil
}
