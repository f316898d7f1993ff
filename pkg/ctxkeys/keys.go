// Package ctxkeys defines the typed context keys shared between the auth
// middleware, the request logger, and the upstream clients. A single typed
// key set avoids collisions and the SA1029 lint warning.
package ctxkeys

import "context"

// Key is a typed context key.
type Key string

// Session identity, stamped by the auth middleware.
const (
	KeyUserID   Key = "user_id"
	KeyTenantID Key = "tenant_id"
	KeyEmail    Key = "email"
	KeyRole     Key = "role"
	KeyJWTToken Key = "jwt_token"
	KeyAuthType Key = "auth_type"
)

// Per-request keys.
const (
	KeyRequestID Key = "request_id"
	KeyNamespace Key = "namespace"
)

// GetTenantID extracts the session's tenant, or "" when unauthenticated.
func GetTenantID(ctx context.Context) string {
	if v, ok := ctx.Value(KeyTenantID).(string); ok {
		return v
	}
	return ""
}

// GetJWTToken extracts the raw session token for forwarding upstream.
func GetJWTToken(ctx context.Context) string {
	if v, ok := ctx.Value(KeyJWTToken).(string); ok {
		return v
	}
	return ""
}

// GetNamespace extracts the resolved alerting namespace for this request.
func GetNamespace(ctx context.Context) string {
	if v, ok := ctx.Value(KeyNamespace).(string); ok {
		return v
	}
	return ""
}
