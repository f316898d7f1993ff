package handlers

import (
	"context"

	"frameworks/klaxon/pkg/ctxkeys"
	"frameworks/klaxon/pkg/middleware"
)

// RequestContextMiddleware copies the identity the auth middleware set on
// the gin context onto the request context, where the fetch and mutation
// layers read it. An optional namespace query parameter overrides the
// tenant-derived namespace for structured-API calls.
func RequestContextMiddleware() middleware.HandlerFunc {
	return func(c middleware.Context) {
		ctx := c.Request.Context()

		if v := c.GetString(string(ctxkeys.KeyUserID)); v != "" {
			ctx = context.WithValue(ctx, ctxkeys.KeyUserID, v)
		}
		if v := c.GetString(string(ctxkeys.KeyTenantID)); v != "" {
			ctx = context.WithValue(ctx, ctxkeys.KeyTenantID, v)
		}
		if v := c.GetString(string(ctxkeys.KeyJWTToken)); v != "" {
			ctx = context.WithValue(ctx, ctxkeys.KeyJWTToken, v)
		}
		if ns := c.Query("namespace"); ns != "" {
			ctx = context.WithValue(ctx, ctxkeys.KeyNamespace, ns)
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
