package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"frameworks/klaxon/pkg/ctxkeys"
)

// Identity stamped on requests that authenticate with the fleet service
// token. The zero UUIDs keep audit fields populated without inventing a user.
const (
	serviceUserID   = "00000000-0000-0000-0000-000000000000"
	serviceTenantID = "00000000-0000-0000-0000-000000000001"
)

// bearerToken pulls the credential off the request: Authorization header
// first, then the console's httpOnly session cookie.
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if cookie, err := c.Cookie("access_token"); err == nil && cookie != "" {
			return cookie, true
		}
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// JWTAuthMiddleware guards the console API. A request passes with either a
// console session JWT or the fleet service token; anything else is a 401.
// Whatever authenticated the request, the caller's identity lands in the
// request context under the shared keys.
func JWTAuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		if claims, err := ValidateJWT(token, secret); err == nil {
			c.Set(string(ctxkeys.KeyUserID), claims.UserID)
			c.Set(string(ctxkeys.KeyTenantID), claims.TenantID)
			c.Set(string(ctxkeys.KeyRole), claims.Role)
			c.Set(string(ctxkeys.KeyEmail), claims.Email)
			c.Set(string(ctxkeys.KeyAuthType), "jwt")
			// The raw token rides along so the upstream clients can forward
			// the caller's session instead of escalating to the service token.
			c.Set(string(ctxkeys.KeyJWTToken), token)
			c.Next()
			return
		}

		// Fleet-internal callers present the shared service token instead of
		// a session.
		if expected := GetServiceToken(); expected != "" && ValidateServiceToken(token, expected) == nil {
			c.Set(string(ctxkeys.KeyUserID), serviceUserID)
			c.Set(string(ctxkeys.KeyTenantID), serviceTenantID)
			c.Set(string(ctxkeys.KeyRole), "service")
			c.Set(string(ctxkeys.KeyEmail), "service@internal")
			c.Set(string(ctxkeys.KeyAuthType), "service")
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
	}
}
