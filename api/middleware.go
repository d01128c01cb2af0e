package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/soundbridge/gigdispatch/core/faults"
)

// Context keys for gin.Context.
const (
	contextUserIDKey = "userID"
	contextAdminKey  = "admin"
)

// authRequired verifies the bearer token and stores the caller identity on
// the context.
func authRequired(tokens *TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		userID, admin, err := tokens.Parse(strings.TrimPrefix(auth, "Bearer "))
		if err != nil || userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(contextUserIDKey, userID)
		c.Set(contextAdminKey, admin)
		c.Next()
	}
}

// adminRequired rejects callers whose token lacks the admin claim. Must run
// after authRequired.
func adminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool(contextAdminKey) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "administrator access required"})
			return
		}
		c.Next()
	}
}

func callerID(c *gin.Context) string {
	return c.GetString(contextUserIDKey)
}

// idempotencyKey reads the Idempotency-Key header required on financial
// operations.
func idempotencyKey(c *gin.Context) string {
	return c.GetHeader("Idempotency-Key")
}

// writeErr maps the error taxonomy onto HTTP statuses.
func writeErr(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch faults.KindOf(err) {
	case faults.Validation:
		status = http.StatusBadRequest
	case faults.NotFound:
		status = http.StatusNotFound
	case faults.Conflict:
		status = http.StatusConflict
	case faults.InvalidState:
		status = http.StatusUnprocessableEntity
	case faults.Upstream:
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
