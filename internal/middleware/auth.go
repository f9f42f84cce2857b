package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"

	"messenger-api/internal/auth"
)

// Context keys under which Authenticate stores the verified identity.
const (
	ClaimsKey      = "claims"
	PrincipalIDKey = "principalID"
)

// ActivityToucher bumps a user's lastActivity timestamp.
type ActivityToucher interface {
	TouchActivity(ctx context.Context, userID bson.ObjectID, at time.Time) error
}

// Authenticate verifies the Bearer token, stores the claims and principal id
// on the request context, and bumps the principal's lastActivity. Any
// authenticated request counts as activity; presence is derived from it at
// read time.
func Authenticate(jwt *auth.JWTManager, toucher ActivityToucher) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			abortUnauthorized(c, "missing or malformed authorization header")
			return
		}

		claims, err := jwt.VerifyToken(token)
		if err != nil {
			abortUnauthorized(c, "invalid or expired token")
			return
		}

		principalID, err := claims.PrincipalID()
		if err != nil {
			abortUnauthorized(c, "invalid or expired token")
			return
		}

		// best effort: a failed bump must not fail the request
		if err := toucher.TouchActivity(c.Request.Context(), principalID, time.Now()); err != nil {
			log.Printf("failed to touch activity for %s: %v", principalID.Hex(), err)
		}

		c.Set(ClaimsKey, claims)
		c.Set(PrincipalIDKey, principalID)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"statusCode": http.StatusUnauthorized,
		"message":    msg,
	})
}

// Principal returns the authenticated identity stored by Authenticate.
func Principal(c *gin.Context) (bson.ObjectID, *auth.Claims, bool) {
	id, ok := c.Get(PrincipalIDKey)
	if !ok {
		return bson.ObjectID{}, nil, false
	}
	claims, ok := c.Get(ClaimsKey)
	if !ok {
		return bson.ObjectID{}, nil, false
	}
	return id.(bson.ObjectID), claims.(*auth.Claims), true
}
