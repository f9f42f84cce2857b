package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"messenger-api/internal/auth"
	"messenger-api/internal/data"
	"messenger-api/internal/middleware"
)

var testJWT = auth.NewJWTManager("handler-test-secret", time.Hour)

// authAs injects the authenticated identity the way the auth middleware does.
func authAs(user *data.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ClaimsKey, &auth.Claims{
			UserID:   user.ID.Hex(),
			Username: user.Username,
			Email:    user.Email,
		})
		c.Set(middleware.PrincipalIDKey, user.ID)
		c.Next()
	}
}

func testUser(username string) *data.User {
	return &data.User{
		ID:       bson.NewObjectID(),
		Username: username,
		Email:    username + "@example.com",
		Friends:  []data.Friend{},
		Chats:    []bson.ObjectID{},
		Preferences: data.Preferences{
			DisplayName: username,
		},
		LastActivity: time.Now(),
	}
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func envelopeData(t *testing.T, resp map[string]any) map[string]any {
	t.Helper()
	data, ok := resp["data"].(map[string]any)
	require.True(t, ok, "envelope has no data object: %v", resp)
	return data
}

func init() {
	gin.SetMode(gin.TestMode)
}
