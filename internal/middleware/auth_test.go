package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"

	"messenger-api/internal/auth"
	"messenger-api/internal/data"
)

type touchRecorder struct {
	touched []bson.ObjectID
}

func (r *touchRecorder) TouchActivity(_ context.Context, userID bson.ObjectID, _ time.Time) error {
	r.touched = append(r.touched, userID)
	return nil
}

func TestAuthenticate(t *testing.T) {
	gin.SetMode(gin.TestMode)

	jwt := auth.NewJWTManager("test-secret", time.Hour)
	user := &data.User{
		ID:       bson.NewObjectID(),
		Username: "alice",
		Email:    "alice@example.com",
	}
	token, _, err := jwt.GenerateToken(user)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	rec := &touchRecorder{}
	r := gin.New()
	r.Use(Authenticate(jwt, rec))
	r.GET("/me", func(c *gin.Context) {
		id, claims, ok := Principal(c)
		if !ok {
			t.Fatal("Principal not set by middleware")
		}
		if id != user.ID || claims.Username != "alice" {
			t.Fatalf("wrong principal: id=%s claims=%+v", id.Hex(), claims)
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(rec.touched) != 1 || rec.touched[0] != user.ID {
		t.Fatalf("activity not touched for the principal: %v", rec.touched)
	}

	// missing header and garbage token are both 401
	for _, header := range []string{"", "Bearer not.a.token", "Basic abc"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		r.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, w.Code)
		}
	}
}
