package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"messenger-api/internal/auth"
	"messenger-api/internal/data"
	"messenger-api/internal/middleware"
	"messenger-api/internal/normalize"
)

// AccountStore is the slice of the users store the auth endpoints need.
type AccountStore interface {
	CreateUser(ctx context.Context, username, email, hashedPassword string) (*data.User, error)
	GetUserByEmail(ctx context.Context, email string) (*data.User, error)
}

// AuthHandler serves registration and login.
type AuthHandler struct {
	store   AccountStore
	jwt     *auth.JWTManager
	limiter *middleware.LimiterStore
}

// NewAuthHandler builds an AuthHandler.
func NewAuthHandler(store AccountStore, jwt *auth.JWTManager, limiter *middleware.LimiterStore) *AuthHandler {
	return &AuthHandler{store: store, jwt: jwt, limiter: limiter}
}

type registerRequest struct {
	Username string `json:"username" binding:"required,min=3,max=32"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// Register creates an account and returns a fresh token.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "username, email and password are required; password must be at least 8 characters")
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Printf("password hash failed: %v", err)
		internalError(c)
		return
	}

	user, err := h.store.CreateUser(c.Request.Context(), req.Username, req.Email, hashed)
	if err != nil {
		if errors.Is(err, data.ErrUserExists) {
			c.JSON(http.StatusConflict, gin.H{
				"statusCode": http.StatusConflict,
				"message":    "an account with that username or email already exists",
				"data":       gin.H{},
			})
			return
		}
		log.Printf("register failed: %v", err)
		internalError(c)
		return
	}

	token, expiresAt, err := h.jwt.GenerateToken(user)
	if err != nil {
		log.Printf("token mint failed for %s: %v", user.ID.Hex(), err)
		internalError(c)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"statusCode": http.StatusCreated,
		"message":    "account created",
		"data": gin.H{
			"user":      newUserView(user, time.Now()),
			"token":     token,
			"expiresAt": expiresAt,
		},
	})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login verifies credentials and returns a fresh token. Attempts are also
// rate-limited per account email so one address cannot be brute-forced from
// many source IPs.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and password are required")
		return
	}

	email := normalize.Email(req.Email)
	if !h.limiter.Allow("email:" + email) {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"statusCode": http.StatusTooManyRequests,
			"message":    "too many attempts for this account, try again later",
			"data":       gin.H{},
		})
		return
	}

	user, err := h.store.GetUserByEmail(c.Request.Context(), email)
	if err != nil {
		if errors.Is(err, data.ErrUserNotFound) {
			invalidCredentials(c)
			return
		}
		log.Printf("login lookup failed: %v", err)
		internalError(c)
		return
	}

	if err := auth.CheckPassword(user.Password, req.Password); err != nil {
		invalidCredentials(c)
		return
	}

	token, expiresAt, err := h.jwt.GenerateToken(user)
	if err != nil {
		log.Printf("token mint failed for %s: %v", user.ID.Hex(), err)
		internalError(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"statusCode": http.StatusOK,
		"message":    "logged in",
		"data": gin.H{
			"user":      newUserView(user, time.Now()),
			"token":     token,
			"expiresAt": expiresAt,
		},
	})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"statusCode": http.StatusBadRequest,
		"message":    msg,
		"data":       gin.H{},
	})
}

func internalError(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, gin.H{
		"statusCode": http.StatusInternalServerError,
		"message":    "something went wrong, try again later",
		"data":       gin.H{},
	})
}

// invalidCredentials deliberately does not reveal whether the account exists.
func invalidCredentials(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"statusCode": http.StatusUnauthorized,
		"message":    "invalid email or password",
		"data":       gin.H{},
	})
}
