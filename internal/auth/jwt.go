package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/v2/bson"
	"golang.org/x/crypto/bcrypt"

	"messenger-api/internal/data"
	"messenger-api/internal/normalize"
)

// JWTManager signs and validates the session tokens used by the API.
type JWTManager struct {
	secretKey string        // Secret key for HMAC signing (from environment)
	duration  time.Duration // How long tokens are valid
}

// Claims is the custom JWT payload. It embeds mutable profile fields, which
// is why every mutating handler re-mints the token after the operation.
type Claims struct {
	UserID               string `json:"user_id"` // MongoDB ObjectID as hex string
	Username             string `json:"username"`
	Email                string `json:"email"`
	DisplayName          string `json:"display_name"`
	jwt.RegisteredClaims        // Includes ExpiresAt, IssuedAt, etc.
}

// NewJWTManager returns a configured JWTManager.
func NewJWTManager(secretKey string, duration time.Duration) *JWTManager {
	return &JWTManager{
		secretKey: secretKey,
		duration:  duration,
	}
}

// GenerateToken issues a signed JWT for a user, embedding the profile fields
// the credential carries.
func (m *JWTManager) GenerateToken(user *data.User) (string, time.Time, error) {
	expiresAt := time.Now().Add(m.duration)

	claims := &Claims{
		UserID:      user.ID.Hex(),
		Username:    normalize.Username(user.Username),
		Email:       normalize.Email(user.Email),
		DisplayName: user.Preferences.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(m.secretKey))
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt, nil
}

// VerifyToken parses and validates a token and returns its claims.
func (m *JWTManager) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// reject tokens signed with anything but HMAC
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.secretKey), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// PrincipalID decodes the subject user id carried in the claims.
func (c *Claims) PrincipalID() (bson.ObjectID, error) {
	return bson.ObjectIDFromHex(c.UserID)
}

// HashPassword returns a bcrypt hash for the provided plaintext.
func HashPassword(password string) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedPassword), nil
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func CheckPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
