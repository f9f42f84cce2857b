package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"

	"messenger-api/internal/apperr"
	"messenger-api/internal/auth"
	"messenger-api/internal/data"
)

// ProfileImageUpdater swaps the acting user's profile image.
type ProfileImageUpdater interface {
	UpdateProfileImage(ctx context.Context, principalID bson.ObjectID, source, alt string) (*data.Image, error)
}

// UsersHandler serves the authenticated user's own profile.
type UsersHandler struct {
	responder
	images ProfileImageUpdater
}

// NewUsersHandler builds a UsersHandler.
func NewUsersHandler(users UserGetter, jwt *auth.JWTManager, images ProfileImageUpdater) *UsersHandler {
	return &UsersHandler{
		responder: responder{users: users, jwt: jwt},
		images:    images,
	}
}

// Me returns the principal's profile with the presence status derived at read
// time.
func (h *UsersHandler) Me(c *gin.Context) {
	principalID, ok := principal(c)
	if !ok {
		return
	}

	user, err := h.users.GetUserByID(c.Request.Context(), principalID)
	if err != nil {
		if errors.Is(err, data.ErrUserNotFound) {
			h.fail(c, apperr.New(apperr.KindPrincipalNotFound, "your account no longer exists"))
			return
		}
		h.fail(c, apperr.Wrap(apperr.KindDependencyFailure, err, "failed to load your account"))
		return
	}

	h.ok(c, http.StatusOK, "profile", gin.H{"user": newUserView(user, time.Now())})
}

// UpdateImage swaps the principal's profile image.
func (h *UsersHandler) UpdateImage(c *gin.Context) {
	principalID, ok := principal(c)
	if !ok {
		return
	}

	var req updateImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "source is required")
		return
	}

	img, err := h.images.UpdateProfileImage(c.Request.Context(), principalID, req.Source, req.Alt)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.ok(c, http.StatusOK, "profile image updated", gin.H{"image": newImageView(img)})
}
