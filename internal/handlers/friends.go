package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"

	"messenger-api/internal/auth"
	"messenger-api/internal/data"
	"messenger-api/internal/friendship"
	"messenger-api/internal/ws"
)

// FriendshipManager is the slice of the friendship manager the handler needs.
type FriendshipManager interface {
	SendRequest(ctx context.Context, requesterID bson.ObjectID, targetUsername string) (friendship.RequestOutcome, *data.User, error)
	Accept(ctx context.Context, recipientID bson.ObjectID, requesterUsername string) (*data.User, error)
	Decline(ctx context.Context, recipientID bson.ObjectID, requesterUsername string) (*data.User, error)
}

// FriendsHandler serves the friendship state machine endpoints.
type FriendsHandler struct {
	responder
	manager FriendshipManager
	hub     *ws.Hub
}

// NewFriendsHandler builds a FriendsHandler.
func NewFriendsHandler(manager FriendshipManager, users UserGetter, jwt *auth.JWTManager, hub *ws.Hub) *FriendsHandler {
	return &FriendsHandler{
		responder: responder{users: users, jwt: jwt},
		manager:   manager,
		hub:       hub,
	}
}

type friendRequestBody struct {
	Username string `json:"username" binding:"required"`
}

// SendRequest records a pending friend request toward the named user, or
// upgrades straight to friendship when the counterpart request is already
// pending.
func (h *FriendsHandler) SendRequest(c *gin.Context) {
	principalID, ok := principal(c)
	if !ok {
		return
	}

	var req friendRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "username is required")
		return
	}

	outcome, target, err := h.manager.SendRequest(c.Request.Context(), principalID, req.Username)
	if err != nil {
		h.fail(c, err)
		return
	}

	switch outcome {
	case friendship.OutcomeAccepted:
		h.hub.Notify(ws.Event{Type: ws.EventFriendAccepted, Payload: gin.H{"userId": principalID.Hex()}}, target.ID)
		h.ok(c, http.StatusOK, "you are now friends with "+target.Username, gin.H{
			"outcome": string(outcome),
			"user":    newUserView(target, time.Now()),
		})
	default:
		h.hub.Notify(ws.Event{Type: ws.EventFriendRequest, Payload: gin.H{"userId": principalID.Hex()}}, target.ID)
		h.ok(c, http.StatusCreated, "friend request sent to "+target.Username, gin.H{
			"outcome": string(outcome),
		})
	}
}

// Accept turns a pending inbound request into a friendship.
func (h *FriendsHandler) Accept(c *gin.Context) {
	principalID, ok := principal(c)
	if !ok {
		return
	}

	requester, err := h.manager.Accept(c.Request.Context(), principalID, c.Param("username"))
	if err != nil {
		h.fail(c, err)
		return
	}

	h.hub.Notify(ws.Event{Type: ws.EventFriendAccepted, Payload: gin.H{"userId": principalID.Hex()}}, requester.ID)
	h.ok(c, http.StatusOK, "you are now friends with "+requester.Username, gin.H{
		"user": newUserView(requester, time.Now()),
	})
}

// Decline drops a pending inbound request.
func (h *FriendsHandler) Decline(c *gin.Context) {
	principalID, ok := principal(c)
	if !ok {
		return
	}

	requester, err := h.manager.Decline(c.Request.Context(), principalID, c.Param("username"))
	if err != nil {
		h.fail(c, err)
		return
	}

	h.ok(c, http.StatusOK, "friend request from "+requester.Username+" declined", gin.H{})
}
