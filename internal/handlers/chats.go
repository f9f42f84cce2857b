package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"

	"messenger-api/internal/apperr"
	"messenger-api/internal/auth"
	"messenger-api/internal/chatengine"
	"messenger-api/internal/data"
	"messenger-api/internal/observability"
	"messenger-api/internal/ws"
)

// ChatEngine is the slice of the chat engine the handler needs.
type ChatEngine interface {
	CreateIndividualChat(ctx context.Context, principalID, friendID bson.ObjectID) (*data.Chat, bool, error)
	CreateGroupChat(ctx context.Context, principalID bson.ObjectID, participantIDs []bson.ObjectID, name string) (*data.Chat, error)
	AddParticipants(ctx context.Context, principalID, chatID bson.ObjectID, newIDs []bson.ObjectID) (*data.Chat, error)
	GetChat(ctx context.Context, principalID, chatID bson.ObjectID) (*data.Chat, []*data.Message, error)
	PostMessage(ctx context.Context, principalID, chatID bson.ObjectID, draft chatengine.Draft) (*data.Message, error)
	UpdateChatImage(ctx context.Context, principalID, chatID bson.ObjectID, source, alt string) (*data.Image, error)
}

// ChatsHandler serves chat creation, membership, reads and message appends.
type ChatsHandler struct {
	responder
	engine ChatEngine
	hub    *ws.Hub
}

// NewChatsHandler builds a ChatsHandler.
func NewChatsHandler(engine ChatEngine, users UserGetter, jwt *auth.JWTManager, hub *ws.Hub) *ChatsHandler {
	return &ChatsHandler{
		responder: responder{users: users, jwt: jwt},
		engine:    engine,
		hub:       hub,
	}
}

type createIndividualRequest struct {
	FriendID string `json:"friendId" binding:"required"`
}

// CreateIndividual returns the individual chat with the given friend,
// creating it if none exists. Discovery of an existing chat answers 409 with
// the chat attached, so a repeat call is safe and tells the client what
// happened.
func (h *ChatsHandler) CreateIndividual(c *gin.Context) {
	principalID, ok := principal(c)
	if !ok {
		return
	}

	var req createIndividualRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "friendId is required")
		return
	}
	friendID, err := bson.ObjectIDFromHex(req.FriendID)
	if err != nil {
		h.fail(c, apperr.New(apperr.KindInvalidInput, "friendId is not a valid id"))
		return
	}

	chat, created, err := h.engine.CreateIndividualChat(c.Request.Context(), principalID, friendID)
	if err != nil {
		h.fail(c, err)
		return
	}

	if !created {
		h.ok(c, http.StatusConflict, "a chat with this friend already exists", gin.H{
			"chat": newChatView(chat),
		})
		return
	}

	h.notifyParticipants(chat, principalID, ws.Event{
		Type:    ws.EventChatCreated,
		Payload: gin.H{"chatId": chat.ID.Hex()},
	})
	h.ok(c, http.StatusCreated, "chat created", gin.H{"chat": newChatView(chat)})
}

type createGroupRequest struct {
	Name           string   `json:"name"`
	ParticipantIDs []string `json:"participantIds" binding:"required"`
}

// CreateGroup creates a group chat with the principal as admin.
func (h *ChatsHandler) CreateGroup(c *gin.Context) {
	principalID, ok := principal(c)
	if !ok {
		return
	}

	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "participantIds is required")
		return
	}
	ids, err := parseIDs(req.ParticipantIDs)
	if err != nil {
		h.fail(c, err)
		return
	}

	chat, err := h.engine.CreateGroupChat(c.Request.Context(), principalID, ids, req.Name)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.notifyParticipants(chat, principalID, ws.Event{
		Type:    ws.EventChatCreated,
		Payload: gin.H{"chatId": chat.ID.Hex()},
	})
	h.ok(c, http.StatusCreated, "group chat created", gin.H{"chat": newChatView(chat)})
}

type addParticipantsRequest struct {
	UserIDs []string `json:"userIds" binding:"required"`
}

// AddParticipants adds users to a chat. Adding to an individual chat answers
// with the new group chat it was promoted into.
func (h *ChatsHandler) AddParticipants(c *gin.Context) {
	principalID, ok := principal(c)
	if !ok {
		return
	}
	chatID, err := hexParam(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}

	var req addParticipantsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "userIds is required")
		return
	}
	ids, err := parseIDs(req.UserIDs)
	if err != nil {
		h.fail(c, err)
		return
	}

	target, err := h.engine.AddParticipants(c.Request.Context(), principalID, chatID, ids)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.notifyParticipants(target, principalID, ws.Event{
		Type:    ws.EventChatCreated,
		Payload: gin.H{"chatId": target.ID.Hex()},
	})
	h.ok(c, http.StatusOK, "participants added", gin.H{"chat": newChatView(target)})
}

// Get returns a chat with its messages, newest first, to a participant.
func (h *ChatsHandler) Get(c *gin.Context) {
	principalID, ok := principal(c)
	if !ok {
		return
	}
	chatID, err := hexParam(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}

	chat, msgs, err := h.engine.GetChat(c.Request.Context(), principalID, chatID)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.ok(c, http.StatusOK, "chat", gin.H{
		"chat":     newChatView(chat),
		"messages": newMessageViews(msgs),
	})
}

type postMessageRequest struct {
	Text       string `json:"text"`
	ImageID    string `json:"imageId"`
	ReplyingTo string `json:"replyingTo"`
}

// PostMessage appends a message to the chat's ledger and pushes it to the
// other participants, best effort.
func (h *ChatsHandler) PostMessage(c *gin.Context) {
	principalID, ok := principal(c)
	if !ok {
		return
	}
	chatID, err := hexParam(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}

	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid message body")
		return
	}

	draft := chatengine.Draft{Text: req.Text, ReplyingTo: req.ReplyingTo}
	if req.ImageID != "" {
		imgID, err := bson.ObjectIDFromHex(req.ImageID)
		if err != nil {
			h.fail(c, apperr.New(apperr.KindInvalidInput, "imageId is not a valid id"))
			return
		}
		draft.ImageID = &imgID
	}

	msg, err := h.engine.PostMessage(c.Request.Context(), principalID, chatID, draft)
	if err != nil {
		h.fail(c, err)
		return
	}
	observability.IncMessageAppended()

	// push to the other participants; the author gets the response body
	if chat, _, err := h.engine.GetChat(c.Request.Context(), principalID, chatID); err == nil {
		h.notifyParticipants(chat, principalID, ws.Event{
			Type:    ws.EventMessagePosted,
			Payload: gin.H{"chatId": chatID.Hex(), "message": newMessageView(msg)},
		})
	}

	h.ok(c, http.StatusCreated, "message sent", gin.H{"message": newMessageView(msg)})
}

type updateImageRequest struct {
	Source string `json:"source" binding:"required"`
	Alt    string `json:"alt"`
}

// UpdateImage swaps the chat's image.
func (h *ChatsHandler) UpdateImage(c *gin.Context) {
	principalID, ok := principal(c)
	if !ok {
		return
	}
	chatID, err := hexParam(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}

	var req updateImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "source is required")
		return
	}

	img, err := h.engine.UpdateChatImage(c.Request.Context(), principalID, chatID, req.Source, req.Alt)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.ok(c, http.StatusOK, "chat image updated", gin.H{"image": newImageView(img)})
}

func (h *ChatsHandler) notifyParticipants(chat *data.Chat, except bson.ObjectID, ev ws.Event) {
	recipients := make([]bson.ObjectID, 0, len(chat.Participants))
	for _, p := range chat.Participants {
		if p.UserID != except {
			recipients = append(recipients, p.UserID)
		}
	}
	h.hub.Notify(ev, recipients...)
	observability.IncWSEvent(ev.Type)
}

func parseIDs(raw []string) ([]bson.ObjectID, error) {
	out := make([]bson.ObjectID, 0, len(raw))
	for _, r := range raw {
		id, err := bson.ObjectIDFromHex(r)
		if err != nil {
			return nil, apperr.New(apperr.KindInvalidInput, "%s is not a valid user id", r)
		}
		out = append(out, id)
	}
	return out, nil
}
