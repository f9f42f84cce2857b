// Package handlers is the HTTP surface: request binding, response envelopes
// and the translation from taxonomy errors to status codes. All domain logic
// lives in the engines underneath.
package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"

	"messenger-api/internal/apperr"
	"messenger-api/internal/auth"
	"messenger-api/internal/data"
	"messenger-api/internal/middleware"
)

// UserGetter loads the current user document for token re-minting.
type UserGetter interface {
	GetUserByID(ctx context.Context, id bson.ObjectID) (*data.User, error)
}

// responder writes the response envelope every endpoint shares:
// {"statusCode": n, "message": s, "data": {..., "token": t}}.
// The token embeds mutable profile state, so it is re-minted from the current
// user document on every response, failure paths included.
type responder struct {
	users UserGetter
	jwt   *auth.JWTManager
}

func (r *responder) ok(c *gin.Context, status int, message string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	r.attachToken(c, data)
	c.JSON(status, gin.H{
		"statusCode": status,
		"message":    message,
		"data":       data,
	})
}

func (r *responder) fail(c *gin.Context, err error) {
	status := apperr.StatusCode(err)
	if status >= http.StatusInternalServerError {
		log.Printf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}

	data := gin.H{}
	// a 401 means the principal is gone; minting for it would be pointless
	if status != http.StatusUnauthorized {
		r.attachToken(c, data)
	}
	c.JSON(status, gin.H{
		"statusCode": status,
		"message":    apperr.PublicMessage(err),
		"data":       data,
	})
}

func (r *responder) attachToken(c *gin.Context, data gin.H) {
	principalID, _, ok := middleware.Principal(c)
	if !ok {
		return
	}
	user, err := r.users.GetUserByID(c.Request.Context(), principalID)
	if err != nil {
		log.Printf("token refresh skipped for %s: %v", principalID.Hex(), err)
		return
	}
	token, _, err := r.jwt.GenerateToken(user)
	if err != nil {
		log.Printf("token refresh skipped for %s: %v", principalID.Hex(), err)
		return
	}
	data["token"] = token
}

// principal pulls the authenticated id set by the middleware. Routes behind
// Authenticate always have one; a miss is a wiring error.
func principal(c *gin.Context) (bson.ObjectID, bool) {
	id, _, ok := middleware.Principal(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"statusCode": http.StatusUnauthorized,
			"message":    "authentication required",
			"data":       gin.H{},
		})
		return bson.ObjectID{}, false
	}
	return id, true
}

func hexParam(c *gin.Context, name string) (bson.ObjectID, error) {
	id, err := bson.ObjectIDFromHex(c.Param(name))
	if err != nil {
		return bson.ObjectID{}, apperr.New(apperr.KindInvalidInput, "%s is not a valid id", name)
	}
	return id, nil
}

// view DTOs: stored documents are never serialized raw.

type friendView struct {
	UserID string    `json:"userId"`
	ChatID string    `json:"chatId,omitempty"`
	Since  time.Time `json:"since"`
	Status string    `json:"status"`
}

type userView struct {
	ID             string       `json:"id"`
	Username       string       `json:"username"`
	Email          string       `json:"email"`
	DisplayName    string       `json:"displayName"`
	TagLine        string       `json:"tagLine,omitempty"`
	ProfileImageID string       `json:"profileImageId,omitempty"`
	Theme          string       `json:"theme,omitempty"`
	Status         string       `json:"status"`
	Friends        []friendView `json:"friends"`
	FriendRequests []string     `json:"friendRequests"`
	Chats          []string     `json:"chats"`
}

func newUserView(u *data.User, now time.Time) userView {
	v := userView{
		ID:             u.ID.Hex(),
		Username:       u.Username,
		Email:          u.Email,
		DisplayName:    u.Preferences.DisplayName,
		TagLine:        u.Preferences.TagLine,
		Theme:          u.Preferences.Theme,
		Status:         u.Status(now),
		Friends:        make([]friendView, 0, len(u.Friends)),
		FriendRequests: make([]string, 0, len(u.FriendRequests)),
		Chats:          make([]string, 0, len(u.Chats)),
	}
	if u.Preferences.ProfileImageID != nil {
		v.ProfileImageID = u.Preferences.ProfileImageID.Hex()
	}
	for _, f := range u.Friends {
		fv := friendView{UserID: f.UserID.Hex(), Since: f.Since, Status: string(f.Status)}
		if f.ChatID != nil {
			fv.ChatID = f.ChatID.Hex()
		}
		v.Friends = append(v.Friends, fv)
	}
	for _, r := range u.FriendRequests {
		v.FriendRequests = append(v.FriendRequests, r.Hex())
	}
	for _, ch := range u.Chats {
		v.Chats = append(v.Chats, ch.Hex())
	}
	return v
}

type participantView struct {
	UserID   string `json:"userId"`
	Nickname string `json:"nickname"`
	Role     string `json:"role"`
	Muted    bool   `json:"muted"`
}

type chatView struct {
	ID           string            `json:"id"`
	Type         string            `json:"type"`
	Name         string            `json:"name,omitempty"`
	ImageID      string            `json:"imageId,omitempty"`
	Participants []participantView `json:"participants"`
	Messages     []string          `json:"messages"`
	LastActivity time.Time         `json:"lastActivity"`
	CreatedAt    time.Time         `json:"createdAt"`
}

func newChatView(ch *data.Chat) chatView {
	v := chatView{
		ID:           ch.ID.Hex(),
		Type:         string(ch.Type),
		Name:         ch.Name,
		Participants: make([]participantView, 0, len(ch.Participants)),
		Messages:     make([]string, 0, len(ch.Messages)),
		LastActivity: ch.LastActivity,
		CreatedAt:    ch.CreatedAt,
	}
	if ch.ImageID != nil {
		v.ImageID = ch.ImageID.Hex()
	}
	for _, p := range ch.Participants {
		v.Participants = append(v.Participants, participantView{
			UserID:   p.UserID.Hex(),
			Nickname: p.Nickname,
			Role:     string(p.Role),
			Muted:    p.Muted,
		})
	}
	for _, m := range ch.Messages {
		v.Messages = append(v.Messages, m.Hex())
	}
	return v
}

type messageView struct {
	ID         string    `json:"id"`
	Author     string    `json:"author"`
	Text       string    `json:"text,omitempty"`
	ImageID    string    `json:"imageId,omitempty"`
	ReplyingTo string    `json:"replyingTo,omitempty"`
	Deleted    bool      `json:"deleted"`
	CreatedAt  time.Time `json:"createdAt"`
}

func newMessageView(m *data.Message) messageView {
	v := messageView{
		ID:        m.ID.Hex(),
		Author:    m.Author.Hex(),
		Text:      m.Text,
		Deleted:   m.Deleted,
		CreatedAt: m.CreatedAt,
	}
	if m.ImageID != nil {
		v.ImageID = m.ImageID.Hex()
	}
	if m.ReplyingTo != nil {
		v.ReplyingTo = m.ReplyingTo.Hex()
	}
	return v
}

type imageView struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Alt    string `json:"alt,omitempty"`
}

func newImageView(img *data.Image) imageView {
	return imageView{ID: img.ID.Hex(), Source: img.Source, Alt: img.Alt}
}

func newMessageViews(msgs []*data.Message) []messageView {
	out := make([]messageView, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, newMessageView(m))
	}
	return out
}
