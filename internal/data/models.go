package data

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// FriendStatus marks the state of a friends[] entry. Unfriending flips the
// status instead of removing the entry so the chat pointer survives.
type FriendStatus string

const (
	FriendStatusNormal     FriendStatus = "normal"
	FriendStatusUnfriended FriendStatus = "unfriended"
)

// Friend is one side of a friendship stored on a user document. The same
// entry is mirrored on the other user; both sides must agree on ChatID.
type Friend struct {
	UserID bson.ObjectID  `bson:"user_id"`
	ChatID *bson.ObjectID `bson:"chat_id,omitempty"` // individual chat for the pair, nil until one exists
	Since  time.Time      `bson:"since"`
	Status FriendStatus   `bson:"status"`
}

// Preferences holds per-user display settings. ExplicitStatus overrides the
// derived presence status when set.
type Preferences struct {
	DisplayName    string         `bson:"display_name"`
	TagLine        string         `bson:"tag_line"`
	ProfileImageID *bson.ObjectID `bson:"profile_image_id,omitempty"`
	ExplicitStatus string         `bson:"explicit_status,omitempty"` // online|away|busy|offline, empty = derive
	Theme          string         `bson:"theme"`
}

// User maps to the users collection.
type User struct {
	ID             bson.ObjectID   `bson:"_id,omitempty"`
	Username       string          `bson:"username"`
	Email          string          `bson:"email"`
	Password       string          `bson:"password"`
	Friends        []Friend        `bson:"friends"`
	FriendRequests []bson.ObjectID `bson:"friend_requests"` // pending inbound requester ids
	Chats          []bson.ObjectID `bson:"chats"`
	Preferences    Preferences     `bson:"preferences"`
	LastActivity   time.Time       `bson:"last_activity"`
	CreatedAt      time.Time       `bson:"created_at"`
	UpdatedAt      time.Time       `bson:"updated_at"`
}

// FriendEntry returns the friends[] entry for the given user, or nil.
func (u *User) FriendEntry(id bson.ObjectID) *Friend {
	for i := range u.Friends {
		if u.Friends[i].UserID == id {
			return &u.Friends[i]
		}
	}
	return nil
}

// HasFriend reports whether id has a friends[] entry on this user.
func (u *User) HasFriend(id bson.ObjectID) bool {
	return u.FriendEntry(id) != nil
}

// HasFriendRequest reports whether a pending inbound request from id exists.
func (u *User) HasFriendRequest(id bson.ObjectID) bool {
	for _, r := range u.FriendRequests {
		if r == id {
			return true
		}
	}
	return false
}

// presenceWindow is how recently a user must have been active to count as
// online when no explicit status is set.
const presenceWindow = 300 * time.Second

// PresenceStatus derives the visible status from the explicit override plus
// time since last activity. Pure function, computed at read time, never stored.
func PresenceStatus(explicit string, lastActivity, now time.Time) string {
	if explicit != "" {
		return explicit
	}
	if now.Sub(lastActivity) < presenceWindow {
		return "online"
	}
	return "away"
}

// Status returns the user's derived presence status as of now.
func (u *User) Status(now time.Time) string {
	return PresenceStatus(u.Preferences.ExplicitStatus, u.LastActivity, now)
}

// ChatType distinguishes individual (two-party) chats from groups. An
// individual chat can be promoted into a new group chat; a group never
// becomes individual.
type ChatType string

const (
	ChatTypeIndividual ChatType = "individual"
	ChatTypeGroup      ChatType = "group"
)

// Role is a participant's permission level within a chat.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleGuest     Role = "guest"
)

// CanManageParticipants is the single capability predicate for membership
// changes; call sites never compare roles inline.
func CanManageParticipants(r Role) bool {
	return r == RoleAdmin || r == RoleModerator
}

// Participant is a user's membership entry inside a chat, unique per UserID.
type Participant struct {
	UserID   bson.ObjectID `bson:"user_id"`
	Nickname string        `bson:"nickname"`
	Role     Role          `bson:"role"`
	Muted    bool          `bson:"muted"`
}

// Chat maps to the chats collection. Messages holds message ids newest-first.
type Chat struct {
	ID           bson.ObjectID   `bson:"_id,omitempty"`
	Type         ChatType        `bson:"type"`
	Name         string          `bson:"name,omitempty"`
	ImageID      *bson.ObjectID  `bson:"image_id,omitempty"`
	Participants []Participant   `bson:"participants"`
	Messages     []bson.ObjectID `bson:"messages"`
	LastActivity time.Time       `bson:"last_activity"`
	CreatedAt    time.Time       `bson:"created_at"`
	UpdatedAt    time.Time       `bson:"updated_at"`
}

// ParticipantEntry returns the participant entry for the given user, or nil.
func (c *Chat) ParticipantEntry(id bson.ObjectID) *Participant {
	for i := range c.Participants {
		if c.Participants[i].UserID == id {
			return &c.Participants[i]
		}
	}
	return nil
}

// HasParticipant reports whether the user is currently in the chat.
func (c *Chat) HasParticipant(id bson.ObjectID) bool {
	return c.ParticipantEntry(id) != nil
}

// Message maps to the messages collection. At least one of Text/ImageID is
// set. Deleted is a soft-delete marker; documents are never removed.
type Message struct {
	ID         bson.ObjectID  `bson:"_id,omitempty"`
	Author     bson.ObjectID  `bson:"author"`
	Text       string         `bson:"text,omitempty"`
	ImageID    *bson.ObjectID `bson:"image_id,omitempty"`
	ReplyingTo *bson.ObjectID `bson:"replying_to,omitempty"`
	Deleted    bool           `bson:"deleted"`
	CreatedAt  time.Time      `bson:"created_at"`
}

// Image maps to the images collection. Source is an asset reference, not
// binary data; binary storage lives outside this service.
type Image struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	Source    string        `bson:"source"`
	Alt       string        `bson:"alt"`
	CreatedAt time.Time     `bson:"created_at"`
}
