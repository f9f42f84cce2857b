// Package data provides DB models and stores.
package data

import (
	"context"
	"errors"
	"time"

	"messenger-api/internal/normalize"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Sentinel errors returned by the stores. Engines translate these into the
// taxonomy before they cross the component boundary.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
	ErrChatNotFound = errors.New("chat not found")
)

// UsersStore performs user DB operations against the users collection.
//
// Mutating methods that target a single document return a matched flag
// reporting whether any document satisfied the filter. Callers use that flag
// to attribute failures to the specific side of a two-document update.
type UsersStore struct {
	coll *mongo.Collection
}

// NewUsersStore returns a UsersStore using the provided collection.
func NewUsersStore(coll *mongo.Collection) *UsersStore {
	return &UsersStore{coll: coll}
}

// CreateUser inserts a new user document with an already-hashed password.
// Username and email are stored normalized; relationship arrays start empty
// so array update operators behave predictably from the first mutation.
func (u *UsersStore) CreateUser(ctx context.Context, username, email, hashedPassword string) (*User, error) {
	now := time.Now()
	user := &User{
		Username:       normalize.Username(username),
		Email:          normalize.Email(email),
		Password:       hashedPassword,
		Friends:        []Friend{},
		FriendRequests: []bson.ObjectID{},
		Chats:          []bson.ObjectID{},
		Preferences: Preferences{
			DisplayName: username,
			Theme:       "default",
		},
		LastActivity: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	result, err := u.coll.InsertOne(ctx, user)
	if err != nil {
		// unique index on username/email rejects duplicate registration
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrUserExists
		}
		return nil, err
	}

	user.ID = result.InsertedID.(bson.ObjectID)
	return user, nil
}

// GetUserByID finds a user by ObjectID.
func (u *UsersStore) GetUserByID(ctx context.Context, id bson.ObjectID) (*User, error) {
	var user User
	err := u.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByUsername finds a user by normalized username.
func (u *UsersStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	err := u.coll.FindOne(ctx, bson.M{"username": normalize.Username(username)}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByEmail finds a user by normalized email.
func (u *UsersStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := u.coll.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// AddFriendRequest records a pending inbound request from requesterID on the
// target's document. $addToSet makes repeated sends idempotent.
func (u *UsersStore) AddFriendRequest(ctx context.Context, targetID, requesterID bson.ObjectID) (bool, error) {
	result, err := u.coll.UpdateOne(ctx,
		bson.M{"_id": targetID},
		bson.M{
			"$addToSet": bson.M{"friend_requests": requesterID},
			"$set":      bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}

// RemoveFriendRequest pulls a pending request from the user's document.
// The filter requires the request to be present, so matched=false means either
// the user is gone or the request was never pending.
func (u *UsersStore) RemoveFriendRequest(ctx context.Context, userID, requesterID bson.ObjectID) (bool, error) {
	result, err := u.coll.UpdateOne(ctx,
		bson.M{"_id": userID, "friend_requests": requesterID},
		bson.M{
			"$pull": bson.M{"friend_requests": requesterID},
			"$set":  bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}

// AddFriend pushes a friends[] entry onto the user's document. The filter
// excludes documents that already carry an entry for the same user, keeping
// friends unique per id. Any pending request from that user is pulled in the
// same update: friendship and a pending request are mutually exclusive.
func (u *UsersStore) AddFriend(ctx context.Context, userID bson.ObjectID, entry Friend) (bool, error) {
	result, err := u.coll.UpdateOne(ctx,
		bson.M{"_id": userID, "friends.user_id": bson.M{"$ne": entry.UserID}},
		bson.M{
			"$push": bson.M{"friends": entry},
			"$pull": bson.M{"friend_requests": entry.UserID},
			"$set":  bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}

// SetFriendChat points the friends[] entry for friendID at the given chat and
// adds the chat to the user's chat set in the same update, so the two
// denormalized references can never disagree within one document.
func (u *UsersStore) SetFriendChat(ctx context.Context, userID, friendID, chatID bson.ObjectID) (bool, error) {
	result, err := u.coll.UpdateOne(ctx,
		bson.M{"_id": userID, "friends.user_id": friendID},
		bson.M{
			"$set":      bson.M{"friends.$.chat_id": chatID, "updated_at": time.Now()},
			"$addToSet": bson.M{"chats": chatID},
		},
	)
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}

// AddChat adds a chat id to the user's chat set.
func (u *UsersStore) AddChat(ctx context.Context, userID, chatID bson.ObjectID) (bool, error) {
	result, err := u.coll.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{
			"$addToSet": bson.M{"chats": chatID},
			"$set":      bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}

// SetProfileImage points the user's profile image at the given image id.
func (u *UsersStore) SetProfileImage(ctx context.Context, userID, imageID bson.ObjectID) (bool, error) {
	result, err := u.coll.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"preferences.profile_image_id": imageID, "updated_at": time.Now()}},
	)
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}

// TouchActivity bumps last_activity; feeds the derived presence status.
func (u *UsersStore) TouchActivity(ctx context.Context, userID bson.ObjectID, at time.Time) error {
	_, err := u.coll.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"last_activity": at}},
	)
	return err
}
