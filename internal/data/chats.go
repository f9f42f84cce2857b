package data

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// ChatsStore performs chat DB operations against the chats collection.
type ChatsStore struct {
	coll *mongo.Collection
}

// NewChatsStore returns a ChatsStore using the given collection.
func NewChatsStore(coll *mongo.Collection) *ChatsStore {
	return &ChatsStore{coll: coll}
}

// InsertChat persists a new chat document and returns it with the generated id.
func (c *ChatsStore) InsertChat(ctx context.Context, chat *Chat) (*Chat, error) {
	now := time.Now()
	chat.CreatedAt = now
	chat.UpdatedAt = now
	if chat.LastActivity.IsZero() {
		chat.LastActivity = now
	}
	if chat.Messages == nil {
		chat.Messages = []bson.ObjectID{}
	}

	result, err := c.coll.InsertOne(ctx, chat)
	if err != nil {
		return nil, err
	}
	chat.ID = result.InsertedID.(bson.ObjectID)
	return chat, nil
}

// GetChatByID finds a chat by ObjectID.
func (c *ChatsStore) GetChatByID(ctx context.Context, id bson.ObjectID) (*Chat, error) {
	var chat Chat
	err := c.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&chat)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	return &chat, nil
}

// FindIndividualChatByPair looks up the individual chat whose participant set
// is exactly {a, b}. The $size guard plus $all makes the match exact: two
// participants, both of them the requested pair.
func (c *ChatsStore) FindIndividualChatByPair(ctx context.Context, a, b bson.ObjectID) (*Chat, error) {
	filter := bson.M{
		"type":                 ChatTypeIndividual,
		"participants":         bson.M{"$size": 2},
		"participants.user_id": bson.M{"$all": bson.A{a, b}},
	}

	var chat Chat
	err := c.coll.FindOne(ctx, filter).Decode(&chat)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	return &chat, nil
}

// AddParticipants pushes new participant entries onto the chat. The caller is
// responsible for filtering out users already present; the filter here only
// checks the chat still exists.
func (c *ChatsStore) AddParticipants(ctx context.Context, chatID bson.ObjectID, parts []Participant) (bool, error) {
	result, err := c.coll.UpdateOne(ctx,
		bson.M{"_id": chatID},
		bson.M{
			"$push": bson.M{"participants": bson.M{"$each": parts}},
			"$set":  bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}

// PrependMessage inserts a message id at position 0 of the chat's message
// list (newest-first ordering) and bumps last_activity.
func (c *ChatsStore) PrependMessage(ctx context.Context, chatID, messageID bson.ObjectID, at time.Time) (bool, error) {
	result, err := c.coll.UpdateOne(ctx,
		bson.M{"_id": chatID},
		bson.M{
			"$push": bson.M{"messages": bson.M{"$each": bson.A{messageID}, "$position": 0}},
			"$set":  bson.M{"last_activity": at, "updated_at": at},
		},
	)
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}

// SetImage points the chat at a new image document.
func (c *ChatsStore) SetImage(ctx context.Context, chatID, imageID bson.ObjectID) (bool, error) {
	result, err := c.coll.UpdateOne(ctx,
		bson.M{"_id": chatID},
		bson.M{"$set": bson.M{"image_id": imageID, "updated_at": time.Now()}},
	)
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}
