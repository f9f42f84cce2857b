package data

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// MessagesStore provides message database operations.
type MessagesStore struct {
	coll *mongo.Collection
}

// NewMessagesStore returns a MessagesStore using the given collection.
func NewMessagesStore(coll *mongo.Collection) *MessagesStore {
	return &MessagesStore{coll: coll}
}

// InsertMessage persists a message document and returns it with the
// generated id. Messages are append-only; updates never happen here.
func (m *MessagesStore) InsertMessage(ctx context.Context, msg *Message) (*Message, error) {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	result, err := m.coll.InsertOne(ctx, msg)
	if err != nil {
		return nil, err
	}
	msg.ID = result.InsertedID.(bson.ObjectID)
	return msg, nil
}

// GetMessagesByIDs loads the given messages and returns them in the order of
// the ids slice, preserving the chat's newest-first ledger ordering. Missing
// ids are skipped; an orphaned reference is not an error for readers.
func (m *MessagesStore) GetMessagesByIDs(ctx context.Context, ids []bson.ObjectID) ([]*Message, error) {
	if len(ids) == 0 {
		return []*Message{}, nil
	}

	cursor, err := m.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var found []*Message
	if err = cursor.All(ctx, &found); err != nil {
		return nil, err
	}

	// $in returns documents in storage order; rebuild the ledger order
	byID := make(map[bson.ObjectID]*Message, len(found))
	for _, msg := range found {
		byID[msg.ID] = msg
	}
	ordered := make([]*Message, 0, len(ids))
	for _, id := range ids {
		if msg, ok := byID[id]; ok {
			ordered = append(ordered, msg)
		}
	}
	return ordered, nil
}
