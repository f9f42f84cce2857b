// Package db manages MongoDB connections, collections and transactions.
package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Client wraps mongo.Client and exposes the service's collections plus a
// transaction runner. All multi-document invariants in the engines go through
// WithTransaction; nothing else provides cross-document atomicity.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects to MongoDB, pings it and returns a Client bound to the given
// database name.
func New(ctx context.Context, mongoURI, dbName string) (*Client, error) {
	opts := options.Client().
		ApplyURI(mongoURI).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping verifies the connection actually works before we hand it out
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &Client{
		client: client,
		db:     client.Database(dbName),
	}, nil
}

// UsersCollection returns the users collection.
func (c *Client) UsersCollection() *mongo.Collection {
	return c.db.Collection("users")
}

// ChatsCollection returns the chats collection.
func (c *Client) ChatsCollection() *mongo.Collection {
	return c.db.Collection("chats")
}

// MessagesCollection returns the messages collection.
func (c *Client) MessagesCollection() *mongo.Collection {
	return c.db.Collection("messages")
}

// ImagesCollection returns the images collection.
func (c *Client) ImagesCollection() *mongo.Collection {
	return c.db.Collection("images")
}

// WithTransaction runs fn inside a multi-document transaction. The session
// context passed to fn must be used for every store call made within fn;
// any error returned by fn aborts the transaction, a nil return commits it.
func (c *Client) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := c.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx context.Context) (any, error) {
		return nil, fn(sessCtx)
	})
	return err
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// CreateIndexes creates the indexes the stores rely on.
func (c *Client) CreateIndexes(ctx context.Context) error {
	// Users: usernames and emails are unique account identifiers. Lookups by
	// username drive the friendship flows, lookups by email drive login.
	userIndexes := []mongo.IndexModel{
		{
			Keys:    map[string]int{"username": 1},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    map[string]int{"email": 1},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := c.UsersCollection().Indexes().CreateMany(ctx, userIndexes); err != nil {
		return fmt.Errorf("failed to create users indexes: %w", err)
	}

	// Chats: the individual-chat pair lookup filters on type plus the
	// participant user ids; last_activity orders chat lists.
	chatIndexes := []mongo.IndexModel{
		{
			Keys: map[string]int{"type": 1, "participants.user_id": 1},
		},
		{
			Keys: map[string]int{"last_activity": -1},
		},
	}
	if _, err := c.ChatsCollection().Indexes().CreateMany(ctx, chatIndexes); err != nil {
		return fmt.Errorf("failed to create chats indexes: %w", err)
	}

	// Messages: author lookups and creation-time ordering.
	messageIndexes := []mongo.IndexModel{
		{
			Keys: map[string]int{"author": 1, "created_at": -1},
		},
	}
	if _, err := c.MessagesCollection().Indexes().CreateMany(ctx, messageIndexes); err != nil {
		return fmt.Errorf("failed to create message indexes: %w", err)
	}

	return nil
}
