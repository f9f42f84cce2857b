package data

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"messenger-api/internal/db"
)

func setupDB(t *testing.T) *db.Client {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set; skipping integration test")
	}

	ctx := context.Background()
	c, err := db.New(ctx, uri, "messenger_test")
	if err != nil {
		t.Fatalf("db.New failed: %v", err)
	}

	// ensure clean collections in case previous runs left data
	_ = c.UsersCollection().Drop(ctx)
	_ = c.ChatsCollection().Drop(ctx)
	_ = c.MessagesCollection().Drop(ctx)
	_ = c.ImagesCollection().Drop(ctx)

	return c
}

func uniqueSuffix() string {
	return time.Now().UTC().Format("20060102150405.000000000")
}

func TestUsersCreateAndGet(t *testing.T) {
	c := setupDB(t)
	defer func() { _ = c.Close(context.Background()) }()

	users := NewUsersStore(c.UsersCollection())

	ctx := context.Background()
	username := "alice-" + uniqueSuffix()
	email := username + "@example.com"

	user, err := users.CreateUser(ctx, username, email, "hashed-password")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if user.Username != username {
		t.Fatalf("expected username %s got %s", username, user.Username)
	}
	if len(user.Friends) != 0 || len(user.FriendRequests) != 0 || len(user.Chats) != 0 {
		t.Fatalf("new user has non-empty relationship arrays: %+v", user)
	}

	u2, err := users.GetUserByUsername(ctx, username)
	if err != nil {
		t.Fatalf("GetUserByUsername failed: %v", err)
	}
	if u2.ID != user.ID {
		t.Fatalf("GetUserByUsername returned wrong user: %s", u2.ID.Hex())
	}

	// mixed case must resolve to the same user
	u3, err := users.GetUserByUsername(ctx, "  "+username+" ")
	if err != nil {
		t.Fatalf("GetUserByUsername (unnormalized) failed: %v", err)
	}
	if u3.ID != user.ID {
		t.Fatalf("unnormalized lookup returned wrong user")
	}

	got, err := users.GetUserByEmail(ctx, email)
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("GetUserByEmail returned wrong user")
	}
}

func TestUsersFriendRequestUpdates(t *testing.T) {
	c := setupDB(t)
	defer func() { _ = c.Close(context.Background()) }()

	users := NewUsersStore(c.UsersCollection())
	ctx := context.Background()

	suffix := uniqueSuffix()
	alice, err := users.CreateUser(ctx, "alice-"+suffix, "alice-"+suffix+"@example.com", "h")
	if err != nil {
		t.Fatalf("CreateUser alice failed: %v", err)
	}
	bob, err := users.CreateUser(ctx, "bob-"+suffix, "bob-"+suffix+"@example.com", "h")
	if err != nil {
		t.Fatalf("CreateUser bob failed: %v", err)
	}

	// request lives on the recipient
	matched, err := users.AddFriendRequest(ctx, bob.ID, alice.ID)
	if err != nil || !matched {
		t.Fatalf("AddFriendRequest failed: matched=%v err=%v", matched, err)
	}

	// idempotent: a second send must not duplicate the entry
	if _, err := users.AddFriendRequest(ctx, bob.ID, alice.ID); err != nil {
		t.Fatalf("second AddFriendRequest failed: %v", err)
	}
	got, err := users.GetUserByID(ctx, bob.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if len(got.FriendRequests) != 1 {
		t.Fatalf("expected 1 pending request, got %d", len(got.FriendRequests))
	}

	// AddFriend pushes the entry and clears the pending request together
	matched, err = users.AddFriend(ctx, bob.ID, Friend{UserID: alice.ID, Since: time.Now(), Status: FriendStatusNormal})
	if err != nil || !matched {
		t.Fatalf("AddFriend failed: matched=%v err=%v", matched, err)
	}
	got, _ = users.GetUserByID(ctx, bob.ID)
	if !got.HasFriend(alice.ID) {
		t.Fatal("friend entry missing after AddFriend")
	}
	if got.HasFriendRequest(alice.ID) {
		t.Fatal("pending request survived AddFriend")
	}

	// a duplicate friend entry must not match
	matched, err = users.AddFriend(ctx, bob.ID, Friend{UserID: alice.ID, Since: time.Now(), Status: FriendStatusNormal})
	if err != nil {
		t.Fatalf("duplicate AddFriend errored: %v", err)
	}
	if matched {
		t.Fatal("duplicate AddFriend reported a match")
	}

	// RemoveFriendRequest on an absent request must not match
	matched, err = users.RemoveFriendRequest(ctx, bob.ID, alice.ID)
	if err != nil {
		t.Fatalf("RemoveFriendRequest errored: %v", err)
	}
	if matched {
		t.Fatal("RemoveFriendRequest matched an absent request")
	}
}

func TestUsersNotFound(t *testing.T) {
	c := setupDB(t)
	defer func() { _ = c.Close(context.Background()) }()

	users := NewUsersStore(c.UsersCollection())
	if _, err := users.GetUserByUsername(context.Background(), "no-such-user"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
