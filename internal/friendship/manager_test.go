package friendship

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"

	"messenger-api/internal/apperr"
	"messenger-api/internal/data"
)

// memStore is an in-memory stand-in for the users store. Conditional updates
// mirror the real filters: an update that finds no satisfying document
// reports matched=false rather than an error.
type memStore struct {
	users map[bson.ObjectID]*data.User

	// fail switches for inducing partial failure inside a transaction
	failAddFriendFor map[bson.ObjectID]bool
	errAddFriendFor  map[bson.ObjectID]error
}

func newMemStore() *memStore {
	return &memStore{
		users:            map[bson.ObjectID]*data.User{},
		failAddFriendFor: map[bson.ObjectID]bool{},
		errAddFriendFor:  map[bson.ObjectID]error{},
	}
}

func (s *memStore) addUser(username string) *data.User {
	u := &data.User{
		ID:             bson.NewObjectID(),
		Username:       username,
		Email:          username + "@example.com",
		Friends:        []data.Friend{},
		FriendRequests: []bson.ObjectID{},
		Chats:          []bson.ObjectID{},
	}
	s.users[u.ID] = u
	return u
}

func cloneUser(u *data.User) *data.User {
	c := *u
	c.Friends = append([]data.Friend{}, u.Friends...)
	c.FriendRequests = append([]bson.ObjectID{}, u.FriendRequests...)
	c.Chats = append([]bson.ObjectID{}, u.Chats...)
	return &c
}

func (s *memStore) snapshot() map[bson.ObjectID]*data.User {
	snap := map[bson.ObjectID]*data.User{}
	for id, u := range s.users {
		snap[id] = cloneUser(u)
	}
	return snap
}

func (s *memStore) GetUserByID(_ context.Context, id bson.ObjectID) (*data.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, data.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (s *memStore) GetUserByUsername(_ context.Context, username string) (*data.User, error) {
	for _, u := range s.users {
		if u.Username == username {
			return cloneUser(u), nil
		}
	}
	return nil, data.ErrUserNotFound
}

func (s *memStore) AddFriendRequest(_ context.Context, targetID, requesterID bson.ObjectID) (bool, error) {
	u, ok := s.users[targetID]
	if !ok {
		return false, nil
	}
	if !u.HasFriendRequest(requesterID) {
		u.FriendRequests = append(u.FriendRequests, requesterID)
	}
	return true, nil
}

func (s *memStore) RemoveFriendRequest(_ context.Context, userID, requesterID bson.ObjectID) (bool, error) {
	u, ok := s.users[userID]
	if !ok || !u.HasFriendRequest(requesterID) {
		return false, nil
	}
	pullRequest(u, requesterID)
	return true, nil
}

func (s *memStore) AddFriend(_ context.Context, userID bson.ObjectID, entry data.Friend) (bool, error) {
	if err := s.errAddFriendFor[userID]; err != nil {
		return false, err
	}
	if s.failAddFriendFor[userID] {
		return false, nil
	}
	u, ok := s.users[userID]
	if !ok || u.HasFriend(entry.UserID) {
		return false, nil
	}
	u.Friends = append(u.Friends, entry)
	pullRequest(u, entry.UserID)
	return true, nil
}

func pullRequest(u *data.User, id bson.ObjectID) {
	kept := u.FriendRequests[:0]
	for _, r := range u.FriendRequests {
		if r != id {
			kept = append(kept, r)
		}
	}
	u.FriendRequests = kept
}

// memTxn emulates transaction semantics on the fake: any error restores the
// pre-transaction state so partial updates are never observable.
type memTxn struct {
	s *memStore
}

func (t *memTxn) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := t.s.snapshot()
	if err := fn(ctx); err != nil {
		t.s.users = snap
		return err
	}
	return nil
}

func newTestManager() (*Manager, *memStore) {
	store := newMemStore()
	return NewManager(store, &memTxn{s: store}), store
}

// checkInvariants asserts friendship symmetry and request/friendship mutual
// exclusion over every pair of users in the store.
func checkInvariants(t *testing.T, store *memStore) {
	t.Helper()
	for _, a := range store.users {
		for _, b := range store.users {
			if a.ID == b.ID {
				continue
			}
			if a.HasFriend(b.ID) != b.HasFriend(a.ID) {
				t.Fatalf("symmetry broken between %s and %s", a.Username, b.Username)
			}
			if a.HasFriend(b.ID) && b.HasFriendRequest(a.ID) {
				t.Fatalf("mutual exclusion broken: %s is a friend of %s but still has a pending request", a.Username, b.Username)
			}
		}
	}
}

func TestSendRequestCreatesPending(t *testing.T) {
	m, store := newTestManager()
	alice := store.addUser("alice")
	carol := store.addUser("carol")

	outcome, target, err := m.SendRequest(context.Background(), alice.ID, "carol")
	if err != nil {
		t.Fatalf("SendRequest failed: %v", err)
	}
	if outcome != OutcomeRequested {
		t.Fatalf("outcome = %s, want requested", outcome)
	}
	if target.ID != carol.ID {
		t.Fatalf("wrong target resolved: %s", target.Username)
	}

	// the request lives on the recipient only
	if !store.users[carol.ID].HasFriendRequest(alice.ID) {
		t.Fatal("carol missing pending request from alice")
	}
	if len(store.users[alice.ID].Friends) != 0 {
		t.Fatal("alice gained a friend entry from a mere request")
	}
	checkInvariants(t, store)
}

func TestSendRequestIsIdempotent(t *testing.T) {
	m, store := newTestManager()
	alice := store.addUser("alice")
	carol := store.addUser("carol")

	for i := 0; i < 2; i++ {
		if _, _, err := m.SendRequest(context.Background(), alice.ID, "carol"); err != nil {
			t.Fatalf("SendRequest #%d failed: %v", i+1, err)
		}
	}
	if got := len(store.users[carol.ID].FriendRequests); got != 1 {
		t.Fatalf("expected 1 pending request, got %d", got)
	}
}

func TestSendRequestRejectsSelf(t *testing.T) {
	m, store := newTestManager()
	alice := store.addUser("alice")

	_, _, err := m.SendRequest(context.Background(), alice.ID, "alice")
	if !apperr.Is(err, apperr.KindInvalidInput) {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
}

func TestSendRequestUnknownTarget(t *testing.T) {
	m, store := newTestManager()
	alice := store.addUser("alice")

	_, _, err := m.SendRequest(context.Background(), alice.ID, "nobody")
	if !apperr.Is(err, apperr.KindReferenceNotFound) {
		t.Fatalf("expected ReferenceNotFound, got %v", err)
	}
}

func TestSendRequestStalePrincipal(t *testing.T) {
	m, _ := newTestManager()

	_, _, err := m.SendRequest(context.Background(), bson.NewObjectID(), "anyone")
	if !apperr.Is(err, apperr.KindPrincipalNotFound) {
		t.Fatalf("expected PrincipalNotFound, got %v", err)
	}
}

func TestSendRequestAlreadyFriends(t *testing.T) {
	m, store := newTestManager()
	alice := store.addUser("alice")
	store.addUser("carol")

	if _, _, err := m.SendRequest(context.Background(), alice.ID, "carol"); err != nil {
		t.Fatalf("SendRequest failed: %v", err)
	}
	if _, err := m.Accept(context.Background(), findUser(store, "carol").ID, "alice"); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	_, _, err := m.SendRequest(context.Background(), alice.ID, "carol")
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected Conflict for already-friends, got %v", err)
	}
}

func TestSendRequestAutoUpgradesToFriendship(t *testing.T) {
	m, store := newTestManager()
	alice := store.addUser("alice")
	carol := store.addUser("carol")

	// alice asks carol first: pending request on carol
	if _, _, err := m.SendRequest(context.Background(), alice.ID, "carol"); err != nil {
		t.Fatalf("first SendRequest failed: %v", err)
	}

	// carol "sends a request" back: semantically an accept
	outcome, _, err := m.SendRequest(context.Background(), carol.ID, "alice")
	if err != nil {
		t.Fatalf("reverse SendRequest failed: %v", err)
	}
	if outcome != OutcomeAccepted {
		t.Fatalf("outcome = %s, want accepted", outcome)
	}

	if !store.users[alice.ID].HasFriend(carol.ID) || !store.users[carol.ID].HasFriend(alice.ID) {
		t.Fatal("friendship not symmetric after auto-upgrade")
	}
	if store.users[carol.ID].HasFriendRequest(alice.ID) {
		t.Fatal("pending request survived auto-upgrade")
	}
	checkInvariants(t, store)
}

func TestAcceptCreatesSymmetricFriendship(t *testing.T) {
	m, store := newTestManager()
	alice := store.addUser("alice")
	carol := store.addUser("carol")

	if _, _, err := m.SendRequest(context.Background(), alice.ID, "carol"); err != nil {
		t.Fatalf("SendRequest failed: %v", err)
	}

	requester, err := m.Accept(context.Background(), carol.ID, "alice")
	if err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if requester.ID != alice.ID {
		t.Fatalf("Accept resolved wrong requester: %s", requester.Username)
	}

	if !store.users[alice.ID].HasFriend(carol.ID) || !store.users[carol.ID].HasFriend(alice.ID) {
		t.Fatal("friends entries not symmetric after accept")
	}
	if store.users[carol.ID].HasFriendRequest(alice.ID) {
		t.Fatal("pending request survived accept")
	}
	checkInvariants(t, store)
}

func TestAcceptWithoutPendingRequest(t *testing.T) {
	m, store := newTestManager()
	store.addUser("alice")
	carol := store.addUser("carol")

	_, err := m.Accept(context.Background(), carol.ID, "alice")
	if !apperr.Is(err, apperr.KindReferenceNotFound) {
		t.Fatalf("expected ReferenceNotFound, got %v", err)
	}
}

func TestDeclineRemovesRequestOnly(t *testing.T) {
	m, store := newTestManager()
	alice := store.addUser("alice")
	carol := store.addUser("carol")

	if _, _, err := m.SendRequest(context.Background(), alice.ID, "carol"); err != nil {
		t.Fatalf("SendRequest failed: %v", err)
	}

	if _, err := m.Decline(context.Background(), carol.ID, "alice"); err != nil {
		t.Fatalf("Decline failed: %v", err)
	}

	if store.users[carol.ID].HasFriendRequest(alice.ID) {
		t.Fatal("pending request survived decline")
	}
	if len(store.users[alice.ID].Friends) != 0 || len(store.users[carol.ID].Friends) != 0 {
		t.Fatal("decline created a friendship")
	}
	checkInvariants(t, store)
}

func TestAcceptAbortsWhenSecondSideVanishes(t *testing.T) {
	m, store := newTestManager()
	alice := store.addUser("alice")
	carol := store.addUser("carol")

	if _, _, err := m.SendRequest(context.Background(), alice.ID, "carol"); err != nil {
		t.Fatalf("SendRequest failed: %v", err)
	}

	// alice's document stops matching mid-transaction
	store.failAddFriendFor[alice.ID] = true

	_, err := m.Accept(context.Background(), carol.ID, "alice")
	if !apperr.Is(err, apperr.KindReferenceNotFound) {
		t.Fatalf("expected ReferenceNotFound attributed to the requester, got %v", err)
	}

	// the first side's update must have been rolled back
	if store.users[carol.ID].HasFriend(alice.ID) {
		t.Fatal("carol kept a one-sided friend entry after abort")
	}
	if !store.users[carol.ID].HasFriendRequest(alice.ID) {
		t.Fatal("pending request lost despite aborted transaction")
	}
	checkInvariants(t, store)
}

func TestAcceptSurfacesStoreFailure(t *testing.T) {
	m, store := newTestManager()
	alice := store.addUser("alice")
	carol := store.addUser("carol")

	if _, _, err := m.SendRequest(context.Background(), alice.ID, "carol"); err != nil {
		t.Fatalf("SendRequest failed: %v", err)
	}

	store.errAddFriendFor[carol.ID] = errors.New("socket closed")

	_, err := m.Accept(context.Background(), carol.ID, "alice")
	if !apperr.Is(err, apperr.KindDependencyFailure) {
		t.Fatalf("expected DependencyFailure, got %v", err)
	}
	if store.users[carol.ID].HasFriend(alice.ID) {
		t.Fatal("store failure still mutated carol")
	}
}

func findUser(store *memStore, username string) *data.User {
	for _, u := range store.users {
		if u.Username == username {
			return u
		}
	}
	return nil
}
