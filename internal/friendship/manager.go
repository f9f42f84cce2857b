// Package friendship maintains the friends/friendRequests relationship state
// machine across user documents.
//
// A pending request is stored on the recipient's document only. Friendship is
// stored symmetrically on both documents and must stay symmetric after every
// operation, which is why the two-sided transition always runs inside one
// transaction.
package friendship

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"messenger-api/internal/apperr"
	"messenger-api/internal/data"
)

// UserStore is the slice of the users store the manager needs.
type UserStore interface {
	GetUserByID(ctx context.Context, id bson.ObjectID) (*data.User, error)
	GetUserByUsername(ctx context.Context, username string) (*data.User, error)
	AddFriendRequest(ctx context.Context, targetID, requesterID bson.ObjectID) (bool, error)
	RemoveFriendRequest(ctx context.Context, userID, requesterID bson.ObjectID) (bool, error)
	AddFriend(ctx context.Context, userID bson.ObjectID, entry data.Friend) (bool, error)
}

// TxnRunner runs a function inside one store-level transaction; any error
// aborts, nil commits.
type TxnRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// RequestOutcome reports which transition SendRequest performed.
type RequestOutcome string

const (
	// OutcomeRequested: a new pending request was recorded on the target.
	OutcomeRequested RequestOutcome = "requested"
	// OutcomeAccepted: a symmetric pending request already existed, so the
	// call upgraded straight to friendship.
	OutcomeAccepted RequestOutcome = "accepted"
)

// Manager performs friendship transitions.
type Manager struct {
	users UserStore
	txn   TxnRunner
}

// NewManager wires a Manager with its store and transaction runner.
func NewManager(users UserStore, txn TxnRunner) *Manager {
	return &Manager{users: users, txn: txn}
}

// SendRequest moves the (requester, target) pair from Strangers to
// PendingRequest, or — when the target already has a request pending toward
// the requester — straight to Friends. Returns the transition taken and the
// resolved target.
func (m *Manager) SendRequest(ctx context.Context, requesterID bson.ObjectID, targetUsername string) (RequestOutcome, *data.User, error) {
	requester, err := m.resolvePrincipal(ctx, requesterID)
	if err != nil {
		return "", nil, err
	}

	target, err := m.resolveByUsername(ctx, targetUsername)
	if err != nil {
		return "", nil, err
	}

	if target.ID == requester.ID {
		return "", nil, apperr.New(apperr.KindInvalidInput, "cannot send a friend request to yourself")
	}
	if requester.HasFriend(target.ID) {
		return "", nil, apperr.New(apperr.KindConflict, "already friends with %s", target.Username)
	}

	// Symmetric pending request: the target asked first, so this send is
	// semantically an accept and performs the two-document transition.
	if requester.HasFriendRequest(target.ID) {
		if err := m.befriend(ctx, requester, target); err != nil {
			return "", nil, err
		}
		return OutcomeAccepted, target, nil
	}

	matched, err := m.users.AddFriendRequest(ctx, target.ID, requester.ID)
	if err != nil {
		return "", nil, apperr.Wrap(apperr.KindDependencyFailure, err, "failed to record friend request")
	}
	if !matched {
		return "", nil, apperr.New(apperr.KindReferenceNotFound, "user %s not found", target.Username)
	}

	return OutcomeRequested, target, nil
}

// Accept resolves a pending request in the recipient's favor: both users gain
// symmetric friends entries and the request disappears, all in one
// transaction.
func (m *Manager) Accept(ctx context.Context, recipientID bson.ObjectID, requesterUsername string) (*data.User, error) {
	recipient, err := m.resolvePrincipal(ctx, recipientID)
	if err != nil {
		return nil, err
	}

	requester, err := m.resolveByUsername(ctx, requesterUsername)
	if err != nil {
		return nil, err
	}

	if !recipient.HasFriendRequest(requester.ID) {
		return nil, apperr.New(apperr.KindReferenceNotFound, "no pending friend request from %s", requester.Username)
	}

	if err := m.befriend(ctx, recipient, requester); err != nil {
		return nil, err
	}
	return requester, nil
}

// Decline resolves a pending request without creating a friendship: a
// single-document pull from the recipient only.
func (m *Manager) Decline(ctx context.Context, recipientID bson.ObjectID, requesterUsername string) (*data.User, error) {
	recipient, err := m.resolvePrincipal(ctx, recipientID)
	if err != nil {
		return nil, err
	}

	requester, err := m.resolveByUsername(ctx, requesterUsername)
	if err != nil {
		return nil, err
	}

	if !recipient.HasFriendRequest(requester.ID) {
		return nil, apperr.New(apperr.KindReferenceNotFound, "no pending friend request from %s", requester.Username)
	}

	matched, err := m.users.RemoveFriendRequest(ctx, recipient.ID, requester.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDependencyFailure, err, "failed to remove friend request")
	}
	if !matched {
		// resolved concurrently between our read and the update
		return nil, apperr.New(apperr.KindReferenceNotFound, "no pending friend request from %s", requester.Username)
	}

	return requester, nil
}

// befriend pushes symmetric friends entries on both documents inside one
// transaction. AddFriend also pulls any pending request between the pair, so
// the mutual-exclusion invariant holds in the same commit. Each side's
// conditional update is checked independently: an unmatched update on the
// principal's own document is a stale session, on the other document a
// vanished peer.
func (m *Manager) befriend(ctx context.Context, principal, other *data.User) error {
	now := time.Now()

	return m.txn.WithTransaction(ctx, func(txCtx context.Context) error {
		matched, err := m.users.AddFriend(txCtx, principal.ID, data.Friend{
			UserID: other.ID,
			Since:  now,
			Status: data.FriendStatusNormal,
		})
		if err != nil {
			return apperr.Wrap(apperr.KindDependencyFailure, err, "failed to update your account")
		}
		if !matched {
			return apperr.New(apperr.KindPrincipalNotFound, "your account could not be updated")
		}

		matched, err = m.users.AddFriend(txCtx, other.ID, data.Friend{
			UserID: principal.ID,
			Since:  now,
			Status: data.FriendStatusNormal,
		})
		if err != nil {
			return apperr.Wrap(apperr.KindDependencyFailure, err, "failed to update %s", other.Username)
		}
		if !matched {
			return apperr.New(apperr.KindReferenceNotFound, "user %s not found", other.Username)
		}

		return nil
	})
}

func (m *Manager) resolvePrincipal(ctx context.Context, id bson.ObjectID) (*data.User, error) {
	user, err := m.users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, data.ErrUserNotFound) {
			return nil, apperr.New(apperr.KindPrincipalNotFound, "your account no longer exists")
		}
		return nil, apperr.Wrap(apperr.KindDependencyFailure, err, "failed to load your account")
	}
	return user, nil
}

func (m *Manager) resolveByUsername(ctx context.Context, username string) (*data.User, error) {
	user, err := m.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, data.ErrUserNotFound) {
			return nil, apperr.New(apperr.KindReferenceNotFound, "user %s not found", username)
		}
		return nil, apperr.Wrap(apperr.KindDependencyFailure, err, "failed to look up %s", username)
	}
	return user, nil
}
