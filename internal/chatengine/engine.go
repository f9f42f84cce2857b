// Package chatengine creates and mutates chat membership: individual chat
// get-or-create, group creation, participant adds and the individual→group
// promotion. Every mutation that touches more than one document runs inside
// one store-level transaction.
package chatengine

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"messenger-api/internal/apperr"
	"messenger-api/internal/data"
)

// UserStore is the slice of the users store the engine needs.
type UserStore interface {
	GetUserByID(ctx context.Context, id bson.ObjectID) (*data.User, error)
	SetFriendChat(ctx context.Context, userID, friendID, chatID bson.ObjectID) (bool, error)
	AddChat(ctx context.Context, userID, chatID bson.ObjectID) (bool, error)
	SetProfileImage(ctx context.Context, userID, imageID bson.ObjectID) (bool, error)
}

// ChatStore is the slice of the chats store the engine needs.
type ChatStore interface {
	GetChatByID(ctx context.Context, id bson.ObjectID) (*data.Chat, error)
	FindIndividualChatByPair(ctx context.Context, a, b bson.ObjectID) (*data.Chat, error)
	InsertChat(ctx context.Context, chat *data.Chat) (*data.Chat, error)
	AddParticipants(ctx context.Context, chatID bson.ObjectID, parts []data.Participant) (bool, error)
	PrependMessage(ctx context.Context, chatID, messageID bson.ObjectID, at time.Time) (bool, error)
	SetImage(ctx context.Context, chatID, imageID bson.ObjectID) (bool, error)
}

// MessageStore is the slice of the messages store the engine needs.
type MessageStore interface {
	InsertMessage(ctx context.Context, msg *data.Message) (*data.Message, error)
	GetMessagesByIDs(ctx context.Context, ids []bson.ObjectID) ([]*data.Message, error)
}

// ImageStore is the slice of the images store the engine needs.
type ImageStore interface {
	InsertImage(ctx context.Context, img *data.Image) (*data.Image, error)
	CreateDefault(ctx context.Context) (*data.Image, error)
	DeleteImage(ctx context.Context, id bson.ObjectID) (bool, error)
}

// TxnRunner runs a function inside one store-level transaction; any error
// aborts, nil commits.
type TxnRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Engine performs chat membership operations.
type Engine struct {
	users  UserStore
	chats  ChatStore
	msgs   MessageStore
	images ImageStore
	txn    TxnRunner
}

// NewEngine wires an Engine with its stores and transaction runner.
func NewEngine(users UserStore, chats ChatStore, msgs MessageStore, images ImageStore, txn TxnRunner) *Engine {
	return &Engine{users: users, chats: chats, msgs: msgs, images: images, txn: txn}
}

// errPairExists aborts the creating transaction when the re-check inside it
// finds a chat for the pair.
var errPairExists = errors.New("individual chat already exists")

// CreateIndividualChat returns the individual chat for {principal, friend},
// creating it when none exists. The created flag is false when an existing
// chat was discovered; discovery performs no mutation.
func (e *Engine) CreateIndividualChat(ctx context.Context, principalID, friendID bson.ObjectID) (*data.Chat, bool, error) {
	principal, err := e.resolvePrincipal(ctx, principalID)
	if err != nil {
		return nil, false, err
	}

	friend, err := e.users.GetUserByID(ctx, friendID)
	if err != nil {
		if errors.Is(err, data.ErrUserNotFound) {
			return nil, false, apperr.New(apperr.KindReferenceNotFound, "user %s not found", friendID.Hex())
		}
		return nil, false, apperr.Wrap(apperr.KindDependencyFailure, err, "failed to load user")
	}

	if !principal.HasFriend(friend.ID) {
		return nil, false, apperr.New(apperr.KindForbidden, "%s is not in your friends", friend.Username)
	}

	// fast path: discovery never mutates anything
	existing, err := e.findPair(ctx, principal.ID, friend.ID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	var created *data.Chat
	err = e.txn.WithTransaction(ctx, func(txCtx context.Context) error {
		// Re-check inside the transaction. Two concurrent creators for the
		// same pair both write the same two user documents, so the loser's
		// transaction conflicts, retries, and finds the winner's chat here.
		existing, err = e.findPair(txCtx, principal.ID, friend.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return errPairExists
		}

		img, err := e.images.CreateDefault(txCtx)
		if err != nil {
			return apperr.Wrap(apperr.KindDependencyFailure, err, "failed to create chat image")
		}

		created, err = e.chats.InsertChat(txCtx, &data.Chat{
			Type:    data.ChatTypeIndividual,
			ImageID: &img.ID,
			Participants: []data.Participant{
				{UserID: principal.ID, Nickname: principal.Preferences.DisplayName, Role: data.RoleGuest},
				{UserID: friend.ID, Nickname: friend.Preferences.DisplayName, Role: data.RoleGuest},
			},
		})
		if err != nil {
			return apperr.Wrap(apperr.KindDependencyFailure, err, "failed to save chat")
		}

		matched, err := e.users.SetFriendChat(txCtx, principal.ID, friend.ID, created.ID)
		if err != nil {
			return apperr.Wrap(apperr.KindDependencyFailure, err, "failed to update your account")
		}
		if !matched {
			return apperr.New(apperr.KindPrincipalNotFound, "your account could not be updated")
		}

		matched, err = e.users.SetFriendChat(txCtx, friend.ID, principal.ID, created.ID)
		if err != nil {
			return apperr.Wrap(apperr.KindDependencyFailure, err, "failed to update %s", friend.Username)
		}
		if !matched {
			return apperr.New(apperr.KindReferenceNotFound, "user %s not found", friend.Username)
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, errPairExists) {
			return existing, false, nil
		}
		return nil, false, err
	}

	return created, true, nil
}

// CreateGroupChat creates a group chat with the given participants seeded as
// guests and the principal appended as admin. Every requested participant
// must resolve and be a friend of the principal. The chat insert and every
// membership update commit together or not at all.
func (e *Engine) CreateGroupChat(ctx context.Context, principalID bson.ObjectID, participantIDs []bson.ObjectID, name string) (*data.Chat, error) {
	principal, err := e.resolvePrincipal(ctx, principalID)
	if err != nil {
		return nil, err
	}

	members, err := e.resolveFriends(ctx, principal, participantIDs)
	if err != nil {
		return nil, err
	}
	if len(members) < 2 {
		return nil, apperr.New(apperr.KindInvalidInput, "a group chat needs at least 2 other participants")
	}

	participants := make([]data.Participant, 0, len(members)+1)
	for _, m := range members {
		participants = append(participants, data.Participant{
			UserID:   m.ID,
			Nickname: m.Preferences.DisplayName,
			Role:     data.RoleGuest,
		})
	}
	participants = append(participants, data.Participant{
		UserID:   principal.ID,
		Nickname: principal.Preferences.DisplayName,
		Role:     data.RoleAdmin,
	})

	var created *data.Chat
	err = e.txn.WithTransaction(ctx, func(txCtx context.Context) error {
		img, err := e.images.CreateDefault(txCtx)
		if err != nil {
			return apperr.Wrap(apperr.KindDependencyFailure, err, "failed to create chat image")
		}

		created, err = e.chats.InsertChat(txCtx, &data.Chat{
			Type:         data.ChatTypeGroup,
			Name:         name,
			ImageID:      &img.ID,
			Participants: participants,
		})
		if err != nil {
			return apperr.Wrap(apperr.KindDependencyFailure, err, "failed to save chat")
		}

		for _, p := range participants {
			matched, err := e.users.AddChat(txCtx, p.UserID, created.ID)
			if err != nil {
				return apperr.Wrap(apperr.KindDependencyFailure, err, "failed to update user %s", p.UserID.Hex())
			}
			if !matched {
				if p.UserID == principal.ID {
					return apperr.New(apperr.KindPrincipalNotFound, "your account could not be updated")
				}
				return apperr.New(apperr.KindReferenceNotFound, "user %s not found", p.UserID.Hex())
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

// AddParticipants adds users to an existing chat, promoting an individual
// chat into a brand-new group chat first. Returns the chat that received the
// new participants: the original when it was already a group, the clone when
// a promotion happened. The original individual chat is never mutated.
func (e *Engine) AddParticipants(ctx context.Context, principalID, chatID bson.ObjectID, newIDs []bson.ObjectID) (*data.Chat, error) {
	principal, err := e.resolvePrincipal(ctx, principalID)
	if err != nil {
		return nil, err
	}

	chat, err := e.resolveChat(ctx, chatID)
	if err != nil {
		return nil, err
	}

	// new participants must be real users and friends of the actor, not of
	// the chat
	members, err := e.resolveFriends(ctx, principal, newIDs)
	if err != nil {
		return nil, err
	}

	// drop anyone already in the chat
	added := make([]*data.User, 0, len(members))
	for _, m := range members {
		if !chat.HasParticipant(m.ID) {
			added = append(added, m)
		}
	}
	if len(added) == 0 {
		return nil, apperr.New(apperr.KindInvalidInput, "nothing to add: all requested users are already participants")
	}

	self := chat.ParticipantEntry(principal.ID)
	if self == nil {
		return nil, apperr.New(apperr.KindForbidden, "you are not a participant of this chat")
	}
	// individual chats skip the role check: the promotion below always makes
	// the actor an admin of the clone
	if chat.Type == data.ChatTypeGroup && !data.CanManageParticipants(self.Role) {
		return nil, apperr.New(apperr.KindForbidden, "only admins and moderators can add participants")
	}

	newParts := make([]data.Participant, 0, len(added))
	for _, m := range added {
		newParts = append(newParts, data.Participant{
			UserID:   m.ID,
			Nickname: m.Preferences.DisplayName,
			Role:     data.RoleGuest,
		})
	}

	target := chat
	err = e.txn.WithTransaction(ctx, func(txCtx context.Context) error {
		if chat.Type == data.ChatTypeIndividual {
			promoted, err := e.promote(txCtx, principal, chat)
			if err != nil {
				return err
			}
			target = promoted
		}

		matched, err := e.chats.AddParticipants(txCtx, target.ID, newParts)
		if err != nil {
			return apperr.Wrap(apperr.KindDependencyFailure, err, "failed to add participants")
		}
		if !matched {
			return apperr.New(apperr.KindReferenceNotFound, "chat not found")
		}

		for _, m := range added {
			matched, err := e.users.AddChat(txCtx, m.ID, target.ID)
			if err != nil {
				return apperr.Wrap(apperr.KindDependencyFailure, err, "failed to update %s", m.Username)
			}
			if !matched {
				return apperr.New(apperr.KindReferenceNotFound, "user %s not found", m.Username)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	target.Participants = append(target.Participants, newParts...)
	return target, nil
}

// promote clones an individual chat into a new group chat: same participants
// with the actor upgraded to admin, a fresh default image, and the new chat
// id added to both original members. Runs inside the caller's transaction.
// The original individual chat document is left untouched; the old 1:1
// thread stays as frozen history.
func (e *Engine) promote(ctx context.Context, principal *data.User, chat *data.Chat) (*data.Chat, error) {
	img, err := e.images.CreateDefault(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDependencyFailure, err, "failed to create chat image")
	}

	participants := make([]data.Participant, len(chat.Participants))
	copy(participants, chat.Participants)
	for i := range participants {
		if participants[i].UserID == principal.ID {
			participants[i].Role = data.RoleAdmin
		}
	}

	promoted, err := e.chats.InsertChat(ctx, &data.Chat{
		Type:         data.ChatTypeGroup,
		Name:         chat.Name,
		ImageID:      &img.ID,
		Participants: participants,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDependencyFailure, err, "failed to save promoted chat")
	}

	for _, p := range chat.Participants {
		matched, err := e.users.AddChat(ctx, p.UserID, promoted.ID)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindDependencyFailure, err, "failed to update user %s", p.UserID.Hex())
		}
		if !matched {
			if p.UserID == principal.ID {
				return nil, apperr.New(apperr.KindPrincipalNotFound, "your account could not be updated")
			}
			return nil, apperr.New(apperr.KindReferenceNotFound, "user %s not found", p.UserID.Hex())
		}
	}

	return promoted, nil
}

// GetChat returns a chat and its messages (newest-first) for a participant.
func (e *Engine) GetChat(ctx context.Context, principalID, chatID bson.ObjectID) (*data.Chat, []*data.Message, error) {
	principal, err := e.resolvePrincipal(ctx, principalID)
	if err != nil {
		return nil, nil, err
	}

	chat, err := e.resolveChat(ctx, chatID)
	if err != nil {
		return nil, nil, err
	}
	if !chat.HasParticipant(principal.ID) {
		return nil, nil, apperr.New(apperr.KindForbidden, "you are not a participant of this chat")
	}

	msgs, err := e.msgs.GetMessagesByIDs(ctx, chat.Messages)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.KindDependencyFailure, err, "failed to load messages")
	}

	return chat, msgs, nil
}

func (e *Engine) resolvePrincipal(ctx context.Context, id bson.ObjectID) (*data.User, error) {
	user, err := e.users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, data.ErrUserNotFound) {
			return nil, apperr.New(apperr.KindPrincipalNotFound, "your account no longer exists")
		}
		return nil, apperr.Wrap(apperr.KindDependencyFailure, err, "failed to load your account")
	}
	return user, nil
}

func (e *Engine) resolveChat(ctx context.Context, id bson.ObjectID) (*data.Chat, error) {
	chat, err := e.chats.GetChatByID(ctx, id)
	if err != nil {
		if errors.Is(err, data.ErrChatNotFound) {
			return nil, apperr.New(apperr.KindReferenceNotFound, "chat not found")
		}
		return nil, apperr.Wrap(apperr.KindDependencyFailure, err, "failed to load chat")
	}
	return chat, nil
}

// resolveFriends loads every id, deduplicates, drops the principal, and
// requires each to be a friend of the principal. All checks happen before
// any mutation.
func (e *Engine) resolveFriends(ctx context.Context, principal *data.User, ids []bson.ObjectID) ([]*data.User, error) {
	seen := map[bson.ObjectID]bool{principal.ID: true}
	members := make([]*data.User, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		user, err := e.users.GetUserByID(ctx, id)
		if err != nil {
			if errors.Is(err, data.ErrUserNotFound) {
				return nil, apperr.New(apperr.KindReferenceNotFound, "user %s not found", id.Hex())
			}
			return nil, apperr.Wrap(apperr.KindDependencyFailure, err, "failed to load user")
		}
		if !principal.HasFriend(user.ID) {
			return nil, apperr.New(apperr.KindForbidden, "%s is not in your friends", user.Username)
		}
		members = append(members, user)
	}
	return members, nil
}

func (e *Engine) findPair(ctx context.Context, a, b bson.ObjectID) (*data.Chat, error) {
	chat, err := e.chats.FindIndividualChatByPair(ctx, a, b)
	if err != nil {
		if errors.Is(err, data.ErrChatNotFound) {
			return nil, nil
		}
		return nil, apperr.Wrap(apperr.KindDependencyFailure, err, "failed to look up chat")
	}
	return chat, nil
}
