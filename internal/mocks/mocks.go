// Package mocks holds testify mocks for the handler-facing interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/v2/bson"

	"messenger-api/internal/chatengine"
	"messenger-api/internal/data"
	"messenger-api/internal/friendship"
)

type UserGetterMock struct {
	mock.Mock
}

func (m *UserGetterMock) GetUserByID(ctx context.Context, id bson.ObjectID) (*data.User, error) {
	args := m.Called(ctx, id)
	var user *data.User
	if val := args.Get(0); val != nil {
		user = val.(*data.User)
	}
	return user, args.Error(1)
}

type AccountStoreMock struct {
	mock.Mock
}

func (m *AccountStoreMock) CreateUser(ctx context.Context, username, email, hashedPassword string) (*data.User, error) {
	args := m.Called(ctx, username, email, hashedPassword)
	var user *data.User
	if val := args.Get(0); val != nil {
		user = val.(*data.User)
	}
	return user, args.Error(1)
}

func (m *AccountStoreMock) GetUserByEmail(ctx context.Context, email string) (*data.User, error) {
	args := m.Called(ctx, email)
	var user *data.User
	if val := args.Get(0); val != nil {
		user = val.(*data.User)
	}
	return user, args.Error(1)
}

type FriendshipManagerMock struct {
	mock.Mock
}

func (m *FriendshipManagerMock) SendRequest(ctx context.Context, requesterID bson.ObjectID, targetUsername string) (friendship.RequestOutcome, *data.User, error) {
	args := m.Called(ctx, requesterID, targetUsername)
	var user *data.User
	if val := args.Get(1); val != nil {
		user = val.(*data.User)
	}
	return args.Get(0).(friendship.RequestOutcome), user, args.Error(2)
}

func (m *FriendshipManagerMock) Accept(ctx context.Context, recipientID bson.ObjectID, requesterUsername string) (*data.User, error) {
	args := m.Called(ctx, recipientID, requesterUsername)
	var user *data.User
	if val := args.Get(0); val != nil {
		user = val.(*data.User)
	}
	return user, args.Error(1)
}

func (m *FriendshipManagerMock) Decline(ctx context.Context, recipientID bson.ObjectID, requesterUsername string) (*data.User, error) {
	args := m.Called(ctx, recipientID, requesterUsername)
	var user *data.User
	if val := args.Get(0); val != nil {
		user = val.(*data.User)
	}
	return user, args.Error(1)
}

type ChatEngineMock struct {
	mock.Mock
}

func (m *ChatEngineMock) CreateIndividualChat(ctx context.Context, principalID, friendID bson.ObjectID) (*data.Chat, bool, error) {
	args := m.Called(ctx, principalID, friendID)
	var chat *data.Chat
	if val := args.Get(0); val != nil {
		chat = val.(*data.Chat)
	}
	return chat, args.Bool(1), args.Error(2)
}

func (m *ChatEngineMock) CreateGroupChat(ctx context.Context, principalID bson.ObjectID, participantIDs []bson.ObjectID, name string) (*data.Chat, error) {
	args := m.Called(ctx, principalID, participantIDs, name)
	var chat *data.Chat
	if val := args.Get(0); val != nil {
		chat = val.(*data.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatEngineMock) AddParticipants(ctx context.Context, principalID, chatID bson.ObjectID, newIDs []bson.ObjectID) (*data.Chat, error) {
	args := m.Called(ctx, principalID, chatID, newIDs)
	var chat *data.Chat
	if val := args.Get(0); val != nil {
		chat = val.(*data.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatEngineMock) GetChat(ctx context.Context, principalID, chatID bson.ObjectID) (*data.Chat, []*data.Message, error) {
	args := m.Called(ctx, principalID, chatID)
	var chat *data.Chat
	if val := args.Get(0); val != nil {
		chat = val.(*data.Chat)
	}
	var msgs []*data.Message
	if val := args.Get(1); val != nil {
		msgs = val.([]*data.Message)
	}
	return chat, msgs, args.Error(2)
}

func (m *ChatEngineMock) PostMessage(ctx context.Context, principalID, chatID bson.ObjectID, draft chatengine.Draft) (*data.Message, error) {
	args := m.Called(ctx, principalID, chatID, draft)
	var msg *data.Message
	if val := args.Get(0); val != nil {
		msg = val.(*data.Message)
	}
	return msg, args.Error(1)
}

func (m *ChatEngineMock) UpdateChatImage(ctx context.Context, principalID, chatID bson.ObjectID, source, alt string) (*data.Image, error) {
	args := m.Called(ctx, principalID, chatID, source, alt)
	var img *data.Image
	if val := args.Get(0); val != nil {
		img = val.(*data.Image)
	}
	return img, args.Error(1)
}

type ProfileImageUpdaterMock struct {
	mock.Mock
}

func (m *ProfileImageUpdaterMock) UpdateProfileImage(ctx context.Context, principalID bson.ObjectID, source, alt string) (*data.Image, error) {
	args := m.Called(ctx, principalID, source, alt)
	var img *data.Image
	if val := args.Get(0); val != nil {
		img = val.(*data.Image)
	}
	return img, args.Error(1)
}
