package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/petvoice/chat-service/internal/models"
	"github.com/petvoice/chat-service/internal/notify"
	"github.com/petvoice/chat-service/internal/repositories"
)

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) GetOrCreate(ctx context.Context, userID int, otherID int) (models.Chat, error) {
	args := m.Called(ctx, userID, otherID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) Get(ctx context.Context, chatID int) (models.Chat, error) {
	args := m.Called(ctx, chatID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) ListForUser(ctx context.Context, userID int) ([]models.Chat, error) {
	args := m.Called(ctx, userID)
	var chats []models.Chat
	if val := args.Get(0); val != nil {
		chats = val.([]models.Chat)
	}
	return chats, args.Error(1)
}

func (m *ChatRepositoryMock) DeleteForOne(ctx context.Context, chatID int, actorID int) error {
	args := m.Called(ctx, chatID, actorID)
	return args.Error(0)
}

func (m *ChatRepositoryMock) DeleteForBoth(ctx context.Context, chatID int) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

func (m *ChatRepositoryMock) ReactivateIfNeeded(ctx context.Context, chatID int, at time.Time) (bool, error) {
	args := m.Called(ctx, chatID, at)
	return args.Bool(0), args.Error(1)
}

func (m *ChatRepositoryMock) TouchLastMessage(ctx context.Context, chatID int, at time.Time) error {
	args := m.Called(ctx, chatID, at)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Append(ctx context.Context, msg models.PrivateMessage) (models.PrivateMessage, error) {
	args := m.Called(ctx, msg)
	var stored models.PrivateMessage
	if val := args.Get(0); val != nil {
		stored = val.(models.PrivateMessage)
	}
	return stored, args.Error(1)
}

func (m *MessageRepositoryMock) ListForChat(ctx context.Context, chatID int) ([]models.PrivateMessage, error) {
	args := m.Called(ctx, chatID)
	var msgs []models.PrivateMessage
	if val := args.Get(0); val != nil {
		msgs = val.([]models.PrivateMessage)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) Get(ctx context.Context, messageID int) (models.PrivateMessage, error) {
	args := m.Called(ctx, messageID)
	var msg models.PrivateMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.PrivateMessage)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) SoftDeletePersonal(ctx context.Context, messageID int, viewerID int) error {
	args := m.Called(ctx, messageID, viewerID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) SoftDeleteGlobal(ctx context.Context, messageID int, actorID int) error {
	args := m.Called(ctx, messageID, actorID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) Edit(ctx context.Context, messageID int, actorID int, newContent string) (models.PrivateMessage, error) {
	args := m.Called(ctx, messageID, actorID, newContent)
	var msg models.PrivateMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.PrivateMessage)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) MarkReadBulk(ctx context.Context, chatID int, viewerID int) (int, error) {
	args := m.Called(ctx, chatID, viewerID)
	return args.Int(0), args.Error(1)
}

func (m *MessageRepositoryMock) CountUnread(ctx context.Context, chatID int, viewerID int) (int, error) {
	args := m.Called(ctx, chatID, viewerID)
	return args.Int(0), args.Error(1)
}

type ChannelMessageRepositoryMock struct {
	mock.Mock
}

func (m *ChannelMessageRepositoryMock) Append(ctx context.Context, msg models.ChannelMessage) (models.ChannelMessage, error) {
	args := m.Called(ctx, msg)
	var stored models.ChannelMessage
	if val := args.Get(0); val != nil {
		stored = val.(models.ChannelMessage)
	}
	return stored, args.Error(1)
}

func (m *ChannelMessageRepositoryMock) ListForChannel(ctx context.Context, channelID int) ([]models.ChannelMessage, error) {
	args := m.Called(ctx, channelID)
	var msgs []models.ChannelMessage
	if val := args.Get(0); val != nil {
		msgs = val.([]models.ChannelMessage)
	}
	return msgs, args.Error(1)
}

func (m *ChannelMessageRepositoryMock) Get(ctx context.Context, messageID int) (models.ChannelMessage, error) {
	args := m.Called(ctx, messageID)
	var msg models.ChannelMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.ChannelMessage)
	}
	return msg, args.Error(1)
}

func (m *ChannelMessageRepositoryMock) ListPersonalDeletions(ctx context.Context, channelID int, userID int) ([]models.PersonalDeletion, error) {
	args := m.Called(ctx, channelID, userID)
	var deletions []models.PersonalDeletion
	if val := args.Get(0); val != nil {
		deletions = val.([]models.PersonalDeletion)
	}
	return deletions, args.Error(1)
}

func (m *ChannelMessageRepositoryMock) SoftDeletePersonal(ctx context.Context, messageID int, userID int) error {
	args := m.Called(ctx, messageID, userID)
	return args.Error(0)
}

func (m *ChannelMessageRepositoryMock) SoftDeleteGlobal(ctx context.Context, messageID int, actorID int) error {
	args := m.Called(ctx, messageID, actorID)
	return args.Error(0)
}

type ProfileLookupMock struct {
	mock.Mock
}

func (m *ProfileLookupMock) DisplayName(ctx context.Context, userID int) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

func (m *ProfileLookupMock) DisplayNames(ctx context.Context, userIDs []int) (map[int]string, error) {
	args := m.Called(ctx, userIDs)
	var names map[int]string
	if val := args.Get(0); val != nil {
		names = val.(map[int]string)
	}
	return names, args.Error(1)
}

type SinkMock struct {
	mock.Mock
}

func (m *SinkMock) NewMessage(ctx context.Context, msg models.PrivateMessage) {
	m.Called(ctx, msg)
}

func (m *SinkMock) ChatReactivated(ctx context.Context, chat models.Chat) {
	m.Called(ctx, chat)
}

var _ repositories.ChatRepository = (*ChatRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.ChannelMessageRepository = (*ChannelMessageRepositoryMock)(nil)
var _ repositories.ProfileLookup = (*ProfileLookupMock)(nil)
var _ notify.Sink = (*SinkMock)(nil)
