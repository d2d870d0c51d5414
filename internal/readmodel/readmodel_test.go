package readmodel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/petvoice/chat-service/internal/mocks"
	"github.com/petvoice/chat-service/internal/models"
)

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func TestListMessagesForFiltersAndResolvesReplies(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	profiles := new(mocks.ProfileLookupMock)
	rm := New(new(mocks.ChatRepositoryMock), messageRepo, new(mocks.ChannelMessageRepositoryMock), profiles)

	messageRepo.On("ListForChat", mock.Anything, 5).Return([]models.PrivateMessage{
		{ID: 1, ChatID: 5, SenderID: 2, RecipientID: 1, Content: strPtr("original"), MessageType: models.MessageTypeText, IsRead: true, DeletedByRecipient: true},
		{ID: 2, ChatID: 5, SenderID: 2, RecipientID: 1, Content: strPtr("a reply"), MessageType: models.MessageTypeText, ReplyToID: intPtr(1)},
	}, nil).Once()
	profiles.On("DisplayNames", mock.Anything, []int{2}).Return(map[int]string{2: "Dr. Orlov"}, nil).Once()

	page, err := rm.ListMessagesFor(context.Background(), 5, 1)
	require.NoError(t, err)

	// The reply target is deleted for this viewer, so only the reply shows,
	// carrying a stub preview instead of the hidden content.
	require.Len(t, page.Messages, 1)
	assert.Equal(t, 2, page.Messages[0].ID)
	assert.Equal(t, "Dr. Orlov", page.Messages[0].SenderName)
	require.NotNil(t, page.Messages[0].Reply)
	assert.False(t, page.Messages[0].Reply.Available)
	assert.Equal(t, 1, page.Messages[0].Reply.MessageID)
	assert.Empty(t, page.Messages[0].Reply.Banner)

	assert.True(t, page.HasUnread)
	assert.Equal(t, 2, page.AnchorID)
}

func TestListChannelMessagesForAppliesTombstoneAndPersonalDeletions(t *testing.T) {
	channelRepo := new(mocks.ChannelMessageRepositoryMock)
	profiles := new(mocks.ProfileLookupMock)
	rm := New(new(mocks.ChatRepositoryMock), new(mocks.MessageRepositoryMock), channelRepo, profiles)

	channelRepo.On("ListForChannel", mock.Anything, 9).Return([]models.ChannelMessage{
		{ID: 1, ChannelID: 9, SenderID: 2, Content: strPtr("kept"), MessageType: models.MessageTypeText},
		{ID: 2, ChannelID: 9, SenderID: 3, Content: strPtr("tombstoned"), MessageType: models.MessageTypeText, DeletedByAll: true},
		{ID: 3, ChannelID: 9, SenderID: 2, Content: strPtr("hidden for viewer"), MessageType: models.MessageTypeText},
	}, nil).Once()
	channelRepo.On("ListPersonalDeletions", mock.Anything, 9, 1).
		Return([]models.PersonalDeletion{{MessageID: 3, UserID: 1}}, nil).Once()
	profiles.On("DisplayNames", mock.Anything, []int{2}).Return(map[int]string{2: "Dr. Orlov"}, nil).Once()

	page, err := rm.ListChannelMessagesFor(context.Background(), 9, 1)
	require.NoError(t, err)

	require.Len(t, page.Messages, 1)
	assert.Equal(t, 1, page.Messages[0].ID)
	channelRepo.AssertExpectations(t)
}

func TestListChatsForBuildsPreviews(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	profiles := new(mocks.ProfileLookupMock)
	rm := New(chatRepo, messageRepo, new(mocks.ChannelMessageRepositoryMock), profiles)

	chatRepo.On("ListForUser", mock.Anything, 1).Return([]models.Chat{
		{ID: 3, Participant1ID: 1, Participant2ID: 2, IsActive: true},
	}, nil).Once()
	profiles.On("DisplayNames", mock.Anything, []int{2}).Return(map[int]string{2: "Dr. Orlov"}, nil).Once()
	seconds := 4
	messageRepo.On("ListForChat", mock.Anything, 3).Return([]models.PrivateMessage{
		{ID: 1, ChatID: 3, SenderID: 1, RecipientID: 2, Content: strPtr("text"), MessageType: models.MessageTypeText},
		{ID: 2, ChatID: 3, SenderID: 2, RecipientID: 1, MessageType: models.MessageTypeVoice, VoiceDurationSeconds: &seconds},
	}, nil).Once()
	messageRepo.On("CountUnread", mock.Anything, 3, 1).Return(1, nil).Once()

	summaries, err := rm.ListChatsFor(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "[voice, 4s]", summaries[0].LastMessagePreview)
	assert.Equal(t, 1, summaries[0].UnreadCount)
}

func TestListChatsForPreviewSkipsMessagesDeletedForViewer(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	profiles := new(mocks.ProfileLookupMock)
	rm := New(chatRepo, messageRepo, new(mocks.ChannelMessageRepositoryMock), profiles)

	chatRepo.On("ListForUser", mock.Anything, 1).Return([]models.Chat{
		{ID: 3, Participant1ID: 1, Participant2ID: 2, IsActive: true},
	}, nil).Once()
	profiles.On("DisplayNames", mock.Anything, []int{2}).Return(map[int]string{2: "Dr. Orlov"}, nil).Once()
	messageRepo.On("ListForChat", mock.Anything, 3).Return([]models.PrivateMessage{
		{ID: 1, ChatID: 3, SenderID: 2, RecipientID: 1, Content: strPtr("visible"), MessageType: models.MessageTypeText},
		{ID: 2, ChatID: 3, SenderID: 2, RecipientID: 1, Content: strPtr("hidden"), MessageType: models.MessageTypeText, DeletedByRecipient: true},
	}, nil).Once()
	messageRepo.On("CountUnread", mock.Anything, 3, 1).Return(0, nil).Once()

	summaries, err := rm.ListChatsFor(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "visible", summaries[0].LastMessagePreview, "the preview comes from the last message the viewer can see")
}
