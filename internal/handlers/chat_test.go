package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/petvoice/chat-service/internal/feed"
	"github.com/petvoice/chat-service/internal/mocks"
	"github.com/petvoice/chat-service/internal/models"
	"github.com/petvoice/chat-service/internal/readmodel"
	"github.com/petvoice/chat-service/internal/repositories"
)

type chatHandlerFixture struct {
	chatRepo    *mocks.ChatRepositoryMock
	messageRepo *mocks.MessageRepositoryMock
	channelRepo *mocks.ChannelMessageRepositoryMock
	profiles    *mocks.ProfileLookupMock
	sink        *mocks.SinkMock
	bus         *feed.Bus
	router      *gin.Engine
}

func newChatHandlerFixture() *chatHandlerFixture {
	f := &chatHandlerFixture{
		chatRepo:    new(mocks.ChatRepositoryMock),
		messageRepo: new(mocks.MessageRepositoryMock),
		channelRepo: new(mocks.ChannelMessageRepositoryMock),
		profiles:    new(mocks.ProfileLookupMock),
		sink:        new(mocks.SinkMock),
		bus:         feed.NewBus(),
	}

	rm := readmodel.New(f.chatRepo, f.messageRepo, f.channelRepo, f.profiles)
	handler := NewChatHandler(f.chatRepo, f.messageRepo, rm, f.bus, nil, f.sink, nil)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.GET("/chats", handler.ListChats)
	r.POST("/chats/start", handler.StartChat)
	r.GET("/chats/:chat_id/messages", handler.GetChatMessages)
	r.POST("/chats/:chat_id/messages", handler.PostChatMessage)
	r.PATCH("/messages/:message_id", handler.EditMessage)
	r.DELETE("/messages/:message_id", handler.DeleteMessage)
	r.DELETE("/chats/:chat_id", handler.DeleteChat)
	f.router = r
	return f
}

func (f *chatHandlerFixture) do(method, path string, body string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body == "" {
		reader = bytes.NewBuffer(nil)
	} else {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func activeChat(id int) models.Chat {
	return models.Chat{ID: id, Participant1ID: 1, Participant2ID: 2, InitiatedBy: 1, IsActive: true}
}

func TestListChatsSuccess(t *testing.T) {
	f := newChatHandlerFixture()

	content := "last one"
	f.chatRepo.On("ListForUser", mock.Anything, 1).Return([]models.Chat{activeChat(3)}, nil).Once()
	f.profiles.On("DisplayNames", mock.Anything, []int{2}).Return(map[int]string{2: "Dr. Orlov"}, nil).Once()
	f.messageRepo.On("ListForChat", mock.Anything, 3).Return([]models.PrivateMessage{
		{ID: 1, ChatID: 3, SenderID: 2, RecipientID: 1, Content: &content, MessageType: models.MessageTypeText},
	}, nil).Once()
	f.messageRepo.On("CountUnread", mock.Anything, 3, 1).Return(2, nil).Once()

	rec := f.do(http.MethodGet, "/chats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Chats []models.ChatSummary `json:"chats"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Chats, 1)
	assert.Equal(t, "Dr. Orlov", resp.Chats[0].OtherParticipantName)
	assert.Equal(t, "last one", resp.Chats[0].LastMessagePreview)
	assert.Equal(t, 2, resp.Chats[0].UnreadCount)

	f.chatRepo.AssertExpectations(t)
	f.messageRepo.AssertExpectations(t)
	f.profiles.AssertExpectations(t)
}

func TestStartChatSuccess(t *testing.T) {
	f := newChatHandlerFixture()
	f.chatRepo.On("GetOrCreate", mock.Anything, 1, 2).Return(activeChat(10), nil).Once()

	rec := f.do(http.MethodPost, "/chats/start", `{"other_user_id":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	f.chatRepo.AssertExpectations(t)
}

func TestStartChatWithSelfConflict(t *testing.T) {
	f := newChatHandlerFixture()
	f.chatRepo.On("GetOrCreate", mock.Anything, 1, 1).
		Return(models.Chat{}, fmt.Errorf("%w: cannot chat with self", repositories.ErrInvalidState)).Once()

	rec := f.do(http.MethodPost, "/chats/start", `{"other_user_id":1}`)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetChatMessagesForbiddenForNonMember(t *testing.T) {
	f := newChatHandlerFixture()
	f.chatRepo.On("Get", mock.Anything, 5).
		Return(models.Chat{ID: 5, Participant1ID: 8, Participant2ID: 9, IsActive: true}, nil).Once()

	rec := f.do(http.MethodGet, "/chats/5/messages", "")
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetChatMessagesMarksRead(t *testing.T) {
	f := newChatHandlerFixture()

	content := "hi"
	f.chatRepo.On("Get", mock.Anything, 5).Return(activeChat(5), nil).Once()
	f.messageRepo.On("ListForChat", mock.Anything, 5).Return([]models.PrivateMessage{
		{ID: 1, ChatID: 5, SenderID: 2, RecipientID: 1, Content: &content, MessageType: models.MessageTypeText, IsRead: false},
	}, nil).Once()
	f.profiles.On("DisplayNames", mock.Anything, []int{2}).Return(map[int]string{2: "Dr. Orlov"}, nil).Once()

	marked := make(chan struct{})
	f.messageRepo.On("MarkReadBulk", mock.Anything, 5, 1).
		Run(func(mock.Arguments) { close(marked) }).Return(1, nil).Once()

	rec := f.do(http.MethodGet, "/chats/5/messages", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var page readmodel.MessagePage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&page))
	assert.True(t, page.HasUnread, "the served page reflects the pre-open unread state")
	assert.Equal(t, 1, page.AnchorID)

	select {
	case <-marked:
	case <-time.After(time.Second):
		t.Fatal("opening the chat never marked messages read")
	}
}

func TestPostChatMessageReactivatesHiddenChat(t *testing.T) {
	f := newChatHandlerFixture()

	hidden := activeChat(5)
	hidden.DeletedByParticipant2 = true
	reactivatedChat := activeChat(5)

	content := "hello again"
	stored := models.PrivateMessage{
		ID: 9, ChatID: 5, SenderID: 1, RecipientID: 2,
		Content: &content, MessageType: models.MessageTypeText, CreatedAt: time.Now(),
	}

	f.chatRepo.On("Get", mock.Anything, 5).Return(hidden, nil).Once()
	f.messageRepo.On("Append", mock.Anything, mock.MatchedBy(func(m models.PrivateMessage) bool {
		return m.ChatID == 5 && m.SenderID == 1 && m.RecipientID == 2
	})).Return(stored, nil).Once()
	f.chatRepo.On("ReactivateIfNeeded", mock.Anything, 5, stored.CreatedAt).Return(true, nil).Once()
	f.chatRepo.On("Get", mock.Anything, 5).Return(reactivatedChat, nil).Once()
	f.sink.On("ChatReactivated", mock.Anything, reactivatedChat).Once()
	f.sink.On("NewMessage", mock.Anything, stored).Once()

	var chatEvents, messageEvents []feed.Event
	f.bus.Subscribe(feed.TopicChats, func(ev feed.Event) { chatEvents = append(chatEvents, ev) })
	f.bus.Subscribe(feed.TopicMessages, func(ev feed.Event) { messageEvents = append(messageEvents, ev) })

	rec := f.do(http.MethodPost, "/chats/5/messages", `{"content":"hello again"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	require.Len(t, chatEvents, 1)
	assert.True(t, chatEvents[0].Chat.FullyActive(), "reactivation clears both deletion flags")
	require.Len(t, messageEvents, 1)
	assert.Equal(t, feed.EventMessageInserted, messageEvents[0].Type)

	f.chatRepo.AssertExpectations(t)
	f.messageRepo.AssertExpectations(t)
	f.sink.AssertExpectations(t)
}

func TestPostChatMessageInactiveChatConflict(t *testing.T) {
	f := newChatHandlerFixture()

	inactive := activeChat(5)
	inactive.IsActive = false
	f.chatRepo.On("Get", mock.Anything, 5).Return(inactive, nil).Once()

	rec := f.do(http.MethodPost, "/chats/5/messages", `{"content":"hi"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestPostChatMessageNormalPathStampsActivity(t *testing.T) {
	f := newChatHandlerFixture()

	content := "hi"
	stored := models.PrivateMessage{
		ID: 3, ChatID: 5, SenderID: 1, RecipientID: 2,
		Content: &content, MessageType: models.MessageTypeText, CreatedAt: time.Now(),
	}

	f.chatRepo.On("Get", mock.Anything, 5).Return(activeChat(5), nil).Once()
	f.messageRepo.On("Append", mock.Anything, mock.Anything).Return(stored, nil).Once()
	f.chatRepo.On("ReactivateIfNeeded", mock.Anything, 5, stored.CreatedAt).Return(false, nil).Once()
	f.chatRepo.On("TouchLastMessage", mock.Anything, 5, stored.CreatedAt).Return(nil).Once()
	f.sink.On("NewMessage", mock.Anything, stored).Once()

	rec := f.do(http.MethodPost, "/chats/5/messages", `{"content":"hi"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	f.chatRepo.AssertExpectations(t)
	f.sink.AssertExpectations(t)
}

func TestEditMessageSuccess(t *testing.T) {
	f := newChatHandlerFixture()

	newContent := "fixed"
	updated := models.PrivateMessage{ID: 4, ChatID: 5, SenderID: 1, RecipientID: 2, Content: &newContent, MessageType: models.MessageTypeText}
	f.messageRepo.On("Edit", mock.Anything, 4, 1, "fixed").Return(updated, nil).Once()

	var events []feed.Event
	f.bus.Subscribe(feed.TopicMessages, func(ev feed.Event) { events = append(events, ev) })

	rec := f.do(http.MethodPatch, "/messages/4", `{"content":"fixed"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, events, 1)
	assert.Equal(t, feed.EventMessageUpdated, events[0].Type)
}

func TestEditMessageNotFound(t *testing.T) {
	f := newChatHandlerFixture()
	f.messageRepo.On("Edit", mock.Anything, 4, 1, "fixed").
		Return(models.PrivateMessage{}, repositories.ErrNotFound).Once()

	rec := f.do(http.MethodPatch, "/messages/4", `{"content":"fixed"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteMessageForMe(t *testing.T) {
	f := newChatHandlerFixture()

	f.messageRepo.On("SoftDeletePersonal", mock.Anything, 4, 1).Return(nil).Once()
	f.messageRepo.On("Get", mock.Anything, 4).
		Return(models.PrivateMessage{ID: 4, ChatID: 5, SenderID: 1, RecipientID: 2, DeletedBySender: true}, nil).Once()

	rec := f.do(http.MethodDelete, "/messages/4?scope=me", "")
	require.Equal(t, http.StatusOK, rec.Code)
	f.messageRepo.AssertExpectations(t)
}

func TestDeleteMessageForAllUnauthorized(t *testing.T) {
	f := newChatHandlerFixture()
	f.messageRepo.On("SoftDeleteGlobal", mock.Anything, 4, 1).Return(repositories.ErrUnauthorized).Once()

	rec := f.do(http.MethodDelete, "/messages/4?scope=all", "")
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeleteChatForBoth(t *testing.T) {
	f := newChatHandlerFixture()

	closed := activeChat(5)
	closed.DeletedByParticipant1 = true
	closed.DeletedByParticipant2 = true
	now := time.Now()
	closed.DeletedAt = &now

	f.chatRepo.On("Get", mock.Anything, 5).Return(activeChat(5), nil).Once()
	f.chatRepo.On("DeleteForBoth", mock.Anything, 5).Return(nil).Once()
	f.chatRepo.On("Get", mock.Anything, 5).Return(closed, nil).Once()

	var events []feed.Event
	f.bus.Subscribe(feed.TopicChats, func(ev feed.Event) { events = append(events, ev) })

	rec := f.do(http.MethodDelete, "/chats/5?scope=both", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, events, 1)
	assert.NotNil(t, events[0].Chat.DeletedAt)
	f.chatRepo.AssertExpectations(t)
}

func TestDeleteChatInvalidScope(t *testing.T) {
	f := newChatHandlerFixture()
	f.chatRepo.On("Get", mock.Anything, 5).Return(activeChat(5), nil).Once()

	rec := f.do(http.MethodDelete, "/chats/5?scope=everything", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
