package handlers

import (
	"context"
	"encoding/base64"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/petvoice/chat-service/internal/blob"
	"github.com/petvoice/chat-service/internal/feed"
	"github.com/petvoice/chat-service/internal/logger"
	"github.com/petvoice/chat-service/internal/models"
	"github.com/petvoice/chat-service/internal/notify"
	"github.com/petvoice/chat-service/internal/observability"
	"github.com/petvoice/chat-service/internal/readmodel"
	"github.com/petvoice/chat-service/internal/repositories"
	"github.com/petvoice/chat-service/internal/telemetry"
)

// ChatHandler manages private chat endpoints.
type ChatHandler struct {
	chatRepo    repositories.ChatRepository
	messageRepo repositories.MessageRepository
	readModel   *readmodel.ReadModel
	feed        feed.Subscription
	blobs       blob.Store
	sink        notify.Sink
	audit       *telemetry.AuditEmitter
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(
	chatRepo repositories.ChatRepository,
	messageRepo repositories.MessageRepository,
	readModel *readmodel.ReadModel,
	bus feed.Subscription,
	blobs blob.Store,
	sink notify.Sink,
	audit *telemetry.AuditEmitter,
) *ChatHandler {
	return &ChatHandler{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		readModel:   readModel,
		feed:        bus,
		blobs:       blobs,
		sink:        sink,
		audit:       audit,
	}
}

// ListChats returns the chat list for the authenticated user with counterpart
// names, previews and unread counts.
func (h *ChatHandler) ListChats(c *gin.Context) {
	userID := c.GetInt("userID")

	summaries, err := h.readModel.ListChatsFor(c.Request.Context(), userID)
	if err != nil {
		abortWith(c, err, "failed to load chats")
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": summaries})
}

// StartChat creates or resolves the chat between the user and the other party.
func (h *ChatHandler) StartChat(c *gin.Context) {
	var req struct {
		OtherUserID int `json:"other_user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	chat, err := h.chatRepo.GetOrCreate(c.Request.Context(), userID, req.OtherUserID)
	if err != nil {
		abortWith(c, err, "could not create chat")
		return
	}

	c.JSON(http.StatusOK, gin.H{"chat": chat})
}

// GetChatMessages returns the visible message page for the user and marks the
// addressed messages as read.
func (h *ChatHandler) GetChatMessages(c *gin.Context) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}
	userID := c.GetInt("userID")

	chat, err := h.chatRepo.Get(c.Request.Context(), chatID)
	if err != nil {
		abortWith(c, err, "failed to load chat")
		return
	}
	if !chat.HasParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat member"})
		return
	}

	page, err := h.readModel.ListMessagesFor(c.Request.Context(), chatID, userID)
	if err != nil {
		abortWith(c, err, "failed to load messages")
		return
	}

	// Opening the chat consumes the unread state. The page that was just
	// built still carries the anchor computed from the pre-open state.
	go func() {
		if _, err := h.messageRepo.MarkReadBulk(context.Background(), chatID, userID); err != nil {
			logger.Warn().Err(err).Int("chat_id", chatID).Msg("mark read failed")
		}
	}()

	c.JSON(http.StatusOK, page)
}

// PostChatMessage stores a message, handles attachment upload, reactivates the
// chat when a side had hidden it, and fans the change out.
func (h *ChatHandler) PostChatMessage(c *gin.Context) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}
	userID := c.GetInt("userID")

	var req struct {
		Content              *string `json:"content"`
		MessageType          string  `json:"message_type"`
		VoiceDurationSeconds *int    `json:"voice_duration_seconds"`
		ReplyToID            *int    `json:"reply_to_id"`
		IsEmergency          bool    `json:"is_emergency"`
		Attachment           string  `json:"attachment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.MessageType == "" {
		req.MessageType = string(models.MessageTypeText)
	}

	chat, err := h.chatRepo.Get(c.Request.Context(), chatID)
	if err != nil {
		abortWith(c, err, "failed to load chat")
		return
	}
	if !chat.HasParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat member"})
		return
	}
	if !chat.IsActive {
		c.JSON(http.StatusConflict, gin.H{"error": "chat is not active"})
		return
	}

	msg := models.PrivateMessage{
		ChatID:               chatID,
		SenderID:             userID,
		RecipientID:          chat.OtherParticipant(userID),
		Content:              req.Content,
		MessageType:          models.MessageType(req.MessageType),
		VoiceDurationSeconds: req.VoiceDurationSeconds,
		ReplyToID:            req.ReplyToID,
		IsEmergency:          req.IsEmergency,
	}

	if req.Attachment != "" {
		fileURL, ok := h.uploadAttachment(c, req.Attachment, msg.MessageType)
		if !ok {
			return
		}
		msg.FileURL = &fileURL
	}

	stored, err := h.messageRepo.Append(c.Request.Context(), msg)
	if err != nil {
		abortWith(c, err, "failed to store message")
		return
	}

	reactivated, err := h.chatRepo.ReactivateIfNeeded(c.Request.Context(), chatID, stored.CreatedAt)
	if err != nil {
		logger.Error().Err(err).Int("chat_id", chatID).Msg("reactivation check failed")
	}
	if reactivated {
		observability.IncChatReactivation()
		if fresh, err := h.chatRepo.Get(c.Request.Context(), chatID); err == nil {
			h.sink.ChatReactivated(c.Request.Context(), fresh)
			h.feed.Publish(feed.Event{Topic: feed.TopicChats, Type: feed.EventChatUpdated, Chat: &fresh})
		}
	} else {
		if err := h.chatRepo.TouchLastMessage(c.Request.Context(), chatID, stored.CreatedAt); err != nil {
			logger.Warn().Err(err).Int("chat_id", chatID).Msg("last message stamp failed")
		}
	}

	h.feed.Publish(feed.Event{Topic: feed.TopicMessages, Type: feed.EventMessageInserted, Message: &stored})
	h.sink.NewMessage(c.Request.Context(), stored)
	h.audit.Emit(c.Request.Context(), "info", "message sent", requestIDFromContext(c), userIDPtr(userID))

	c.JSON(http.StatusCreated, gin.H{"message": stored})
}

// EditMessage replaces the content of the user's own text message.
func (h *ChatHandler) EditMessage(c *gin.Context) {
	messageID, err := strconv.Atoi(c.Param("message_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}
	userID := c.GetInt("userID")

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.messageRepo.Edit(c.Request.Context(), messageID, userID, req.Content)
	if err != nil {
		abortWith(c, err, "failed to edit message")
		return
	}

	h.feed.Publish(feed.Event{Topic: feed.TopicMessages, Type: feed.EventMessageUpdated, Message: &updated})
	c.JSON(http.StatusOK, gin.H{"message": updated})
}

// DeleteMessage soft-deletes one message. scope=me hides it for the caller;
// scope=all removes it for both parties (sender only).
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	messageID, err := strconv.Atoi(c.Param("message_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}
	userID := c.GetInt("userID")
	scope := c.DefaultQuery("scope", "me")

	switch scope {
	case "me":
		err = h.messageRepo.SoftDeletePersonal(c.Request.Context(), messageID, userID)
	case "all":
		err = h.messageRepo.SoftDeleteGlobal(c.Request.Context(), messageID, userID)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "scope must be me or all"})
		return
	}
	if err != nil {
		abortWith(c, err, "failed to delete message")
		return
	}

	observability.IncMessagesDeleted(scope, 1)
	if updated, err := h.messageRepo.Get(c.Request.Context(), messageID); err == nil {
		h.feed.Publish(feed.Event{Topic: feed.TopicMessages, Type: feed.EventMessageUpdated, Message: &updated})
	}
	h.audit.Emit(c.Request.Context(), "info", "message deleted", requestIDFromContext(c), userIDPtr(userID))

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// DeleteChat hides the chat for the caller (scope=me) or closes it for both
// sides (scope=both).
func (h *ChatHandler) DeleteChat(c *gin.Context) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}
	userID := c.GetInt("userID")
	scope := c.DefaultQuery("scope", "me")

	chat, err := h.chatRepo.Get(c.Request.Context(), chatID)
	if err != nil {
		abortWith(c, err, "failed to load chat")
		return
	}
	if !chat.HasParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat member"})
		return
	}

	switch scope {
	case "me":
		err = h.chatRepo.DeleteForOne(c.Request.Context(), chatID, userID)
	case "both":
		err = h.chatRepo.DeleteForBoth(c.Request.Context(), chatID)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "scope must be me or both"})
		return
	}
	if err != nil {
		abortWith(c, err, "failed to delete chat")
		return
	}

	if fresh, err := h.chatRepo.Get(c.Request.Context(), chatID); err == nil {
		h.feed.Publish(feed.Event{Topic: feed.TopicChats, Type: feed.EventChatUpdated, Chat: &fresh})
	}
	h.audit.Emit(c.Request.Context(), "info", "chat deleted", requestIDFromContext(c), userIDPtr(userID))

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *ChatHandler) uploadAttachment(c *gin.Context, attachment string, msgType models.MessageType) (string, bool) {
	var kind blob.Kind
	switch msgType {
	case models.MessageTypeImage:
		kind = blob.KindImage
	case models.MessageTypeVoice:
		kind = blob.KindVoice
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "attachments require an image or voice message"})
		return "", false
	}

	data, err := base64.StdEncoding.DecodeString(attachment)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "attachment is not valid base64"})
		return "", false
	}

	// An upload failure aborts the send; nothing is written to the chat.
	fileURL, err := h.blobs.Upload(c.Request.Context(), data, kind)
	if err != nil {
		logger.Error().Err(err).Msg("attachment upload failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "attachment upload failed"})
		return "", false
	}
	return fileURL, true
}
