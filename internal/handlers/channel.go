package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/petvoice/chat-service/internal/feed"
	"github.com/petvoice/chat-service/internal/models"
	"github.com/petvoice/chat-service/internal/observability"
	"github.com/petvoice/chat-service/internal/readmodel"
	"github.com/petvoice/chat-service/internal/repositories"
)

// ChannelHandler manages broadcast channel endpoints. Channel membership is
// implicit: any authenticated user may read and post.
type ChannelHandler struct {
	channelRepo repositories.ChannelMessageRepository
	readModel   *readmodel.ReadModel
	feed        feed.Subscription
}

// NewChannelHandler builds a ChannelHandler.
func NewChannelHandler(channelRepo repositories.ChannelMessageRepository, readModel *readmodel.ReadModel, bus feed.Subscription) *ChannelHandler {
	return &ChannelHandler{channelRepo: channelRepo, readModel: readModel, feed: bus}
}

// GetChannelMessages returns the visible message page for the user.
func (h *ChannelHandler) GetChannelMessages(c *gin.Context) {
	channelID, err := strconv.Atoi(c.Param("channel_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel id"})
		return
	}
	userID := c.GetInt("userID")

	page, err := h.readModel.ListChannelMessagesFor(c.Request.Context(), channelID, userID)
	if err != nil {
		abortWith(c, err, "failed to load messages")
		return
	}
	c.JSON(http.StatusOK, page)
}

// PostChannelMessage stores a channel message and broadcasts it.
func (h *ChannelHandler) PostChannelMessage(c *gin.Context) {
	channelID, err := strconv.Atoi(c.Param("channel_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel id"})
		return
	}
	userID := c.GetInt("userID")

	var req struct {
		Content              *string `json:"content"`
		MessageType          string  `json:"message_type"`
		VoiceDurationSeconds *int    `json:"voice_duration_seconds"`
		ReplyToID            *int    `json:"reply_to_id"`
		IsEmergency          bool    `json:"is_emergency"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.MessageType == "" {
		req.MessageType = string(models.MessageTypeText)
	}

	stored, err := h.channelRepo.Append(c.Request.Context(), models.ChannelMessage{
		ChannelID:            channelID,
		SenderID:             userID,
		Content:              req.Content,
		MessageType:          models.MessageType(req.MessageType),
		VoiceDurationSeconds: req.VoiceDurationSeconds,
		ReplyToID:            req.ReplyToID,
		IsEmergency:          req.IsEmergency,
	})
	if err != nil {
		abortWith(c, err, "failed to store message")
		return
	}

	h.feed.Publish(feed.Event{Topic: feed.TopicChannelMessages, Type: feed.EventMessageInserted, ChannelMessage: &stored})
	c.JSON(http.StatusCreated, gin.H{"message": stored})
}

// DeleteChannelMessage soft-deletes one channel message. scope=me appends a
// personal-deletion record; scope=all raises the tombstone (sender only).
func (h *ChannelHandler) DeleteChannelMessage(c *gin.Context) {
	messageID, err := strconv.Atoi(c.Param("message_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}
	userID := c.GetInt("userID")
	scope := c.DefaultQuery("scope", "me")

	switch scope {
	case "me":
		err = h.channelRepo.SoftDeletePersonal(c.Request.Context(), messageID, userID)
	case "all":
		err = h.channelRepo.SoftDeleteGlobal(c.Request.Context(), messageID, userID)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "scope must be me or all"})
		return
	}
	if err != nil {
		abortWith(c, err, "failed to delete message")
		return
	}

	observability.IncMessagesDeleted(scope, 1)
	if scope == "all" {
		if updated, err := h.channelRepo.Get(c.Request.Context(), messageID); err == nil {
			h.feed.Publish(feed.Event{Topic: feed.TopicChannelMessages, Type: feed.EventMessageUpdated, ChannelMessage: &updated})
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
