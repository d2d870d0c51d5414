package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/petvoice/chat-service/internal/chat"
	"github.com/petvoice/chat-service/internal/feed"
	"github.com/petvoice/chat-service/internal/observability"
	"github.com/petvoice/chat-service/internal/repositories"
)

// BulkDeleteHandler applies one deletion action to a whole selection.
type BulkDeleteHandler struct {
	chatRepo    repositories.ChatRepository
	messageRepo repositories.MessageRepository
	feed        feed.Subscription
}

// NewBulkDeleteHandler builds a BulkDeleteHandler.
func NewBulkDeleteHandler(chatRepo repositories.ChatRepository, messageRepo repositories.MessageRepository, bus feed.Subscription) *BulkDeleteHandler {
	return &BulkDeleteHandler{chatRepo: chatRepo, messageRepo: messageRepo, feed: bus}
}

// BulkDelete deletes the selected messages of one chat. scope=me hides every
// selected message for the caller. scope=all deletes the caller's own
// messages for everyone and falls back to a personal delete for the received
// ones; the response reports both counts separately.
func (h *BulkDeleteHandler) BulkDelete(c *gin.Context) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}
	userID := c.GetInt("userID")

	var req struct {
		MessageIDs []int  `json:"message_ids" binding:"required"`
		Scope      string `json:"scope"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Scope == "" {
		req.Scope = "me"
	}
	if req.Scope != "me" && req.Scope != "all" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "scope must be me or all"})
		return
	}

	chatRow, err := h.chatRepo.Get(c.Request.Context(), chatID)
	if err != nil {
		abortWith(c, err, "failed to load chat")
		return
	}
	if !chatRow.HasParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat member"})
		return
	}

	raw, err := h.messageRepo.ListForChat(c.Request.Context(), chatID)
	if err != nil {
		abortWith(c, err, "failed to load messages")
		return
	}
	views := make([]chat.Message, 0, len(raw))
	for _, m := range raw {
		views = append(views, chat.FromPrivate(m))
	}

	selected := make(map[int]struct{}, len(req.MessageIDs))
	for _, id := range req.MessageIDs {
		selected[id] = struct{}{}
	}

	coordinator := chat.NewCoordinator(h.messageRepo)
	var summary chat.BulkDeleteSummary
	if req.Scope == "me" {
		summary = coordinator.DeleteForMe(c.Request.Context(), views, selected, userID)
	} else {
		summary = coordinator.DeleteForAllEligible(c.Request.Context(), views, selected, userID)
	}

	observability.IncMessagesDeleted("all", summary.ForAllCount)
	observability.IncMessagesDeleted("me", summary.ForMeCount)
	h.publishUpdates(c, req.MessageIDs, summary.FailedIDs)

	c.JSON(http.StatusOK, summary)
}

func (h *BulkDeleteHandler) publishUpdates(c *gin.Context, requested, failed []int) {
	failedSet := make(map[int]struct{}, len(failed))
	for _, id := range failed {
		failedSet[id] = struct{}{}
	}
	for _, id := range requested {
		if _, bad := failedSet[id]; bad {
			continue
		}
		if updated, err := h.messageRepo.Get(c.Request.Context(), id); err == nil {
			h.feed.Publish(feed.Event{Topic: feed.TopicMessages, Type: feed.EventMessageUpdated, Message: &updated})
		}
	}
}
