package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/petvoice/chat-service/internal/feed"
	"github.com/petvoice/chat-service/internal/logger"
	"github.com/petvoice/chat-service/internal/models"
	"github.com/petvoice/chat-service/internal/observability"
)

// Hub maintains active websocket rooms for private chats and channels and
// relays change-feed events to connected clients.
type Hub struct {
	chatRooms       map[int]map[*websocket.Conn]bool
	channelRooms    map[int]map[*websocket.Conn]bool
	chatConnInfo    map[int]map[*websocket.Conn]ConnInfo
	channelConnInfo map[int]map[*websocket.Conn]ConnInfo
	mu              sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		chatRooms:       make(map[int]map[*websocket.Conn]bool),
		channelRooms:    make(map[int]map[*websocket.Conn]bool),
		chatConnInfo:    make(map[int]map[*websocket.Conn]ConnInfo),
		channelConnInfo: make(map[int]map[*websocket.Conn]ConnInfo),
	}
}

// AttachFeed subscribes the hub to the change feed so every mutation that
// goes through the repositories reaches connected clients.
func (h *Hub) AttachFeed(sub feed.Subscription) {
	sub.Subscribe(feed.TopicMessages, h.onMessageEvent)
	sub.Subscribe(feed.TopicChats, h.onChatEvent)
	sub.Subscribe(feed.TopicChannelMessages, h.onChannelEvent)
}

func (h *Hub) onMessageEvent(ev feed.Event) {
	if ev.Message == nil {
		return
	}
	msg := *ev.Message
	event := models.ChatEvent{Type: "message", Message: &msg}
	if ev.Type == feed.EventMessageUpdated {
		event.Type = "message_updated"
		if msg.DeletedBySender && msg.DeletedByRecipient {
			event = models.ChatEvent{Type: "delete_for_all", MessageID: msg.ID}
		}
	}
	h.broadcastChat(msg.ChatID, event)
}

func (h *Hub) onChatEvent(ev feed.Event) {
	if ev.Chat == nil {
		return
	}
	c := *ev.Chat
	h.broadcastChat(c.ID, models.ChatEvent{Type: "chat_update", Chat: &c})
}

func (h *Hub) onChannelEvent(ev feed.Event) {
	if ev.ChannelMessage == nil {
		return
	}
	msg := *ev.ChannelMessage
	event := models.ChannelEvent{Type: "message", Message: &msg}
	if ev.Type == feed.EventMessageUpdated {
		event = models.ChannelEvent{Type: "message_updated", Message: &msg}
		if msg.DeletedByAll {
			event = models.ChannelEvent{Type: "delete_for_all", MessageID: msg.ID}
		}
	}
	h.broadcastChannel(msg.ChannelID, event)
}

// AddChatClient registers a websocket connection to a chat room.
func (h *Hub) AddChatClient(chatID int, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.chatRooms[chatID]; !ok {
		h.chatRooms[chatID] = make(map[*websocket.Conn]bool)
	}
	h.chatRooms[chatID][conn] = true
	if _, ok := h.chatConnInfo[chatID]; !ok {
		h.chatConnInfo[chatID] = make(map[*websocket.Conn]ConnInfo)
	}
	h.chatConnInfo[chatID][conn] = info
}

// RemoveChatClient removes a chat websocket connection.
func (h *Hub) RemoveChatClient(chatID int, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.chatRooms[chatID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.chatRooms, chatID)
		}
	}
	if infos, ok := h.chatConnInfo[chatID]; ok {
		delete(infos, conn)
		if len(infos) == 0 {
			delete(h.chatConnInfo, chatID)
		}
	}
}

// AddChannelClient registers a websocket connection to a channel room.
func (h *Hub) AddChannelClient(channelID int, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.channelRooms[channelID]; !ok {
		h.channelRooms[channelID] = make(map[*websocket.Conn]bool)
	}
	h.channelRooms[channelID][conn] = true
	if _, ok := h.channelConnInfo[channelID]; !ok {
		h.channelConnInfo[channelID] = make(map[*websocket.Conn]ConnInfo)
	}
	h.channelConnInfo[channelID][conn] = info
}

// RemoveChannelClient removes a channel websocket connection.
func (h *Hub) RemoveChannelClient(channelID int, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.channelRooms[channelID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.channelRooms, channelID)
		}
	}
	if infos, ok := h.channelConnInfo[channelID]; ok {
		delete(infos, conn)
		if len(infos) == 0 {
			delete(h.channelConnInfo, channelID)
		}
	}
}

func (h *Hub) broadcastChat(chatID int, event models.ChatEvent) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.chatRooms[chatID]))
	for conn := range h.chatRooms[chatID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	payload, _ := json.Marshal(event)
	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			logger.Error().Err(err).Msg("websocket write error")
			conn.Close()
			h.RemoveChatClient(chatID, conn)
			h.publishWSError("chat", chatID, conn, err)
		}
	}
}

func (h *Hub) broadcastChannel(channelID int, event models.ChannelEvent) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.channelRooms[channelID]))
	for conn := range h.channelRooms[channelID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	payload, _ := json.Marshal(event)
	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			logger.Error().Err(err).Msg("websocket write error")
			conn.Close()
			h.RemoveChannelClient(channelID, conn)
			h.publishWSError("channel", channelID, conn, err)
		}
	}
}

func (h *Hub) publishWSError(kind string, resourceID int, conn *websocket.Conn, err error) {
	info, ok := h.getConnInfo(kind, resourceID, conn)
	if !ok {
		return
	}

	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        kind,
			"resource_id": resourceID,
			"event":       "ws_error",
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      err.Error(),
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), wsRoutingKey(kind), observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   payload,
	}, headers)
	observability.IncWSEvent(kind, "ws_error")
}

func (h *Hub) getConnInfo(kind string, resourceID int, conn *websocket.Conn) (ConnInfo, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if kind == "chat" {
		if infos, ok := h.chatConnInfo[resourceID]; ok {
			info, exists := infos[conn]
			return info, exists
		}
		return ConnInfo{}, false
	}
	if infos, ok := h.channelConnInfo[resourceID]; ok {
		info, exists := infos[conn]
		return info, exists
	}
	return ConnInfo{}, false
}
