package ws

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"github.com/petvoice/chat-service/internal/observability"
)

// ChannelWebSocketHandler handles community channel websocket connections.
// Channel membership is implicit: any authenticated user may subscribe.
type ChannelWebSocketHandler struct {
	hub       *Hub
	jwtSecret string
}

// NewChannelWebSocketHandler constructs a ChannelWebSocketHandler.
func NewChannelWebSocketHandler(hub *Hub, jwtSecret string) *ChannelWebSocketHandler {
	return &ChannelWebSocketHandler{hub: hub, jwtSecret: jwtSecret}
}

// Handle upgrades the connection and registers the client in the channel room.
func (h *ChannelWebSocketHandler) Handle(c *gin.Context) {
	channelID, err := strconv.Atoi(c.Param("channel_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel id"})
		return
	}

	ctx, span := otel.Tracer("petvoice-chat/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, err := tokenUser(c, h.jwtSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	h.hub.AddChannelClient(channelID, conn, info)

	observability.IncWSActive("channel")
	observability.IncWSEvent("channel", "ws_connect")
	publishLifecycleEvent(ctx, "channel", channelID, info, "ws_connect", "")

	go func() {
		var closeReason string
		defer func() {
			h.hub.RemoveChannelClient(channelID, conn)
			observability.DecWSActive("channel")
			observability.IncWSEvent("channel", "ws_disconnect")
			publishLifecycleEvent(ctx, "channel", channelID, info, "ws_disconnect", closeReason)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					observability.IncWSEvent("channel", "ws_error")
					publishLifecycleEvent(ctx, "channel", channelID, info, "ws_error", closeReason)
				}
				return
			}
		}
	}()
}
