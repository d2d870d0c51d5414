package feed

import (
	"sync"

	"github.com/petvoice/chat-service/internal/models"
)

// Topics carried by the change feed.
const (
	TopicMessages        = "messages"
	TopicChats           = "chats"
	TopicChannelMessages = "channel_messages"
)

// Event types.
const (
	EventMessageInserted = "message_inserted"
	EventMessageUpdated  = "message_updated"
	EventChatUpdated     = "chat_updated"
)

// Event is one change-feed entry. Exactly one of the payload pointers is set
// depending on the topic.
type Event struct {
	Topic          string
	Type           string
	Message        *models.PrivateMessage
	ChannelMessage *models.ChannelMessage
	Chat           *models.Chat
}

// Handler consumes one event. Delivery is at-least-once and possibly
// duplicated; handlers are responsible for their own idempotency.
type Handler func(Event)

// Subscription is a push-based change feed.
type Subscription interface {
	Subscribe(topic string, handler Handler) (unsubscribe func())
	Publish(event Event)
}

// Bus is an in-process Subscription. Handlers run synchronously on the
// publisher's goroutine, in subscription order.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[string]map[int]Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[string]map[int]Handler)}
}

// Subscribe registers a handler for a topic and returns its unsubscribe
// token. Unsubscribing twice is harmless.
func (b *Bus) Subscribe(topic string, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.handlers[topic]; !ok {
		b.handlers[topic] = make(map[int]Handler)
	}
	id := b.nextID
	b.nextID++
	b.handlers[topic][id] = handler

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if handlers, ok := b.handlers[topic]; ok {
			delete(handlers, id)
			if len(handlers) == 0 {
				delete(b.handlers, topic)
			}
		}
	}
}

// Publish delivers the event to every subscriber of its topic.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[event.Topic]))
	for _, h := range b.handlers[event.Topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}
