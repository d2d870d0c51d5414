package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/petvoice/chat-service/internal/feed"
	"github.com/petvoice/chat-service/internal/logger"
	"github.com/petvoice/chat-service/internal/models"
)

const defaultRetryDelay = 300 * time.Millisecond

// ChatLister is the read side the bridge re-queries during auto-select.
type ChatLister interface {
	ListForUser(ctx context.Context, userID int) ([]models.Chat, error)
}

// Bridge merges change-feed events into one viewer session's local state.
// Events are applied under a single lock, so each handler runs to completion
// before the next: the cooperative model the rest of the session relies on.
type Bridge struct {
	viewerID int
	chats    ChatLister

	mu            sync.Mutex
	focusedChatID int
	messages      []models.PrivateMessage
	index         map[int]int
	pending       map[int]struct{}

	retryDelay      time.Duration
	onAutoSelect    func(chat models.Chat)
	onRemoteMessage func(msg models.PrivateMessage)

	unsubscribes []func()
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithRetryDelay overrides the auto-select retry delay.
func WithRetryDelay(d time.Duration) Option {
	return func(b *Bridge) { b.retryDelay = d }
}

// WithAutoSelect sets the callback fired when a reactivated chat should be
// auto-selected for the viewer.
func WithAutoSelect(fn func(chat models.Chat)) Option {
	return func(b *Bridge) { b.onAutoSelect = fn }
}

// WithRemoteMessage sets the callback fired when a message from the other
// party merges into the focused chat.
func WithRemoteMessage(fn func(msg models.PrivateMessage)) Option {
	return func(b *Bridge) { b.onRemoteMessage = fn }
}

// NewBridge builds a bridge for one viewer session.
func NewBridge(viewerID int, chats ChatLister, opts ...Option) *Bridge {
	b := &Bridge{
		viewerID:   viewerID,
		chats:      chats,
		index:      make(map[int]int),
		pending:    make(map[int]struct{}),
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Attach subscribes the bridge to the message and chat topics.
func (b *Bridge) Attach(sub feed.Subscription) {
	b.unsubscribes = append(b.unsubscribes,
		sub.Subscribe(feed.TopicMessages, b.handleMessageEvent),
		sub.Subscribe(feed.TopicChats, b.handleChatEvent),
	)
}

// Close detaches the bridge from the feed.
func (b *Bridge) Close() {
	for _, unsubscribe := range b.unsubscribes {
		unsubscribe()
	}
	b.unsubscribes = nil
}

// Focus selects a chat and seeds the local message state from a fetch.
func (b *Bridge) Focus(chatID int, msgs []models.PrivateMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.focusedChatID = chatID
	b.messages = append([]models.PrivateMessage(nil), msgs...)
	b.index = make(map[int]int, len(msgs))
	for i, m := range msgs {
		b.index[m.ID] = i
	}
	b.pending = make(map[int]struct{})
}

// Blur clears the focused chat.
func (b *Bridge) Blur() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.focusedChatID = 0
	b.messages = nil
	b.index = make(map[int]int)
	b.pending = make(map[int]struct{})
}

// FocusedChat returns the currently focused chat id, zero for none.
func (b *Bridge) FocusedChat() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.focusedChatID
}

// AppendLocal records an optimistic local append. The placeholder is keyed
// by id and later replaced in place by the confirmed change-feed row.
func (b *Bridge) AppendLocal(msg models.PrivateMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if msg.ChatID != b.focusedChatID {
		return
	}
	if _, ok := b.index[msg.ID]; ok {
		return
	}
	b.index[msg.ID] = len(b.messages)
	b.messages = append(b.messages, msg)
	b.pending[msg.ID] = struct{}{}
}

// Messages returns a snapshot of the merged local state.
func (b *Bridge) Messages() []models.PrivateMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.PrivateMessage(nil), b.messages...)
}

// PendingCount reports how many optimistic appends still await their echo.
func (b *Bridge) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (b *Bridge) handleMessageEvent(ev feed.Event) {
	if ev.Message == nil {
		return
	}
	msg := *ev.Message

	b.mu.Lock()
	if msg.ChatID != b.focusedChatID || !msg.IsParticipant(b.viewerID) {
		b.mu.Unlock()
		return
	}

	if pos, ok := b.index[msg.ID]; ok {
		// Echo of a row already present, possibly the confirmation of an
		// optimistic append: replace in place, never duplicate.
		b.messages[pos] = msg
		delete(b.pending, msg.ID)
		b.mu.Unlock()
		return
	}
	if ev.Type == feed.EventMessageUpdated {
		// Update for a row this session never loaded.
		b.mu.Unlock()
		return
	}

	b.index[msg.ID] = len(b.messages)
	b.messages = append(b.messages, msg)
	remote := msg.SenderID != b.viewerID
	callback := b.onRemoteMessage
	b.mu.Unlock()

	if remote && callback != nil {
		callback(msg)
	}
}

func (b *Bridge) handleChatEvent(ev feed.Event) {
	if ev.Chat == nil || ev.Type != feed.EventChatUpdated {
		return
	}
	c := *ev.Chat
	if !c.HasParticipant(b.viewerID) || !c.FullyActive() {
		return
	}

	b.mu.Lock()
	focused := b.focusedChatID
	b.mu.Unlock()
	if focused != 0 {
		return
	}

	go b.autoSelect(c.ID)
}

// autoSelect re-queries the chat list until the reactivated chat reappears,
// with a single bounded retry. Giving up is silent: the viewer can always
// reselect the chat manually.
func (b *Bridge) autoSelect(chatID int) {
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			time.Sleep(b.retryDelay)
		}

		chats, err := b.chats.ListForUser(context.Background(), b.viewerID)
		if err != nil {
			logger.Warn().Err(err).Int("chat_id", chatID).Msg("auto-select list failed")
			continue
		}
		for _, c := range chats {
			if c.ID != chatID {
				continue
			}
			b.mu.Lock()
			stillUnfocused := b.focusedChatID == 0
			b.mu.Unlock()
			if stillUnfocused && b.onAutoSelect != nil {
				b.onAutoSelect(c)
			}
			return
		}
	}
}
