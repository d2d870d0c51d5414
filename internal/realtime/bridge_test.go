package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petvoice/chat-service/internal/feed"
	"github.com/petvoice/chat-service/internal/models"
)

type listerStub struct {
	mu      sync.Mutex
	results [][]models.Chat
	calls   int
}

func (l *listerStub) ListForUser(ctx context.Context, userID int) ([]models.Chat, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.Chat
	if l.calls < len(l.results) {
		out = l.results[l.calls]
	} else if len(l.results) > 0 {
		out = l.results[len(l.results)-1]
	}
	l.calls++
	return out, nil
}

func msgEvent(eventType string, msg models.PrivateMessage) feed.Event {
	return feed.Event{Topic: feed.TopicMessages, Type: eventType, Message: &msg}
}

func TestInsertEventIsIdempotent(t *testing.T) {
	bus := feed.NewBus()
	bridge := NewBridge(1, &listerStub{})
	bridge.Attach(bus)
	defer bridge.Close()

	bridge.Focus(5, nil)

	msg := models.PrivateMessage{ID: 10, ChatID: 5, SenderID: 2, RecipientID: 1}
	bus.Publish(msgEvent(feed.EventMessageInserted, msg))
	bus.Publish(msgEvent(feed.EventMessageInserted, msg))

	require.Len(t, bridge.Messages(), 1)
}

func TestOptimisticAppendReplacedInPlace(t *testing.T) {
	bus := feed.NewBus()
	bridge := NewBridge(1, &listerStub{})
	bridge.Attach(bus)
	defer bridge.Close()

	bridge.Focus(5, []models.PrivateMessage{{ID: 1, ChatID: 5, SenderID: 2, RecipientID: 1}})

	pendingContent := "sending..."
	bridge.AppendLocal(models.PrivateMessage{ID: 2, ChatID: 5, SenderID: 1, RecipientID: 2, Content: &pendingContent})
	require.Equal(t, 1, bridge.PendingCount())

	confirmed := "sent"
	bus.Publish(msgEvent(feed.EventMessageInserted, models.PrivateMessage{
		ID: 2, ChatID: 5, SenderID: 1, RecipientID: 2, Content: &confirmed, IsRead: false,
	}))

	msgs := bridge.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, 2, msgs[1].ID)
	require.NotNil(t, msgs[1].Content)
	assert.Equal(t, "sent", *msgs[1].Content)
	assert.Equal(t, 0, bridge.PendingCount())
}

func TestUpdateForUnknownRowIgnored(t *testing.T) {
	bus := feed.NewBus()
	bridge := NewBridge(1, &listerStub{})
	bridge.Attach(bus)
	defer bridge.Close()

	bridge.Focus(5, nil)

	bus.Publish(msgEvent(feed.EventMessageUpdated, models.PrivateMessage{ID: 99, ChatID: 5, SenderID: 2, RecipientID: 1}))
	assert.Empty(t, bridge.Messages())
}

func TestEventsForOtherChatsIgnored(t *testing.T) {
	bus := feed.NewBus()
	bridge := NewBridge(1, &listerStub{})
	bridge.Attach(bus)
	defer bridge.Close()

	bridge.Focus(5, nil)

	bus.Publish(msgEvent(feed.EventMessageInserted, models.PrivateMessage{ID: 1, ChatID: 6, SenderID: 2, RecipientID: 1}))
	assert.Empty(t, bridge.Messages())
}

func TestRemoteMessageCallback(t *testing.T) {
	bus := feed.NewBus()
	var remote []int
	bridge := NewBridge(1, &listerStub{}, WithRemoteMessage(func(msg models.PrivateMessage) {
		remote = append(remote, msg.ID)
	}))
	bridge.Attach(bus)
	defer bridge.Close()

	bridge.Focus(5, nil)

	bus.Publish(msgEvent(feed.EventMessageInserted, models.PrivateMessage{ID: 1, ChatID: 5, SenderID: 2, RecipientID: 1}))
	bus.Publish(msgEvent(feed.EventMessageInserted, models.PrivateMessage{ID: 2, ChatID: 5, SenderID: 1, RecipientID: 2}))

	assert.Equal(t, []int{1}, remote, "only the other party's messages fire the callback")
}

func TestReactivationAutoSelectRetriesStaleList(t *testing.T) {
	reactivated := models.Chat{ID: 7, Participant1ID: 1, Participant2ID: 2, IsActive: true}

	// First list read is stale and misses the chat; the retry sees it.
	lister := &listerStub{results: [][]models.Chat{{}, {reactivated}}}

	selected := make(chan models.Chat, 1)
	bridge := NewBridge(1, lister,
		WithRetryDelay(time.Millisecond),
		WithAutoSelect(func(c models.Chat) { selected <- c }),
	)
	bus := feed.NewBus()
	bridge.Attach(bus)
	defer bridge.Close()

	bus.Publish(feed.Event{Topic: feed.TopicChats, Type: feed.EventChatUpdated, Chat: &reactivated})

	select {
	case c := <-selected:
		assert.Equal(t, 7, c.ID)
	case <-time.After(time.Second):
		t.Fatal("auto-select never fired")
	}
}

func TestReactivationAutoSelectGivesUpSilently(t *testing.T) {
	reactivated := models.Chat{ID: 7, Participant1ID: 1, Participant2ID: 2, IsActive: true}
	lister := &listerStub{results: [][]models.Chat{{}}}

	selected := make(chan models.Chat, 1)
	bridge := NewBridge(1, lister,
		WithRetryDelay(time.Millisecond),
		WithAutoSelect(func(c models.Chat) { selected <- c }),
	)
	bus := feed.NewBus()
	bridge.Attach(bus)
	defer bridge.Close()

	bus.Publish(feed.Event{Topic: feed.TopicChats, Type: feed.EventChatUpdated, Chat: &reactivated})

	select {
	case <-selected:
		t.Fatal("auto-select fired for a chat the list never showed")
	case <-time.After(50 * time.Millisecond):
	}

	lister.mu.Lock()
	calls := lister.calls
	lister.mu.Unlock()
	assert.Equal(t, 2, calls, "one retry, then give up")
}

func TestAutoSelectSkippedWhenAlreadyFocused(t *testing.T) {
	reactivated := models.Chat{ID: 7, Participant1ID: 1, Participant2ID: 2, IsActive: true}
	lister := &listerStub{results: [][]models.Chat{{reactivated}}}

	selected := make(chan models.Chat, 1)
	bridge := NewBridge(1, lister,
		WithRetryDelay(time.Millisecond),
		WithAutoSelect(func(c models.Chat) { selected <- c }),
	)
	bus := feed.NewBus()
	bridge.Attach(bus)
	defer bridge.Close()

	bridge.Focus(3, nil)
	bus.Publish(feed.Event{Topic: feed.TopicChats, Type: feed.EventChatUpdated, Chat: &reactivated})

	select {
	case <-selected:
		t.Fatal("auto-select must not steal focus")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHiddenChatUpdateDoesNotAutoSelect(t *testing.T) {
	stillHidden := models.Chat{ID: 7, Participant1ID: 1, Participant2ID: 2, IsActive: true, DeletedByParticipant2: true}
	lister := &listerStub{results: [][]models.Chat{{stillHidden}}}

	selected := make(chan models.Chat, 1)
	bridge := NewBridge(1, lister,
		WithRetryDelay(time.Millisecond),
		WithAutoSelect(func(c models.Chat) { selected <- c }),
	)
	bus := feed.NewBus()
	bridge.Attach(bus)
	defer bridge.Close()

	bus.Publish(feed.Event{Topic: feed.TopicChats, Type: feed.EventChatUpdated, Chat: &stillHidden})

	select {
	case <-selected:
		t.Fatal("auto-select fired for a chat that is still hidden on one side")
	case <-time.After(50 * time.Millisecond):
	}
}
