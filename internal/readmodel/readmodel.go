package readmodel

import (
	"context"

	"github.com/petvoice/chat-service/internal/chat"
	"github.com/petvoice/chat-service/internal/models"
	"github.com/petvoice/chat-service/internal/repositories"
)

const lastMessagePreviewLimit = 50

// VisibleMessage is one message as the viewer sees it, with the sender's
// display name and the resolved reply preview attached.
type VisibleMessage struct {
	chat.Message
	SenderName string             `json:"sender_name"`
	Reply      *chat.ReplyPreview `json:"reply,omitempty"`
}

// MessagePage is the result of opening a chat or channel: the visible
// messages plus the scroll anchor.
type MessagePage struct {
	Messages  []VisibleMessage `json:"messages"`
	AnchorID  int              `json:"anchor_id,omitempty"`
	HasUnread bool             `json:"has_unread"`
}

// ReadModel composes repositories, the visibility engine, the reply
// resolver and unread accounting into the queries the UI layer consumes.
type ReadModel struct {
	chats    repositories.ChatRepository
	messages repositories.MessageRepository
	channels repositories.ChannelMessageRepository
	profiles repositories.ProfileLookup
}

// New builds a ReadModel.
func New(
	chats repositories.ChatRepository,
	messages repositories.MessageRepository,
	channels repositories.ChannelMessageRepository,
	profiles repositories.ProfileLookup,
) *ReadModel {
	return &ReadModel{chats: chats, messages: messages, channels: channels, profiles: profiles}
}

// ListChatsFor returns the viewer's chat list with counterpart names, last
// visible message previews and recomputed unread counts.
func (rm *ReadModel) ListChatsFor(ctx context.Context, viewerID int) ([]models.ChatSummary, error) {
	chats, err := rm.chats.ListForUser(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	otherIDs := make([]int, 0, len(chats))
	for _, c := range chats {
		otherIDs = append(otherIDs, c.OtherParticipant(viewerID))
	}
	names, err := rm.profiles.DisplayNames(ctx, otherIDs)
	if err != nil {
		return nil, err
	}

	engine := chat.NewEngine(chat.FlagPairStrategy{})
	summaries := make([]models.ChatSummary, 0, len(chats))
	for _, c := range chats {
		raw, err := rm.messages.ListForChat(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		visible := engine.Filter(toViews(raw), viewerID)

		preview := ""
		if len(visible) > 0 {
			preview = chat.PreviewText(visible[len(visible)-1], lastMessagePreviewLimit)
		}

		unread, err := rm.messages.CountUnread(ctx, c.ID, viewerID)
		if err != nil {
			return nil, err
		}

		summaries = append(summaries, models.ChatSummary{
			Chat:                 c,
			OtherParticipantID:   c.OtherParticipant(viewerID),
			OtherParticipantName: names[c.OtherParticipant(viewerID)],
			LastMessagePreview:   preview,
			UnreadCount:          unread,
		})
	}
	return summaries, nil
}

// ListMessagesFor returns the viewer's visible messages of one chat with
// reply previews resolved against that same visible set.
func (rm *ReadModel) ListMessagesFor(ctx context.Context, chatID int, viewerID int) (MessagePage, error) {
	raw, err := rm.messages.ListForChat(ctx, chatID)
	if err != nil {
		return MessagePage{}, err
	}
	engine := chat.NewEngine(chat.FlagPairStrategy{})
	visible := engine.Filter(toViews(raw), viewerID)
	return rm.buildPage(ctx, visible, viewerID)
}

// ListChannelMessagesFor is the channel counterpart of ListMessagesFor,
// backed by the tombstone-plus-deletion-set strategy.
func (rm *ReadModel) ListChannelMessagesFor(ctx context.Context, channelID int, viewerID int) (MessagePage, error) {
	raw, err := rm.channels.ListForChannel(ctx, channelID)
	if err != nil {
		return MessagePage{}, err
	}
	deletions, err := rm.channels.ListPersonalDeletions(ctx, channelID, viewerID)
	if err != nil {
		return MessagePage{}, err
	}

	engine := chat.NewEngine(chat.NewSetMembershipStrategy(deletions))
	views := make([]chat.Message, 0, len(raw))
	for _, m := range raw {
		views = append(views, chat.FromChannel(m))
	}
	visible := engine.Filter(views, viewerID)
	return rm.buildPage(ctx, visible, viewerID)
}

func (rm *ReadModel) buildPage(ctx context.Context, visible []chat.Message, viewerID int) (MessagePage, error) {
	senderIDs := make([]int, 0, len(visible))
	seen := map[int]struct{}{}
	for _, m := range visible {
		if _, ok := seen[m.SenderID]; !ok {
			seen[m.SenderID] = struct{}{}
			senderIDs = append(senderIDs, m.SenderID)
		}
	}
	names, err := rm.profiles.DisplayNames(ctx, senderIDs)
	if err != nil {
		return MessagePage{}, err
	}

	resolver := chat.NewResolver(visible)
	out := make([]VisibleMessage, 0, len(visible))
	for _, m := range visible {
		out = append(out, VisibleMessage{
			Message:    m,
			SenderName: names[m.SenderID],
			Reply:      resolver.Resolve(m),
		})
	}

	page := MessagePage{Messages: out, HasUnread: chat.HasUnread(visible, viewerID)}
	if anchor, ok := chat.ScrollAnchor(visible, viewerID); ok {
		page.AnchorID = anchor
	}
	return page, nil
}

func toViews(raw []models.PrivateMessage) []chat.Message {
	views := make([]chat.Message, 0, len(raw))
	for _, m := range raw {
		views = append(views, chat.FromPrivate(m))
	}
	return views
}
