package chat

import (
	"fmt"

	"github.com/petvoice/chat-service/internal/models"
)

const (
	bannerPreviewLimit = 100
	inlineQuoteLimit   = 50
)

// ReplyPreview is the rendered quote of a reply target. When the target is
// not in the viewer's visible set the preview is a stub (Available=false) so
// the UI can render "message unavailable" instead of dropping the quote.
type ReplyPreview struct {
	Available   bool   `json:"available"`
	MessageID   int    `json:"message_id"`
	SenderID    int    `json:"sender_id,omitempty"`
	Banner      string `json:"banner,omitempty"`
	InlineQuote string `json:"inline_quote,omitempty"`
}

// Resolver resolves reply references against one viewer's visible set.
type Resolver struct {
	byID map[int]Message
}

// NewResolver indexes the visible set.
func NewResolver(visible []Message) Resolver {
	byID := make(map[int]Message, len(visible))
	for _, m := range visible {
		byID[m.ID] = m
	}
	return Resolver{byID: byID}
}

// Resolve returns the preview for msg's reply target, a stub preview when
// the target is hidden or gone, and nil when msg is not a reply at all.
func (r Resolver) Resolve(msg Message) *ReplyPreview {
	if msg.ReplyToID == nil {
		return nil
	}
	target, ok := r.byID[*msg.ReplyToID]
	if !ok {
		return &ReplyPreview{Available: false, MessageID: *msg.ReplyToID}
	}
	return &ReplyPreview{
		Available:   true,
		MessageID:   target.ID,
		SenderID:    target.SenderID,
		Banner:      PreviewText(target, bannerPreviewLimit),
		InlineQuote: PreviewText(target, inlineQuoteLimit),
	}
}

// PreviewText renders a message for quoting: truncated content for text,
// fixed labels for media types.
func PreviewText(msg Message, limit int) string {
	switch msg.Type {
	case models.MessageTypeImage:
		return "[image]"
	case models.MessageTypeVoice:
		seconds := 0
		if msg.VoiceDurationSeconds != nil {
			seconds = *msg.VoiceDurationSeconds
		}
		return fmt.Sprintf("[voice, %ds]", seconds)
	}
	if msg.Content == nil {
		return ""
	}
	return truncate(*msg.Content, limit)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
