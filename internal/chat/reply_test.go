package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petvoice/chat-service/internal/models"
)

func textMsg(id int, content string) Message {
	return Message{ID: id, SenderID: 1, RecipientID: 2, Content: &content, Type: models.MessageTypeText}
}

func replyMsg(id, target int) Message {
	content := "a reply"
	return Message{ID: id, SenderID: 2, RecipientID: 1, Content: &content, Type: models.MessageTypeText, ReplyToID: &target}
}

func TestResolveNonReply(t *testing.T) {
	resolver := NewResolver([]Message{textMsg(1, "hi")})
	assert.Nil(t, resolver.Resolve(textMsg(1, "hi")))
}

func TestResolveVisibleTarget(t *testing.T) {
	target := textMsg(1, "original")
	reply := replyMsg(2, 1)
	resolver := NewResolver([]Message{target, reply})

	preview := resolver.Resolve(reply)
	require.NotNil(t, preview)
	assert.True(t, preview.Available)
	assert.Equal(t, 1, preview.MessageID)
	assert.Equal(t, 1, preview.SenderID)
	assert.Equal(t, "original", preview.Banner)
	assert.Equal(t, "original", preview.InlineQuote)
}

func TestResolveHiddenTargetYieldsStub(t *testing.T) {
	// The target is not in the visible set: deleted for this viewer or gone
	// entirely. The reply still renders, with a stub preview.
	reply := replyMsg(2, 1)
	resolver := NewResolver([]Message{reply})

	preview := resolver.Resolve(reply)
	require.NotNil(t, preview)
	assert.False(t, preview.Available)
	assert.Equal(t, 1, preview.MessageID)
	assert.Empty(t, preview.Banner)
	assert.Empty(t, preview.InlineQuote)
}

func TestPreviewTruncationLimits(t *testing.T) {
	long := strings.Repeat("x", 200)
	target := textMsg(1, long)
	reply := replyMsg(2, 1)
	resolver := NewResolver([]Message{target, reply})

	preview := resolver.Resolve(reply)
	require.NotNil(t, preview)
	assert.Len(t, []rune(preview.Banner), 100)
	assert.Len(t, []rune(preview.InlineQuote), 50)
}

func TestPreviewTruncationIsRuneSafe(t *testing.T) {
	long := strings.Repeat("é", 120)
	preview := PreviewText(textMsg(1, long), 100)
	assert.Equal(t, strings.Repeat("é", 100), preview)
}

func TestPreviewMediaLabels(t *testing.T) {
	img := Message{ID: 1, SenderID: 1, Type: models.MessageTypeImage}
	assert.Equal(t, "[image]", PreviewText(img, 100))

	seconds := 12
	voice := Message{ID: 2, SenderID: 1, Type: models.MessageTypeVoice, VoiceDurationSeconds: &seconds}
	assert.Equal(t, "[voice, 12s]", PreviewText(voice, 100))

	noDuration := Message{ID: 3, SenderID: 1, Type: models.MessageTypeVoice}
	assert.Equal(t, "[voice, 0s]", PreviewText(noDuration, 100))
}
