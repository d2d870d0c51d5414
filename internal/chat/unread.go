package chat

// HasUnread reports whether the visible set contains any unread message
// addressed to the viewer. Used to decide whether a freshly opened chat
// scrolls to the first unread message instead of the bottom.
func HasUnread(msgs []Message, viewerID int) bool {
	for _, m := range msgs {
		if m.RecipientID == viewerID && !m.IsRead {
			return true
		}
	}
	return false
}

// ScrollAnchor returns the id of the message a freshly opened chat should
// anchor on: the first unread message in ascending order when one exists,
// otherwise the last message. ok is false for an empty set.
func ScrollAnchor(msgs []Message, viewerID int) (anchorID int, ok bool) {
	if len(msgs) == 0 {
		return 0, false
	}
	for _, m := range msgs {
		if m.RecipientID == viewerID && !m.IsRead {
			return m.ID, true
		}
	}
	return msgs[len(msgs)-1].ID, true
}
