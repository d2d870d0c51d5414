package chat

import "context"

// CompositionState is the per-session UI-adjacent state: multi-select mode,
// the selected ids and the current reply draft target. It is passed into the
// coordinator explicitly rather than living as ambient globals.
type CompositionState struct {
	SelectionMode bool
	SelectedIDs   map[int]struct{}
	ReplyTarget   *int
}

// NewCompositionState returns an empty state.
func NewCompositionState() *CompositionState {
	return &CompositionState{SelectedIDs: make(map[int]struct{})}
}

// EnterSelection switches selection mode on, starting from a clean set.
func (s *CompositionState) EnterSelection() {
	s.SelectionMode = true
	s.SelectedIDs = make(map[int]struct{})
}

// ExitSelection leaves selection mode and drops the selection.
func (s *CompositionState) ExitSelection() {
	s.SelectionMode = false
	s.SelectedIDs = make(map[int]struct{})
}

// Toggle flips one message in or out of the selection.
func (s *CompositionState) Toggle(messageID int) {
	if _, ok := s.SelectedIDs[messageID]; ok {
		delete(s.SelectedIDs, messageID)
		return
	}
	s.SelectedIDs[messageID] = struct{}{}
}

// SelectAllOwn selects every message sent by the viewer. Received messages
// are never swept into a select-all; they can only be selected individually.
func (s *CompositionState) SelectAllOwn(msgs []Message, viewerID int) {
	s.SelectedIDs = make(map[int]struct{})
	for _, m := range msgs {
		if m.SenderID == viewerID {
			s.SelectedIDs[m.ID] = struct{}{}
		}
	}
}

// Classification splits a selection into the viewer's own messages and the
// ones they received, in the order they appear in the message list.
type Classification struct {
	Sent     []int
	Received []int
}

// Classify buckets the selected ids by whether the viewer sent them. Ids not
// present in msgs are ignored.
func Classify(msgs []Message, selected map[int]struct{}, viewerID int) Classification {
	var c Classification
	for _, m := range msgs {
		if _, ok := selected[m.ID]; !ok {
			continue
		}
		if m.SenderID == viewerID {
			c.Sent = append(c.Sent, m.ID)
		} else {
			c.Received = append(c.Received, m.ID)
		}
	}
	return c
}

// Deleter is the subset of the repository the coordinator dispatches to.
type Deleter interface {
	SoftDeletePersonal(ctx context.Context, messageID int, viewerID int) error
	SoftDeleteGlobal(ctx context.Context, messageID int, actorID int) error
}

// BulkDeleteSummary reports what a bulk delete actually did. A single user
// action may perform two different deletion scopes at once, and the caller
// must report both counts distinctly. FailedIDs carries the leftover ids of
// a partially applied batch so the UI can re-offer them.
type BulkDeleteSummary struct {
	ForAllCount int   `json:"for_all_count"`
	ForMeCount  int   `json:"for_me_count"`
	FailedIDs   []int `json:"failed_ids,omitempty"`
}

// Coordinator dispatches the correct deletion strategy per selection subset.
type Coordinator struct {
	deleter Deleter
}

// NewCoordinator builds a Coordinator.
func NewCoordinator(deleter Deleter) *Coordinator {
	return &Coordinator{deleter: deleter}
}

// DeleteForMe applies personal deletion to every selected id regardless of
// who sent it. Partially applied batches are reported, not rolled back.
func (c *Coordinator) DeleteForMe(ctx context.Context, msgs []Message, selected map[int]struct{}, viewerID int) BulkDeleteSummary {
	cls := Classify(msgs, selected, viewerID)
	var summary BulkDeleteSummary
	for _, id := range append(cls.Sent, cls.Received...) {
		if err := c.deleter.SoftDeletePersonal(ctx, id, viewerID); err != nil {
			summary.FailedIDs = append(summary.FailedIDs, id)
			continue
		}
		summary.ForMeCount++
	}
	return summary
}

// DeleteForAllEligible deletes the viewer's own messages for everyone and
// falls back to personal deletion for the received subset in the same call.
func (c *Coordinator) DeleteForAllEligible(ctx context.Context, msgs []Message, selected map[int]struct{}, viewerID int) BulkDeleteSummary {
	cls := Classify(msgs, selected, viewerID)
	var summary BulkDeleteSummary
	for _, id := range cls.Sent {
		if err := c.deleter.SoftDeleteGlobal(ctx, id, viewerID); err != nil {
			summary.FailedIDs = append(summary.FailedIDs, id)
			continue
		}
		summary.ForAllCount++
	}
	for _, id := range cls.Received {
		if err := c.deleter.SoftDeletePersonal(ctx, id, viewerID); err != nil {
			summary.FailedIDs = append(summary.FailedIDs, id)
			continue
		}
		summary.ForMeCount++
	}
	return summary
}
