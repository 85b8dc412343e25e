package domain

import "time"

// EventKind names a change in card or box state that views may react to.
type EventKind string

const (
	EventCardMoved     EventKind = "card_moved"
	EventCardLearned   EventKind = "card_learned"
	EventCopyDrawn     EventKind = "copy_drawn"
	EventCopyCreated   EventKind = "copy_created"
	EventCopiesDeleted EventKind = "copies_deleted"
	EventBoxReset      EventKind = "box_reset"
	EventBoxDeleted    EventKind = "box_deleted"
	EventCardStaged    EventKind = "card_staged"
)

// Event is published after the change it describes has been committed.
// Fields not relevant to a kind are left zero.
type Event struct {
	Kind       EventKind
	CardID     int64
	OriginalID int64
	BoxID      int64
	Bucket     Bucket
	Count      int
	At         time.Time
}
