package domain

import "errors"

// ErrMalformedEvent is returned when an event lacks the fields needed to route it
var ErrMalformedEvent = errors.New("malformed event")

// EventKind identifies the variant of a ChatEvent
type EventKind int

const (
	EventKindOther EventKind = iota
	EventKindMessage
	EventKindReactionAdded
	EventKindReactionRemoved
	EventKindHousekeeping
)

// String returns the kind name, used as a metrics label
func (k EventKind) String() string {
	switch k {
	case EventKindMessage:
		return "message"
	case EventKindReactionAdded:
		return "reaction_added"
	case EventKindReactionRemoved:
		return "reaction_removed"
	case EventKindHousekeeping:
		return "housekeeping"
	default:
		return "other"
	}
}

// Raw event type names shared by the chat backends
const (
	TypeMessage         = "message"
	TypeReactionAdded   = "reaction_added"
	TypeReactionRemoved = "reaction_removed"
)

var housekeepingTypes = map[string]bool{
	"hello":           true,
	"presence_change": true,
	"reconnect_url":   true,
}

// KindOf maps a raw event type to its variant
func KindOf(eventType string) EventKind {
	switch {
	case eventType == TypeMessage:
		return EventKindMessage
	case eventType == TypeReactionAdded:
		return EventKindReactionAdded
	case eventType == TypeReactionRemoved:
		return EventKindReactionRemoved
	case housekeepingTypes[eventType]:
		return EventKindHousekeeping
	default:
		return EventKindOther
	}
}

// Attachment is a link unfurl or rich attachment carried by a message
type Attachment struct {
	Link string // title link
	Text string
}

// ItemRef points at the message a reaction annotates
type ItemRef struct {
	Timestamp string
	Channel   string
}

// ChatEvent is a chat event after the transport-boundary parse step
type ChatEvent struct {
	Kind         EventKind
	Type         string // raw type as delivered by the backend
	Timestamp    string
	Channel      string
	UserID       string
	NestedUserID string // user of an embedded message (edits, thread broadcasts)
	BotID        string
	Text         string
	Attachments  []Attachment
	Reaction     string
	Item         *ItemRef
}

// IsFromBot checks if the event was posted by the given bot
func (e *ChatEvent) IsFromBot(botID string) bool {
	return botID != "" && e.BotID == botID
}

// ActorID returns the acting user, falling back to the embedded message's user
func (e *ChatEvent) ActorID() string {
	if e.UserID != "" {
		return e.UserID
	}
	return e.NestedUserID
}

// ChannelID returns the event channel, falling back to the reacted item's channel
func (e *ChatEvent) ChannelID() string {
	if e.Channel != "" {
		return e.Channel
	}
	if e.Item != nil {
		return e.Item.Channel
	}
	return ""
}

// DisplayText returns the first non-empty attachment text, or the plain text
func (e *ChatEvent) DisplayText() string {
	for _, a := range e.Attachments {
		if a.Text != "" {
			return a.Text
		}
	}
	return e.Text
}
