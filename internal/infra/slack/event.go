package slack

import (
	"encoding/json"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/DevRickLin/prwatch-relay/internal/biz/domain"
)

// ParseEvent converts a raw Slack event into a ChatEvent.
// Unknown event types parse as EventKindOther.
func ParseEvent(raw []byte) (domain.ChatEvent, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return domain.ChatEvent{}, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
	}
	if head.Type == "" {
		return domain.ChatEvent{}, fmt.Errorf("%w: missing type", domain.ErrMalformedEvent)
	}

	switch head.Type {
	case domain.TypeMessage:
		var m slack.Message
		if err := json.Unmarshal(raw, &m); err != nil {
			return domain.ChatEvent{}, fmt.Errorf("%w: message: %v", domain.ErrMalformedEvent, err)
		}
		return FromMessage(m, m.Channel), nil

	case domain.TypeReactionAdded, domain.TypeReactionRemoved:
		// Both reaction events share one wire layout
		var r slack.ReactionAddedEvent
		if err := json.Unmarshal(raw, &r); err != nil {
			return domain.ChatEvent{}, fmt.Errorf("%w: %s: %v", domain.ErrMalformedEvent, head.Type, err)
		}
		return domain.ChatEvent{
			Kind:      domain.KindOf(head.Type),
			Type:      head.Type,
			Timestamp: r.EventTimestamp,
			UserID:    r.User,
			Reaction:  r.Reaction,
			Item: &domain.ItemRef{
				Timestamp: r.Item.Timestamp,
				Channel:   r.Item.Channel,
			},
		}, nil

	default:
		return domain.ChatEvent{Kind: domain.KindOf(head.Type), Type: head.Type}, nil
	}
}

// FromMessage converts a Slack message, live or from history, into a ChatEvent
func FromMessage(m slack.Message, channel string) domain.ChatEvent {
	ev := domain.ChatEvent{
		Kind:      domain.EventKindMessage,
		Type:      domain.TypeMessage,
		Timestamp: m.Timestamp,
		Channel:   channel,
		UserID:    m.User,
		BotID:     m.BotID,
		Text:      m.Text,
	}
	if ev.Timestamp == "" {
		ev.Timestamp = m.EventTimestamp
	}
	if m.SubMessage != nil {
		ev.NestedUserID = m.SubMessage.User
	}
	for _, a := range m.Attachments {
		ev.Attachments = append(ev.Attachments, domain.Attachment{
			Link: a.TitleLink,
			Text: a.Text,
		})
	}
	return ev
}
