package feishu

import (
	"encoding/json"
	"fmt"
	"strings"

	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"

	"github.com/DevRickLin/prwatch-relay/internal/biz/domain"
)

// ParseMessageEvent converts a message-receive event into a ChatEvent.
// The message ID stands in for the timestamp and the chat ID for the channel.
// Messages sent by apps are attributed to botID.
func ParseMessageEvent(event *larkim.P2MessageReceiveV1, botID string) (domain.ChatEvent, error) {
	if event == nil || event.Event == nil || event.Event.Message == nil {
		return domain.ChatEvent{}, fmt.Errorf("%w: message event without message", domain.ErrMalformedEvent)
	}
	raw := event.Event.Message

	ev := domain.ChatEvent{
		Kind:      domain.EventKindMessage,
		Type:      domain.TypeMessage,
		Timestamp: deref(raw.MessageId),
		Channel:   deref(raw.ChatId),
	}
	if ev.Timestamp == "" {
		return domain.ChatEvent{}, fmt.Errorf("%w: message without message_id", domain.ErrMalformedEvent)
	}

	if sender := event.Event.Sender; sender != nil {
		if sender.SenderId != nil {
			ev.UserID = deref(sender.SenderId.OpenId)
		}
		if deref(sender.SenderType) == senderTypeApp {
			ev.BotID = botID
		}
	}

	// Mention key (@_user_1) -> name
	mentionMap := make(map[string]string)
	for _, m := range raw.Mentions {
		if m != nil && m.Key != nil && m.Name != nil {
			mentionMap[*m.Key] = *m.Name
		}
	}

	ev.Text, ev.Attachments = parseContent(deref(raw.MessageType), deref(raw.Content), mentionMap)
	return ev, nil
}

// ParseHistoryMessage converts a message fetched from the IM API
func ParseHistoryMessage(item *larkim.Message, botID string) domain.ChatEvent {
	ev := domain.ChatEvent{
		Kind:      domain.EventKindMessage,
		Type:      domain.TypeMessage,
		Timestamp: deref(item.MessageId),
		Channel:   deref(item.ChatId),
	}

	if item.Sender != nil {
		if deref(item.Sender.SenderType) == senderTypeApp {
			ev.BotID = botID
		} else {
			ev.UserID = deref(item.Sender.Id)
		}
	}

	mentionMap := make(map[string]string)
	for _, m := range item.Mentions {
		if m != nil && m.Key != nil && m.Name != nil {
			mentionMap[*m.Key] = *m.Name
		}
	}

	if item.Body != nil {
		ev.Text, ev.Attachments = parseContent(deref(item.MsgType), deref(item.Body.Content), mentionMap)
	}
	return ev
}

func parseContent(msgType, content string, mentionMap map[string]string) (string, []domain.Attachment) {
	switch msgType {
	case "text":
		return parseTextContent(content, mentionMap), nil
	case "post":
		return parsePostContent(content, mentionMap)
	default:
		return "", nil
	}
}

// parseTextContent extracts text from a text message
// It also replaces mention placeholders (@_user_1) with real names
func parseTextContent(content string, mentionMap map[string]string) string {
	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}
	return replaceMentions(parsed.Text, mentionMap)
}

// parsePostContent extracts text and links from a rich text message.
// Each hyperlink becomes an attachment carrying only its URL.
func parsePostContent(content string, mentionMap map[string]string) (string, []domain.Attachment) {
	var parsed struct {
		Title   string `json:"title"`
		Content [][]struct {
			Tag    string `json:"tag"`
			Text   string `json:"text,omitempty"`
			Href   string `json:"href,omitempty"`
			UserID string `json:"user_id,omitempty"` // for "at" tags
		} `json:"content"`
	}

	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return "", nil
	}

	var textParts []string
	var links []domain.Attachment

	if parsed.Title != "" {
		textParts = append(textParts, parsed.Title)
	}

	for _, line := range parsed.Content {
		var lineParts []string
		for _, elem := range line {
			switch elem.Tag {
			case "text":
				if elem.Text != "" {
					lineParts = append(lineParts, elem.Text)
				}
			case "a":
				if elem.Text != "" {
					lineParts = append(lineParts, elem.Text)
				}
				if elem.Href != "" {
					links = append(links, domain.Attachment{Link: elem.Href})
				}
			case "at":
				if elem.UserID != "" {
					if name, ok := mentionMap[elem.UserID]; ok {
						lineParts = append(lineParts, "@"+name)
					} else {
						lineParts = append(lineParts, "@"+elem.UserID)
					}
				}
			}
		}
		if len(lineParts) > 0 {
			textParts = append(textParts, strings.Join(lineParts, ""))
		}
	}

	return replaceMentions(strings.Join(textParts, "\n"), mentionMap), links
}

// replaceMentions replaces mention placeholders (@_user_1, @_user_2, etc.) with real names
func replaceMentions(text string, mentionMap map[string]string) string {
	result := text
	for key, name := range mentionMap {
		result = strings.ReplaceAll(result, key, "@"+name)
	}
	return result
}
