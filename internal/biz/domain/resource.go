package domain

import "regexp"

// ResourceKey identifies an external resource referenced in chat.
// The empty key means no resource was referenced.
type ResourceKey string

// BitbucketPRPrefix prefixes every pull-request resource key
const BitbucketPRPrefix = "BITBUCKET_PR:"

// The repo name is the path segment right before "pull-requests/".
var pullRequestPattern = regexp.MustCompile(`/([^/\s]+)/pull-requests/(\d+)`)

// ExtractKeyFromText returns the resource key for the first pull-request
// link found in text
func ExtractKeyFromText(text string) ResourceKey {
	m := pullRequestPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return ResourceKey(BitbucketPRPrefix + m[1] + ":" + m[2])
}

// ExtractKey derives the resource key of an event. Attachment links are
// checked before the message text. A nil event yields no key.
func ExtractKey(e *ChatEvent) ResourceKey {
	if e == nil {
		return ""
	}
	for _, a := range e.Attachments {
		if a.Link == "" {
			continue
		}
		if key := ExtractKeyFromText(a.Link); key != "" {
			return key
		}
	}
	return ExtractKeyFromText(e.Text)
}
