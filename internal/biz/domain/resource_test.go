package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractKeyFromText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want ResourceKey
	}{
		{"plain link", "see bitbucket.org/x/y/pull-requests/42", "BITBUCKET_PR:y:42"},
		{"https link with trailing path", "https://bitbucket.org/team/api/pull-requests/7/overview", "BITBUCKET_PR:api:7"},
		{"slack formatted link", "<https://bitbucket.org/team/web-app/pull-requests/1234|Fix login>", "BITBUCKET_PR:web-app:1234"},
		{"self hosted", "https://git.example.com/projects/P/repos/core/pull-requests/9", "BITBUCKET_PR:core:9"},
		{"first link wins", "a/one/pull-requests/1 then b/two/pull-requests/2", "BITBUCKET_PR:one:1"},
		{"first of two bitbucket links", "https://bitbucket.org/team/api/pull-requests/7 supersedes https://bitbucket.org/team/web/pull-requests/8", "BITBUCKET_PR:api:7"},
		{"first of two slack links", "<https://bitbucket.org/t/a/pull-requests/1|one> <https://bitbucket.org/t/b/pull-requests/2|two>", "BITBUCKET_PR:a:1"},
		{"no number", "bitbucket.org/x/y/pull-requests/", ""},
		{"no repo segment", "pull-requests/42", ""},
		{"unrelated", "lunch at noon?", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractKeyFromText(tt.text))
		})
	}
}

func TestExtractKey_AttachmentBeforeText(t *testing.T) {
	e := &ChatEvent{
		Text: "also bitbucket.org/x/text-repo/pull-requests/2",
		Attachments: []Attachment{
			{Link: "https://example.com/not-a-pr"},
			{Link: "https://bitbucket.org/x/attached/pull-requests/1"},
		},
	}

	assert.Equal(t, ResourceKey("BITBUCKET_PR:attached:1"), ExtractKey(e))
}

func TestExtractKey_FallsBackToText(t *testing.T) {
	e := &ChatEvent{
		Text:        "bitbucket.org/x/y/pull-requests/42",
		Attachments: []Attachment{{Link: "https://example.com"}, {Text: "no link here"}},
	}

	assert.Equal(t, ResourceKey("BITBUCKET_PR:y:42"), ExtractKey(e))
}

func TestExtractKey_Nil(t *testing.T) {
	assert.Equal(t, ResourceKey(""), ExtractKey(nil))
	assert.Equal(t, ResourceKey(""), ExtractKey(&ChatEvent{}))
}
