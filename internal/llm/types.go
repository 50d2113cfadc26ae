package llm

import (
	"encoding/base64"

	"github.com/chatrelay/relay/internal/conversation"
)

// Wire types for the Anthropic Messages API.

type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens,omitempty"`
	Messages  []apiMessage `json:"messages"`
	Stream    bool         `json:"stream,omitempty"`
}

type apiMessage struct {
	Role    string       `json:"role"`
	Content []apiContent `json:"content"`
}

type apiContent struct {
	Type   string          `json:"type"`
	Text   string          `json:"text,omitempty"`
	Source *apiImageSource `json:"source,omitempty"`
}

type apiImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type apiResponse struct {
	Content    []apiContent `json:"content"`
	StopReason string       `json:"stop_reason"`
}

type apiErrorBody struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type countTokensResponse struct {
	InputTokens int `json:"input_tokens"`
}

// toAPIMessages translates relay turns into the provider's message shape,
// mapping the internal role vocabulary onto the provider's.
func toAPIMessages(turns []conversation.Turn) []apiMessage {
	msgs := make([]apiMessage, 0, len(turns))
	for _, t := range turns {
		role := "user"
		if t.Role == conversation.RoleModel {
			role = "assistant"
		}

		content := make([]apiContent, 0, len(t.Parts))
		for _, p := range t.Parts {
			if p.IsBlob() {
				content = append(content, apiContent{
					Type: "image",
					Source: &apiImageSource{
						Type:      "base64",
						MediaType: p.MediaType,
						Data:      base64.StdEncoding.EncodeToString(p.Data),
					},
				})
				continue
			}
			content = append(content, apiContent{Type: "text", Text: p.Text})
		}
		msgs = append(msgs, apiMessage{Role: role, Content: content})
	}
	return msgs
}
