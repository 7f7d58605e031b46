package models

import "encoding/json"

// ChatRequest is the body accepted by the chat proxy.
// Optional fields are pointers so an explicit zero is distinguishable from an omitted field.
type ChatRequest struct {
	Messages       json.RawMessage `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      *int            `json:"maxTokens,omitempty"`
	ResponseFormat json.RawMessage `json:"responseFormat,omitempty"`
	Model          *string         `json:"model,omitempty"`
}

// CompletionPayload is the body forwarded to the chat-completion provider.
// Messages are forwarded verbatim, as is ResponseFormat when present.
type CompletionPayload struct {
	Model          string            `json:"model"`
	Messages       []json.RawMessage `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens"`
	ResponseFormat json.RawMessage   `json:"response_format,omitempty"`
}

// ChatResult is the success body of the chat proxy
type ChatResult struct {
	Content string `json:"content"`
}
