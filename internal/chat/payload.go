package chat

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/projectdesk/api-proxy/internal/errs"
	"github.com/projectdesk/api-proxy/internal/models"
	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultTemperature = 0.2
	DefaultMaxTokens   = 800
	DefaultModel       = openai.GPT4oMini
)

// Decode parses a chat proxy request body
func Decode(body []byte) (models.ChatRequest, error) {
	var req models.ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return req, errs.Wrap(errs.Validation, "Invalid JSON body", err)
	}
	return req, nil
}

// Messages returns the message list of req, which must be a non-empty JSON array
func Messages(req models.ChatRequest) ([]json.RawMessage, error) {
	if len(req.Messages) == 0 {
		return nil, errs.New(errs.Validation, "messages must be a non-empty array")
	}
	var msgs []json.RawMessage
	if err := json.Unmarshal(req.Messages, &msgs); err != nil {
		return nil, errs.Wrap(errs.Validation, "messages must be a non-empty array", err)
	}
	if len(msgs) == 0 {
		return nil, errs.New(errs.Validation, "messages must be a non-empty array")
	}
	return msgs, nil
}

// PayloadBuilder assembles the outbound completion body. Every optional
// field starts at its default and is only replaced when the caller supplied it.
type PayloadBuilder struct {
	payload models.CompletionPayload
}

// NewPayloadBuilder starts a payload for msgs using defaultModel when no model is given
func NewPayloadBuilder(msgs []json.RawMessage, defaultModel string) *PayloadBuilder {
	if defaultModel == "" {
		defaultModel = DefaultModel
	}
	return &PayloadBuilder{payload: models.CompletionPayload{
		Model:       defaultModel,
		Messages:    msgs,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}}
}

func (b *PayloadBuilder) Temperature(t *float64) *PayloadBuilder {
	if t != nil {
		b.payload.Temperature = *t
	}
	return b
}

func (b *PayloadBuilder) MaxTokens(n *int) *PayloadBuilder {
	if n != nil {
		b.payload.MaxTokens = *n
	}
	return b
}

func (b *PayloadBuilder) Model(m *string) *PayloadBuilder {
	if m != nil && strings.TrimSpace(*m) != "" {
		b.payload.Model = *m
	}
	return b
}

// ResponseFormat sets the directive verbatim; an absent or JSON null value leaves it unset
func (b *PayloadBuilder) ResponseFormat(raw json.RawMessage) *PayloadBuilder {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return b
	}
	b.payload.ResponseFormat = trimmed
	return b
}

func (b *PayloadBuilder) Build() models.CompletionPayload {
	return b.payload
}

// BuildPayload validates req and produces the outbound body
func BuildPayload(req models.ChatRequest, defaultModel string) (models.CompletionPayload, error) {
	msgs, err := Messages(req)
	if err != nil {
		return models.CompletionPayload{}, err
	}
	return NewPayloadBuilder(msgs, defaultModel).
		Temperature(req.Temperature).
		MaxTokens(req.MaxTokens).
		Model(req.Model).
		ResponseFormat(req.ResponseFormat).
		Build(), nil
}
