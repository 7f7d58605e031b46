package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/projectdesk/api-proxy/internal/config"
	"github.com/projectdesk/api-proxy/internal/errs"
	"github.com/projectdesk/api-proxy/internal/metrics"
	"github.com/projectdesk/api-proxy/internal/models"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Client forwards chat requests to an OpenAI-compatible completions endpoint
type Client struct {
	endpoint     string
	defaultModel string
	http         *http.Client
	logger       *zap.Logger
}

// NewClient creates a chat client. It fails with a Configuration error when
// no API key is configured.
func NewClient(cfg config.ChatConfig, logger *zap.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// The key only ever travels in the Authorization header set by the transport
	transport := &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.APIKey, TokenType: "Bearer"}),
		Base:   http.DefaultTransport,
	}

	return &Client{
		endpoint:     cfg.BaseURL + "/chat/completions",
		defaultModel: cfg.DefaultModel,
		http:         &http.Client{Timeout: cfg.Timeout, Transport: transport},
		logger:       logger,
	}, nil
}

// Complete sends one completion request and returns the reply text.
// A non-success upstream status is returned as *errs.Rejected so the caller can relay it.
func (c *Client) Complete(ctx context.Context, req models.ChatRequest) (string, error) {
	payload, err := BuildPayload(req, c.defaultModel)
	if err != nil {
		return "", err
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return "", errs.Wrap(errs.Internal, "Failed to encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", errs.Wrap(errs.Internal, "Failed to create request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug("Sending chat completion request",
		zap.String("model", payload.Model),
		zap.Int("messages", len(payload.Messages)),
		zap.Bool("response_format", payload.ResponseFormat != nil),
		zap.Int("body_length", len(reqBody)))

	started := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		metrics.ObserveUpstream(metrics.ProviderOpenAI, metrics.OutcomeUnreachable, started)
		return "", errs.Wrap(errs.UpstreamUnreachable, "Failed to reach chat completion provider", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveUpstream(metrics.ProviderOpenAI, metrics.OutcomeUnreachable, started)
		return "", errs.Wrap(errs.UpstreamUnreachable, "Failed to reach chat completion provider", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.ObserveUpstream(metrics.ProviderOpenAI, metrics.OutcomeRejected, started)
		c.logger.Warn("Chat completion provider returned error",
			zap.Int("status", resp.StatusCode),
			zap.Int("body_length", len(body)))
		return "", &errs.Rejected{Status: resp.StatusCode, Body: body}
	}

	var reply completionReply
	if err := json.Unmarshal(body, &reply); err != nil {
		metrics.ObserveUpstream(metrics.ProviderOpenAI, metrics.OutcomeInvalid, started)
		return "", errs.Wrap(errs.UpstreamProtocol, "Invalid response from chat completion provider", err)
	}

	content := reply.content()
	if content == "" {
		metrics.ObserveUpstream(metrics.ProviderOpenAI, metrics.OutcomeInvalid, started)
		return "", errs.Wrap(errs.UpstreamProtocol, "Chat completion response did not include content",
			fmt.Errorf("%d choices", len(reply.Choices)))
	}
	metrics.ObserveUpstream(metrics.ProviderOpenAI, metrics.OutcomeOK, started)

	c.logCompletion(body)
	return content, nil
}

// completionReply holds only the reply text; metadata fields are ignored
type completionReply struct {
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (r completionReply) content() string {
	if len(r.Choices) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(r.Choices[0].Message.Content, &text); err != nil {
		return ""
	}
	return text
}

// logCompletion logs usage metadata when the body matches the OpenAI schema
func (c *Client) logCompletion(body []byte) {
	if !c.logger.Core().Enabled(zap.DebugLevel) {
		return
	}
	var completion openai.ChatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		c.logger.Debug("Chat completion succeeded", zap.String("metadata", "unrecognised"))
		return
	}
	fields := []zap.Field{
		zap.String("model", completion.Model),
		zap.Int("total_tokens", completion.Usage.TotalTokens),
	}
	if len(completion.Choices) > 0 {
		fields = append(fields, zap.String("finish_reason", string(completion.Choices[0].FinishReason)))
	}
	c.logger.Debug("Chat completion succeeded", fields...)
}
