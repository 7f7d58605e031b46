package chat

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/projectdesk/api-proxy/internal/config"
	"github.com/projectdesk/api-proxy/internal/errs"
	"github.com/projectdesk/api-proxy/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type upstreamCall struct {
	auth string
	body map[string]json.RawMessage
}

func newUpstream(t *testing.T, status int, body string) (*httptest.Server, *upstreamCall, *int32) {
	t.Helper()
	var calls int32
	seen := &upstreamCall{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		seen.auth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &seen.body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, seen, &calls
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(config.ChatConfig{
		APIKey:  "sk-test-secret",
		BaseURL: baseURL + "/v1",
		Timeout: 5 * time.Second,
	}, zap.NewNop())
	require.NoError(t, err)
	return c
}

func userHi() models.ChatRequest {
	return models.ChatRequest{Messages: json.RawMessage(`[{"role":"user","content":"hi"}]`)}
}

func TestNewClient_MissingKey(t *testing.T) {
	_, err := NewClient(config.ChatConfig{BaseURL: "http://example.invalid"}, zap.NewNop())
	require.Error(t, err)
	assert.Equal(t, errs.Configuration, errs.KindOf(err))
}

func TestComplete_ExtractsContentAndAppliesDefaults(t *testing.T) {
	srv, seen, calls := newUpstream(t, http.StatusOK, `{"choices":[{"message":{"content":"hello"}}]}`)
	c := newTestClient(t, srv.URL)

	content, err := c.Complete(context.Background(), userHi())
	require.NoError(t, err)

	assert.Equal(t, "hello", content)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	assert.Equal(t, "Bearer sk-test-secret", seen.auth)
	assert.JSONEq(t, `"gpt-4o-mini"`, string(seen.body["model"]))
	assert.JSONEq(t, `0.2`, string(seen.body["temperature"]))
	assert.JSONEq(t, `800`, string(seen.body["max_tokens"]))
	assert.JSONEq(t, `[{"role":"user","content":"hi"}]`, string(seen.body["messages"]))
	_, hasFormat := seen.body["response_format"]
	assert.False(t, hasFormat)
}

func TestComplete_ForwardsOptionalFields(t *testing.T) {
	srv, seen, _ := newUpstream(t, http.StatusOK, `{"choices":[{"message":{"content":"{}"}}]}`)
	c := newTestClient(t, srv.URL)

	temp := 0.0
	maxTokens := 50
	model := "gpt-4o"
	req := userHi()
	req.Temperature = &temp
	req.MaxTokens = &maxTokens
	req.Model = &model
	req.ResponseFormat = json.RawMessage(`{"type":"json_object"}`)

	_, err := c.Complete(context.Background(), req)
	require.NoError(t, err)

	assert.JSONEq(t, `"gpt-4o"`, string(seen.body["model"]))
	assert.JSONEq(t, `0`, string(seen.body["temperature"]))
	assert.JSONEq(t, `50`, string(seen.body["max_tokens"]))
	assert.JSONEq(t, `{"type":"json_object"}`, string(seen.body["response_format"]))
}

func TestComplete_InvalidMessagesMakesNoCall(t *testing.T) {
	srv, _, calls := newUpstream(t, http.StatusOK, `{}`)
	c := newTestClient(t, srv.URL)

	for name, msgs := range map[string]string{
		"absent":     ``,
		"empty":      `[]`,
		"null":       `null`,
		"not a list": `{"role":"user"}`,
		"string":     `"hi"`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := c.Complete(context.Background(), models.ChatRequest{Messages: json.RawMessage(msgs)})
			require.Error(t, err)
			assert.Equal(t, errs.Validation, errs.KindOf(err))
			assert.Equal(t, http.StatusBadRequest, errs.StatusOf(err))
		})
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestComplete_RelaysRejection(t *testing.T) {
	srv, _, _ := newUpstream(t, http.StatusTooManyRequests, `{"error":"rate limited"}`)
	c := newTestClient(t, srv.URL)

	_, err := c.Complete(context.Background(), userHi())
	rejected, ok := errs.AsRejected(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, rejected.Status)
	assert.Equal(t, `{"error":"rate limited"}`, string(rejected.Body))
}

func TestComplete_ProtocolErrors(t *testing.T) {
	cases := map[string]string{
		"not json":      `<html>oops</html>`,
		"no choices":    `{"choices":[]}`,
		"no content":    `{"choices":[{"message":{"role":"assistant"}}]}`,
		"missing field": `{"id":"x"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv, _, _ := newUpstream(t, http.StatusOK, body)
			c := newTestClient(t, srv.URL)

			_, err := c.Complete(context.Background(), userHi())
			require.Error(t, err)
			assert.Equal(t, errs.UpstreamProtocol, errs.KindOf(err))
			assert.Equal(t, http.StatusBadGateway, errs.StatusOf(err))
		})
	}
}

func TestComplete_LooseMetadataTypes(t *testing.T) {
	cases := map[string]string{
		"string created": `{"created":"1700000000","choices":[{"message":{"content":"hello"}}]}`,
		"numeric id":     `{"id":42,"choices":[{"message":{"content":"hello"}}]}`,
		"string index":   `{"choices":[{"index":"0","message":{"content":"hello"}}]}`,
		"odd usage":      `{"usage":"n/a","choices":[{"message":{"role":"assistant","content":"hello"}}]}`,
		"extra choices":  `{"choices":[{"message":{"content":"hello"}},{"message":{"content":"other"}}]}`,
		"object finish":  `{"choices":[{"finish_reason":{"type":"stop"},"message":{"content":"hello"}}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv, _, _ := newUpstream(t, http.StatusOK, body)

			core, logs := observer.New(zapcore.DebugLevel)
			c, err := NewClient(config.ChatConfig{
				APIKey:  "sk-test-secret",
				BaseURL: srv.URL + "/v1",
				Timeout: 5 * time.Second,
			}, zap.New(core))
			require.NoError(t, err)

			content, err := c.Complete(context.Background(), userHi())
			require.NoError(t, err)
			assert.Equal(t, "hello", content)
			assert.Equal(t, 1, logs.FilterMessage("Chat completion succeeded").Len())
		})
	}
}

func TestComplete_NonStringContent(t *testing.T) {
	srv, _, _ := newUpstream(t, http.StatusOK, `{"choices":[{"message":{"content":[{"type":"text","text":"hi"}]}}]}`)
	c := newTestClient(t, srv.URL)

	_, err := c.Complete(context.Background(), userHi())
	require.Error(t, err)
	assert.Equal(t, errs.UpstreamProtocol, errs.KindOf(err))
}

func TestComplete_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := newTestClient(t, url)
	_, err := c.Complete(context.Background(), userHi())
	require.Error(t, err)
	assert.Equal(t, errs.UpstreamUnreachable, errs.KindOf(err))
	assert.NotContains(t, err.Error(), "sk-test-secret")
}
