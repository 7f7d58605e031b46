package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/projectdesk/api-proxy/internal/errs"
	"github.com/projectdesk/api-proxy/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Identity is the subject the auth provider resolved a bearer token to
type Identity struct {
	Subject string
	Email   string
}

// Verifier resolves bearer tokens to identities. Implementations only hold
// non-privileged credentials.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// SupabaseVerifier checks tokens against the Supabase auth API using the public anon key
type SupabaseVerifier struct {
	userURL string
	anonKey string
	base    http.RoundTripper
	timeout time.Duration
	logger  *zap.Logger
}

// NewSupabaseVerifier creates a verifier for the project at baseURL
func NewSupabaseVerifier(baseURL, anonKey string, timeout time.Duration, logger *zap.Logger) *SupabaseVerifier {
	return &SupabaseVerifier{
		userURL: strings.TrimRight(baseURL, "/") + "/auth/v1/user",
		anonKey: anonKey,
		base:    http.DefaultTransport,
		timeout: timeout,
		logger:  logger,
	}
}

type supabaseUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Verify returns the identity behind token. Every failure, including an
// unreachable auth API, is reported as an Auth error.
func (v *SupabaseVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.userURL, nil)
	if err != nil {
		return nil, errs.Wrap(errs.Auth, "Invalid or expired token", err)
	}
	req.Header.Set("apikey", v.anonKey)
	req.Header.Set("Accept", "application/json")

	// caller's token rides on the transport, the anon key only identifies the project
	client := &http.Client{
		Timeout: v.timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			Base:   v.base,
		},
	}

	started := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		metrics.ObserveUpstream(metrics.ProviderSupabase, metrics.OutcomeUnreachable, started)
		return nil, errs.Wrap(errs.Auth, "Invalid or expired token", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		metrics.ObserveUpstream(metrics.ProviderSupabase, metrics.OutcomeRejected, started)
		v.logger.Info("Token verification rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)))
		return nil, errs.Wrap(errs.Auth, "Invalid or expired token",
			fmt.Errorf("auth provider returned %d", resp.StatusCode))
	}

	var user supabaseUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		metrics.ObserveUpstream(metrics.ProviderSupabase, metrics.OutcomeInvalid, started)
		return nil, errs.Wrap(errs.Auth, "Invalid or expired token", err)
	}
	metrics.ObserveUpstream(metrics.ProviderSupabase, metrics.OutcomeOK, started)

	if user.ID == "" {
		return nil, errs.New(errs.Auth, "Invalid or expired token")
	}

	return &Identity{Subject: user.ID, Email: user.Email}, nil
}
