package billing

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/projectdesk/api-proxy/internal/errs"
	"github.com/projectdesk/api-proxy/internal/metrics"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"
)

// SessionCreator opens hosted billing-management sessions
type SessionCreator interface {
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
}

// StripePortal creates Stripe customer portal sessions
type StripePortal struct {
	api    *client.API
	logger *zap.Logger
}

// NewStripePortal creates a portal client. apiBase overrides the Stripe API
// host and is empty in production. Network retries are disabled: every
// request makes at most one call.
func NewStripePortal(secretKey, apiBase string, timeout time.Duration, logger *zap.Logger) *StripePortal {
	backendConfig := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		LeveledLogger:     logger.Named("stripe").Sugar(),
		MaxNetworkRetries: stripe.Int64(0),
	}
	if apiBase != "" {
		backendConfig.URL = stripe.String(apiBase)
	}
	apiBackend := stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig)

	return &StripePortal{
		api: client.New(secretKey, &stripe.Backends{
			API:     apiBackend,
			Connect: apiBackend,
			Uploads: apiBackend,
		}),
		logger: logger,
	}
}

// CreatePortalSession returns the redirect URL of a new session for customerID
func (p *StripePortal) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	started := time.Now()
	sess, err := p.api.BillingPortalSessions.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			metrics.ObserveUpstream(metrics.ProviderStripe, metrics.OutcomeRejected, started)
			p.logger.Warn("Stripe rejected portal session",
				zap.Int("status", stripeErr.HTTPStatusCode),
				zap.String("type", string(stripeErr.Type)),
				zap.String("code", string(stripeErr.Code)),
				zap.String("request_id", stripeErr.RequestID))
			return "", errs.Wrap(errs.UpstreamProtocol, "Failed to create billing portal session", err)
		}
		metrics.ObserveUpstream(metrics.ProviderStripe, metrics.OutcomeUnreachable, started)
		return "", errs.Wrap(errs.UpstreamUnreachable, "Failed to create billing portal session", err)
	}

	if sess.URL == "" {
		metrics.ObserveUpstream(metrics.ProviderStripe, metrics.OutcomeInvalid, started)
		return "", errs.New(errs.UpstreamProtocol, "Failed to create billing portal session")
	}
	metrics.ObserveUpstream(metrics.ProviderStripe, metrics.OutcomeOK, started)

	p.logger.Debug("Created billing portal session", zap.String("session_id", sess.ID))
	return sess.URL, nil
}
