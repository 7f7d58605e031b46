package billing

import (
	"context"

	"github.com/projectdesk/api-proxy/internal/customers"
	"github.com/projectdesk/api-proxy/internal/identity"
	"github.com/projectdesk/api-proxy/internal/models"
	"go.uber.org/zap"
)

// Portal opens billing portal sessions for verified users.
// The verifier and the customer lookup are distinct capabilities: the
// lookup is privileged and only ever sees ids the verifier produced.
type Portal struct {
	verifier      identity.Verifier
	customers     customers.Lookup
	sessions      SessionCreator
	defaultOrigin string
	returnPath    string
	logger        *zap.Logger
}

// NewPortal wires the three collaborators together
func NewPortal(verifier identity.Verifier, lookup customers.Lookup, sessions SessionCreator,
	defaultOrigin, returnPath string, logger *zap.Logger) *Portal {
	return &Portal{
		verifier:      verifier,
		customers:     lookup,
		sessions:      sessions,
		defaultOrigin: defaultOrigin,
		returnPath:    returnPath,
		logger:        logger,
	}
}

// Request is everything Open needs from the inbound HTTP request
type Request struct {
	Token   string
	Body    models.PortalRequest
	Origin  string
	Referer string
}

// Open verifies the token, resolves the caller's customer and creates a session.
// The three calls are sequential; each feeds the next.
func (p *Portal) Open(ctx context.Context, req Request) (string, error) {
	who, err := p.verifier.Verify(ctx, req.Token)
	if err != nil {
		return "", err
	}

	link, err := p.customers.CustomerLink(ctx, who.Subject)
	if err != nil {
		return "", err
	}

	returnURL := ReturnURL(req.Body.ReturnURL, req.Origin, req.Referer, p.defaultOrigin, p.returnPath)

	url, err := p.sessions.CreatePortalSession(ctx, link.CustomerID, returnURL)
	if err != nil {
		return "", err
	}

	p.logger.Info("Billing portal session created",
		zap.String("user_id", who.Subject),
		zap.String("return_url", returnURL))
	return url, nil
}
