package customers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/projectdesk/api-proxy/internal/errs"
	"github.com/projectdesk/api-proxy/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// RESTStore reads customer links through the Supabase data API with the service-role key
type RESTStore struct {
	tableURL   string
	serviceKey string
	http       *http.Client
	logger     *zap.Logger
}

// NewRESTStore creates a store reading from table in the project at baseURL
func NewRESTStore(baseURL, serviceKey, table string, timeout time.Duration, logger *zap.Logger) *RESTStore {
	return &RESTStore{
		tableURL:   strings.TrimRight(baseURL, "/") + "/rest/v1/" + url.PathEscape(table),
		serviceKey: serviceKey,
		http: &http.Client{
			Timeout: timeout,
			Transport: &oauth2.Transport{
				Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: serviceKey, TokenType: "Bearer"}),
				Base:   http.DefaultTransport,
			},
		},
		logger: logger,
	}
}

// CustomerLink selects the customer id of exactly one row keyed by userID
func (s *RESTStore) CustomerLink(ctx context.Context, userID string) (*Link, error) {
	q := url.Values{}
	q.Set("select", Column)
	q.Set("id", "eq."+userID)
	q.Set("limit", "2")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.tableURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "Failed to look up customer", err)
	}
	req.Header.Set("apikey", s.serviceKey)
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := s.http.Do(req)
	if err != nil {
		metrics.ObserveUpstream(metrics.ProviderSupabase, metrics.OutcomeUnreachable, started)
		return nil, errs.Wrap(errs.UpstreamUnreachable, "Failed to look up customer", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		metrics.ObserveUpstream(metrics.ProviderSupabase, metrics.OutcomeRejected, started)
		s.logger.Warn("Customer lookup rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)))
		return nil, errs.Wrap(errs.UpstreamProtocol, "Failed to look up customer",
			fmt.Errorf("data API returned %d", resp.StatusCode))
	}

	var rows []map[string]*string
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		metrics.ObserveUpstream(metrics.ProviderSupabase, metrics.OutcomeInvalid, started)
		return nil, errs.Wrap(errs.UpstreamProtocol, "Failed to look up customer", err)
	}
	metrics.ObserveUpstream(metrics.ProviderSupabase, metrics.OutcomeOK, started)

	ids := make([]*string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row[Column])
	}
	return linkFrom(userID, ids)
}
