package billing

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/projectdesk/api-proxy/internal/customers"
	"github.com/projectdesk/api-proxy/internal/errs"
	"github.com/projectdesk/api-proxy/internal/identity"
	"github.com/projectdesk/api-proxy/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestReturnURL(t *testing.T) {
	const def = "http://localhost:8888"
	cases := []struct {
		name                      string
		override, origin, referer string
		want                      string
	}{
		{"default", "", "", "", "http://localhost:8888/billing"},
		{"origin", "", "https://app.example.com", "", "https://app.example.com/billing"},
		{"origin wins over referer", "", "https://a.example.com", "https://b.example.com/x", "https://a.example.com/billing"},
		{"referer path and query dropped", "", "", "https://app.example.com/settings?tab=2", "https://app.example.com/billing"},
		{"port kept", "", "http://localhost:5173", "", "http://localhost:5173/billing"},
		{"malformed origin", "", "http://bad host:99/x", "", "http://bad host:99/billing"},
		{"opaque origin falls back to referer", "", "null", "https://app.example.com/x", "https://app.example.com/billing"},
		{"opaque origin falls back to default", "", "null", "", "http://localhost:8888/billing"},
		{"hostless origin ignored", "", "app.example.com", "", "http://localhost:8888/billing"},
		{"override verbatim", "https://x.example.com/back?y=1", "https://app.example.com", "", "https://x.example.com/back?y=1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ReturnURL(tc.override, tc.origin, tc.referer, def, "/billing"))
		})
	}
}

func TestSiteOrigin_Unparseable(t *testing.T) {
	assert.Equal(t, "not a url", SiteOrigin("not a url/"))
}

func newStripeBackend(t *testing.T, status int, body string) (*httptest.Server, *int32, *url.Values) {
	t.Helper()
	var calls int32
	form := &url.Values{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/v1/billing_portal/sessions", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		*form, _ = url.ParseQuery(string(raw))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = fmt.Fprintf(w, body, n)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls, form
}

func TestStripePortal_CreatePortalSession(t *testing.T) {
	srv, calls, form := newStripeBackend(t, http.StatusOK,
		`{"id":"bps_%d","object":"billing_portal.session","url":"https://billing.stripe.com/p/session/test"}`)
	p := NewStripePortal("sk_test_123", srv.URL, 5*time.Second, zap.NewNop())

	got, err := p.CreatePortalSession(context.Background(), "cus_123", "https://app.example.com/billing")
	require.NoError(t, err)
	assert.Equal(t, "https://billing.stripe.com/p/session/test", got)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	assert.Equal(t, "cus_123", form.Get("customer"))
	assert.Equal(t, "https://app.example.com/billing", form.Get("return_url"))
}

func TestStripePortal_Rejected(t *testing.T) {
	srv, calls, _ := newStripeBackend(t, http.StatusBadRequest,
		`{"error":{"type":"invalid_request_error","message":"No such customer: 'cus_%d'"}}`)
	p := NewStripePortal("sk_test_123", srv.URL, 5*time.Second, zap.NewNop())

	_, err := p.CreatePortalSession(context.Background(), "cus_missing", "https://app.example.com/billing")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, errs.StatusOf(err))
	assert.Equal(t, "Failed to create billing portal session", errs.PublicMessage(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestStripePortal_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	p := NewStripePortal("sk_test_123", base, 2*time.Second, zap.NewNop())
	_, err := p.CreatePortalSession(context.Background(), "cus_123", "https://app.example.com/billing")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, errs.StatusOf(err))
	assert.NotContains(t, errs.PublicMessage(err), "sk_test_123")
}

type fakeVerifier struct {
	id  *identity.Identity
	err error
}

func (f *fakeVerifier) Verify(_ context.Context, _ string) (*identity.Identity, error) {
	return f.id, f.err
}

type fakeLookup struct {
	calls int
	link  *customers.Link
	err   error
	seen  string
}

func (f *fakeLookup) CustomerLink(_ context.Context, userID string) (*customers.Link, error) {
	f.calls++
	f.seen = userID
	return f.link, f.err
}

type fakeSessions struct {
	calls     int
	returnURL string
}

func (f *fakeSessions) CreatePortalSession(_ context.Context, customerID, returnURL string) (string, error) {
	f.calls++
	f.returnURL = returnURL
	return fmt.Sprintf("https://billing.example.com/%s/%d", customerID, f.calls), nil
}

func TestPortal_Open(t *testing.T) {
	lookup := &fakeLookup{link: &customers.Link{UserID: "user-1", CustomerID: "cus_1"}}
	sessions := &fakeSessions{}
	p := NewPortal(&fakeVerifier{id: &identity.Identity{Subject: "user-1"}}, lookup, sessions,
		"http://localhost:8888", "/billing", zap.NewNop())

	req := Request{Token: "tok", Origin: "https://app.example.com"}
	first, err := p.Open(context.Background(), req)
	require.NoError(t, err)
	second, err := p.Open(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "user-1", lookup.seen)
	assert.Equal(t, "https://app.example.com/billing", sessions.returnURL)
	assert.NotEqual(t, first, second)
	assert.Equal(t, 2, sessions.calls)
}

func TestPortal_Open_ReturnURLOverride(t *testing.T) {
	sessions := &fakeSessions{}
	p := NewPortal(&fakeVerifier{id: &identity.Identity{Subject: "user-1"}},
		&fakeLookup{link: &customers.Link{CustomerID: "cus_1"}}, sessions,
		"http://localhost:8888", "/billing", zap.NewNop())

	_, err := p.Open(context.Background(), Request{
		Token: "tok",
		Body:  models.PortalRequest{ReturnURL: "https://elsewhere.example.com/done"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://elsewhere.example.com/done", sessions.returnURL)
}

func TestPortal_Open_VerifyFailureStopsEarly(t *testing.T) {
	lookup := &fakeLookup{}
	sessions := &fakeSessions{}
	p := NewPortal(&fakeVerifier{err: errs.New(errs.Auth, "Invalid or expired token")}, lookup, sessions,
		"http://localhost:8888", "/billing", zap.NewNop())

	_, err := p.Open(context.Background(), Request{Token: "bad"})
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, errs.StatusOf(err))
	assert.Zero(t, lookup.calls)
	assert.Zero(t, sessions.calls)
}

func TestPortal_Open_NoCustomerMakesNoSession(t *testing.T) {
	sessions := &fakeSessions{}
	p := NewPortal(&fakeVerifier{id: &identity.Identity{Subject: "user-1"}},
		&fakeLookup{err: customers.ErrNoCustomer}, sessions,
		"http://localhost:8888", "/billing", zap.NewNop())

	_, err := p.Open(context.Background(), Request{Token: "tok"})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, errs.StatusOf(err))
	assert.Zero(t, sessions.calls)
}
