// Package testutil contains helpers for tests that talk to the real service URLs.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alanbriolat/share-fetch/internal/httpclient"
)

// RewriteTransport sends every request to Target, keeping the path and query, and records the original host in
// the X-Original-Host header. Responses report the original request.
type RewriteTransport struct {
	Target *url.URL
	Base   http.RoundTripper
}

func (t *RewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rewritten := req.Clone(req.Context())
	rewritten.Header.Set("X-Original-Host", req.URL.Host)
	rewritten.URL.Scheme = t.Target.Scheme
	rewritten.URL.Host = t.Target.Host
	rewritten.Host = t.Target.Host
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(rewritten)
	if resp != nil {
		// Callers see the URL they asked for, not the test server's.
		resp.Request = req
	}
	return resp, err
}

// NewServer starts a test server for handler and returns a client (with cookie jar) that sends every request to it.
func NewServer(t *testing.T, handler http.Handler) (*httptest.Server, *http.Client) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	target, err := url.Parse(server.URL)
	require.NoError(t, err)
	client, err := httpclient.New(httpclient.Options{
		Transport: &RewriteTransport{Target: target},
	})
	require.NoError(t, err)
	return server, client
}
