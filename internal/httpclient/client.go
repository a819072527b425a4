// Package httpclient builds the HTTP client shared by the resolvers and the downloader.
package httpclient

import (
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

type Options struct {
	// Timeout bounds dialing, the TLS handshake and waiting for response headers. It does not bound reading the
	// body, so long downloads are not cut off.
	Timeout time.Duration
	// InsecureSkipVerify disables TLS certificate validation for every request. Never enabled by default.
	InsecureSkipVerify bool
	UserAgent          string
	// Proxy URL; empty means use the environment (HTTP_PROXY etc).
	Proxy string
	// Transport overrides the base transport, mostly for tests. Timeout, InsecureSkipVerify and Proxy are ignored
	// when set.
	Transport http.RoundTripper
}

// New creates a client with an in-memory cookie jar, so cookies set by a service while resolving a link are sent
// when the file is downloaded. The jar lives as long as the client; nothing is persisted.
func New(opts Options) (*http.Client, error) {
	base := opts.Transport
	if base == nil {
		transport, err := buildTransport(opts)
		if err != nil {
			return nil, err
		}
		base = transport
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &http.Client{
		Transport: &userAgentTransport{base: base, userAgent: opts.UserAgent},
		Jar:       jar,
	}, nil
}

func buildTransport(opts Options) (*http.Transport, error) {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return nil, errors.New("unexpected default transport type")
	}

	transport := base.Clone()

	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, err
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	if opts.Timeout > 0 {
		transport.DialContext = (&net.Dialer{
			Timeout:   opts.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext
		transport.TLSHandshakeTimeout = opts.Timeout
		transport.ResponseHeaderTimeout = opts.Timeout
	}

	if opts.InsecureSkipVerify {
		zap.S().Named("httpclient").Warn("TLS certificate verification is disabled for all requests")
		if transport.TLSClientConfig == nil {
			transport.TLSClientConfig = &tls.Config{}
		} else {
			transport.TLSClientConfig = transport.TLSClientConfig.Clone()
		}
		transport.TLSClientConfig.InsecureSkipVerify = true
	}

	return transport, nil
}

type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.base.RoundTrip(req)
}
