package courier

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Request describes one logical call to the backend. It is an immutable value:
// the executor never mutates it and a fresh transport request is built from it
// for every attempt, so the Body bytes can be replayed safely across retries.
type Request struct {
	// Method is the HTTP method. Defaults to GET when empty.
	Method string

	// URL is the absolute target URL. It is canonicalized once per Execute
	// call; the canonical form (together with Method) is the deduplication
	// fingerprint.
	URL string

	// Header holds extra headers applied to every attempt. Optional.
	Header http.Header

	// Body is the request payload, replayed on every attempt. Optional.
	Body []byte

	// MaxAttempts overrides the client-wide attempt budget for this request
	// when > 0.
	MaxAttempts int
}

// preparedRequest is the canonicalized, validated form of a Request, computed
// once per Execute call and shared by all attempts.
type preparedRequest struct {
	method      string
	url         *url.URL
	header      http.Header
	body        []byte
	maxAttempts int
	fingerprint string
	endpoint    string
}

func (c *Client) prepare(req Request) (*preparedRequest, error) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}

	u, err := canonicalURL(req.URL)
	if err != nil {
		return nil, err
	}

	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = c.maxAttempts
	}

	return &preparedRequest{
		method:      method,
		url:         u,
		header:      req.Header,
		body:        req.Body,
		maxAttempts: maxAttempts,
		fingerprint: fingerprintURL(method, u),
		endpoint:    endpointLabel(u),
	}, nil
}

// httpRequest materializes one transport attempt under the given context.
// bytes.Reader bodies get GetBody and ContentLength for free from net/http.
func (p *preparedRequest) httpRequest(ctx context.Context) (*http.Request, error) {
	var body io.Reader
	if len(p.body) > 0 {
		body = bytes.NewReader(p.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, p.method, p.url.String(), body)
	if err != nil {
		return nil, err
	}

	for key, values := range p.header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}

	return httpReq, nil
}

// Fingerprint returns the deduplication key for a method + URL pair: two
// concurrent Execute calls with equal fingerprints share one transport call.
// The request body is deliberately NOT part of the key, even for mutating
// methods: two different payloads to the same method and URL are treated as
// the same logical in-flight request.
func Fingerprint(method, rawURL string) (string, error) {
	u, err := canonicalURL(rawURL)
	if err != nil {
		return "", err
	}
	m := strings.ToUpper(strings.TrimSpace(method))
	if m == "" {
		m = http.MethodGet
	}
	return fingerprintURL(m, u), nil
}

func fingerprintURL(method string, u *url.URL) string {
	h := xxhash.New()
	_, _ = h.WriteString(method)
	_, _ = h.WriteString(" ")
	_, _ = h.WriteString(u.String())
	return fmt.Sprintf("%016x", h.Sum64())
}

// canonicalURL parses and normalizes a raw URL so that trivially different
// spellings of the same target produce the same fingerprint.
func canonicalURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("courier: request URL must be absolute, got %q", rawURL)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}

	return u, nil
}

func endpointLabel(u *url.URL) string {
	host := u.Host
	path := u.Path

	var builder strings.Builder
	builder.WriteString(host)

	if path != "" && path != "/" {
		builder.WriteString(path)
	} else {
		builder.WriteByte('/')
	}

	return builder.String()
}
