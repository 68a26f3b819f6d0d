package fetch

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"

	"github.com/nao1215/paramcrawl/internal/model"
)

// DefaultMaxBodySize is the body limit used when none is configured.
const DefaultMaxBodySize int64 = 5 * 1024 * 1024

// userAgents is the browser identity pool rotated per request when no
// fixed User-Agent is configured.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.3",
	"Mozilla/5.0 (Windows NT 6.1; WOW64; rv:54.0) Gecko/20100101 Firefox/54.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_12_6) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/61.0.3163.100 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_12_6) AppleWebKit/604.5.6 (KHTML, like Gecko) Version/11.0.3 Safari/604.5.6",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/64.0.3282.140 Safari/537.36 Edge/17.17134",
}

// Fetcher retrieves the body of a URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Response, error)
}

// Func adapts an ordinary function to the Fetcher interface.
type Func func(ctx context.Context, rawURL string) (*Response, error)

// Fetch calls f(ctx, rawURL).
func (f Func) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	return f(ctx, rawURL)
}

// Response is a successfully fetched document.
type Response struct {
	// URL is the URL that was requested.
	URL string

	// ContentType is the Content-Type header of the response.
	ContentType string

	// Body is the decoded, UTF-8 body, truncated at the size limit.
	Body []byte
}

// Text returns the body as a string.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return string(r.Body)
}

// HTTPFetcher is a Fetcher backed by an *http.Client.
// It is safe for concurrent use.
type HTTPFetcher struct {
	// client is shared by every request. Its transport decides whether
	// traffic goes direct or through a SOCKS5 proxy.
	client *http.Client

	// userAgent is sent on every request. When empty, a browser identity
	// is picked at random per request.
	userAgent string

	// maxBodySize caps how many decoded bytes are kept per response.
	maxBodySize int64

	// headers are added to every request.
	headers map[string]string

	// hostHeaders are added to requests whose hostname matches the key.
	hostHeaders map[string]map[string]string
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithUserAgent sends a fixed User-Agent instead of rotating.
func WithUserAgent(ua string) Option {
	return func(f *HTTPFetcher) {
		f.userAgent = ua
	}
}

// WithMaxBodySize sets the per-response body limit in bytes.
func WithMaxBodySize(size int64) Option {
	return func(f *HTTPFetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithHeaders adds headers to every request.
func WithHeaders(headers map[string]string) Option {
	return func(f *HTTPFetcher) {
		for k, v := range headers {
			f.headers[k] = v
		}
	}
}

// WithHostHeaders adds headers to requests for a given hostname.
func WithHostHeaders(host string, headers map[string]string) Option {
	return func(f *HTTPFetcher) {
		host = strings.ToLower(host)
		if f.hostHeaders[host] == nil {
			f.hostHeaders[host] = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			f.hostHeaders[host][k] = v
		}
	}
}

// New returns an HTTPFetcher that issues requests with client.
func New(client *http.Client, opts ...Option) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	f := &HTTPFetcher{
		client:      client,
		maxBodySize: DefaultMaxBodySize,
		headers:     make(map[string]string),
		hostHeaders: make(map[string]map[string]string),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves rawURL. Any failure, including a non-200 status, is
// returned as a *model.Failure of kind FailureFetch.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, model.NewFailure(model.FailureFetch, rawURL, err)
	}
	f.setHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, model.NewFailure(model.FailureFetch, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, model.NewFailure(model.FailureFetch, rawURL,
			fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode))
	}

	body, err := decodeBody(resp, f.maxBodySize)
	if err != nil {
		return nil, model.NewFailure(model.FailureFetch, rawURL, err)
	}

	return &Response{
		URL:         rawURL,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// CloseIdleConnections releases pooled connections of the underlying client.
func (f *HTTPFetcher) CloseIdleConnections() {
	f.client.CloseIdleConnections()
}

func (f *HTTPFetcher) setHeaders(req *http.Request) {
	ua := f.userAgent
	if ua == "" {
		ua = userAgents[rand.IntN(len(userAgents))] //nolint:gosec // identity rotation, not security
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Accept-Encoding", "gzip, br")

	for k, v := range f.headers {
		req.Header.Set(k, v)
	}
	for k, v := range f.hostHeaders[strings.ToLower(req.URL.Hostname())] {
		req.Header.Set(k, v)
	}
}
