package fetch

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/nao1215/paramcrawl/internal/model"
)

func TestHTTPFetcherFetch(t *testing.T) {
	t.Parallel()

	t.Run("returns body for 200", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<html><body>hello</body></html>"))
		}))
		defer server.Close()

		resp, err := New(server.Client()).Fetch(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(resp.Text(), "hello") {
			t.Errorf("expected body to contain hello, got %q", resp.Text())
		}
		if resp.ContentType != "text/html; charset=utf-8" {
			t.Errorf("expected content type to be kept, got %q", resp.ContentType)
		}
	})

	t.Run("non-200 status is a fetch failure", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.NotFoundHandler())
		defer server.Close()

		_, err := New(server.Client()).Fetch(context.Background(), server.URL)
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		var failure *model.Failure
		if !errors.As(err, &failure) {
			t.Fatalf("expected *model.Failure, got %T", err)
		}
		if failure.Kind != model.FailureFetch {
			t.Errorf("expected fetch failure, got %s", failure.Kind)
		}
		if !errors.Is(err, ErrUnexpectedStatus) {
			t.Errorf("expected ErrUnexpectedStatus, got %v", err)
		}
	})

	t.Run("unreachable host is a fetch failure", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.NotFoundHandler())
		addr := server.URL
		server.Close()

		_, err := New(http.DefaultClient).Fetch(context.Background(), addr)
		var failure *model.Failure
		if !errors.As(err, &failure) {
			t.Fatalf("expected *model.Failure, got %v", err)
		}
	})

	t.Run("invalid url is a fetch failure", func(t *testing.T) {
		t.Parallel()

		_, err := New(nil).Fetch(context.Background(), "http://[::1")
		var failure *model.Failure
		if !errors.As(err, &failure) {
			t.Fatalf("expected *model.Failure, got %v", err)
		}
	})

	t.Run("cancelled context is a fetch failure", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("ok"))
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := New(server.Client()).Fetch(ctx, server.URL)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestHTTPFetcherDecoding(t *testing.T) {
	t.Parallel()

	t.Run("gzip body", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		_, _ = gz.Write([]byte("<p>gzipped</p>"))
		_ = gz.Close()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Encoding", "gzip")
			_, _ = w.Write(buf.Bytes())
		}))
		defer server.Close()

		resp, err := New(server.Client()).Fetch(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Text() != "<p>gzipped</p>" {
			t.Errorf("expected decoded gzip body, got %q", resp.Text())
		}
	})

	t.Run("brotli body", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		br := brotli.NewWriter(&buf)
		_, _ = br.Write([]byte("<p>brotli</p>"))
		_ = br.Close()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Encoding", "br")
			_, _ = w.Write(buf.Bytes())
		}))
		defer server.Close()

		resp, err := New(server.Client()).Fetch(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Text() != "<p>brotli</p>" {
			t.Errorf("expected decoded brotli body, got %q", resp.Text())
		}
	})

	t.Run("unsupported encoding", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Encoding", "zstd")
			_, _ = w.Write([]byte("???"))
		}))
		defer server.Close()

		_, err := New(server.Client()).Fetch(context.Background(), server.URL)
		if !errors.Is(err, ErrUnsupportedEncoding) {
			t.Errorf("expected ErrUnsupportedEncoding, got %v", err)
		}
	})

	t.Run("latin-1 body is transcoded", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
			_, _ = w.Write([]byte("caf\xe9"))
		}))
		defer server.Close()

		resp, err := New(server.Client()).Fetch(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Text() != "café" {
			t.Errorf("expected café, got %q", resp.Text())
		}
	})

	t.Run("body is truncated at limit", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = w.Write([]byte(strings.Repeat("a", 100)))
		}))
		defer server.Close()

		resp, err := New(server.Client(), WithMaxBodySize(10)).Fetch(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(resp.Body) != 10 {
			t.Errorf("expected 10 bytes, got %d", len(resp.Body))
		}
	})
}

func TestHTTPFetcherHeaders(t *testing.T) {
	t.Parallel()

	t.Run("fixed user agent and extra headers", func(t *testing.T) {
		t.Parallel()

		headers := make(chan http.Header, 1)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			headers <- r.Header.Clone()
			_, _ = w.Write([]byte("ok"))
		}))
		defer server.Close()

		f := New(server.Client(),
			WithUserAgent("paramcrawl-test"),
			WithHeaders(map[string]string{"X-Global": "1"}),
			WithHostHeaders("127.0.0.1", map[string]string{"X-Site": "local"}),
			WithHostHeaders("example.com", map[string]string{"X-Other": "no"}),
		)
		if _, err := f.Fetch(context.Background(), server.URL); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got := <-headers
		if got.Get("User-Agent") != "paramcrawl-test" {
			t.Errorf("expected fixed user agent, got %q", got.Get("User-Agent"))
		}
		if got.Get("X-Global") != "1" {
			t.Errorf("expected X-Global header, got %q", got.Get("X-Global"))
		}
		if got.Get("X-Site") != "local" {
			t.Errorf("expected X-Site header, got %q", got.Get("X-Site"))
		}
		if got.Get("X-Other") != "" {
			t.Errorf("expected no X-Other header, got %q", got.Get("X-Other"))
		}
	})

	t.Run("rotating user agent comes from pool", func(t *testing.T) {
		t.Parallel()

		agents := make(chan string, 1)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			agents <- r.Header.Get("User-Agent")
			_, _ = w.Write([]byte("ok"))
		}))
		defer server.Close()

		if _, err := New(server.Client()).Fetch(context.Background(), server.URL); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ua := <-agents; !slices.Contains(userAgents, ua) {
			t.Errorf("expected user agent from pool, got %q", ua)
		}
	})
}

func TestFunc(t *testing.T) {
	t.Parallel()

	var f Fetcher = Func(func(_ context.Context, rawURL string) (*Response, error) {
		return &Response{URL: rawURL, Body: []byte("stub")}, nil
	})

	resp, err := f.Fetch(context.Background(), "http://a.com/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.URL != "http://a.com/" || resp.Text() != "stub" {
		t.Errorf("expected stub response, got %+v", resp)
	}

	var nilResp *Response
	if nilResp.Text() != "" {
		t.Error("expected empty text for nil response")
	}
}
