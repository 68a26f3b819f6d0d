package fetch

import (
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

// decodeBody reads resp.Body, undoing any Content-Encoding, keeps at most
// limit bytes and returns the result as UTF-8.
func decodeBody(resp *http.Response, limit int64) ([]byte, error) {
	var r io.Reader = resp.Body

	enc := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch enc {
	case "", "identity":
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip body: %w", err)
		}
		defer gz.Close()
		r = gz
	case "br":
		r = brotli.NewReader(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, enc)
	}

	raw, err := io.ReadAll(io.LimitReader(r, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	return toUTF8(raw, resp.Header.Get("Content-Type"))
}

// toUTF8 transcodes raw into UTF-8 when a BOM, the Content-Type charset or
// a <meta> declaration names another encoding.
func toUTF8(raw []byte, contentType string) ([]byte, error) {
	e, name, _ := charset.DetermineEncoding(raw, contentType)
	if name == "utf-8" {
		return raw, nil
	}
	out, _, err := transform.Bytes(e.NewDecoder(), raw)
	if err != nil {
		return nil, fmt.Errorf("failed to transcode %s body: %w", name, err)
	}
	return out, nil
}
