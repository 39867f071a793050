package httprepo

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/klauspost/compress/gzip"

	"github.com/mmilitzer/creel/internal/netrcauth"
)

// Fetcher downloads artifact blobs over HTTP(S), transparently
// decompressing a gzip-encoded response body.
type Fetcher struct {
	Client    *http.Client
	NetrcPath string
}

// Fetch issues a GET request for sourceURL and returns its (possibly
// gzip-decoded) body.
func (f Fetcher) Fetch(ctx context.Context, sourceURL string) (io.ReadCloser, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept-Encoding", "gzip")
	if f.NetrcPath != "" {
		if _, err := netrcauth.SetAuth(req, f.NetrcPath); err != nil {
			return nil, fmt.Errorf("httprepo: netrc auth: %w", err)
		}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("httprepo: GET %s returned %s", sourceURL, resp.Status)
	}
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			resp.Body.Close()
			return nil, err
		}
		return &gzipReadCloser{gz: gz, underlying: resp.Body}, nil
	}
	return resp.Body, nil
}

// gzipReadCloser closes both the gzip reader and the underlying HTTP body.
type gzipReadCloser struct {
	gz         *gzip.Reader
	underlying io.ReadCloser
}

func (g *gzipReadCloser) Read(p []byte) (int, error) { return g.gz.Read(p) }

func (g *gzipReadCloser) Close() error {
	gzErr := g.gz.Close()
	bodyErr := g.underlying.Close()
	if gzErr != nil {
		return gzErr
	}
	return bodyErr
}
