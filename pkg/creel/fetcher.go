package creel

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/mmilitzer/creel/pkg/creelartifact"
	"github.com/mmilitzer/creel/pkg/creelrepo/httprepo"
	"github.com/mmilitzer/creel/pkg/creelrepo/localrepo"
)

// SchemeFetcher dispatches Fetch to localrepo.Fetcher or httprepo.Fetcher by
// the source URL's scheme, so a single Installer can serve a module set
// drawn from a mix of local and HTTP repositories.
type SchemeFetcher struct {
	HTTP httprepo.Fetcher
	File localrepo.Fetcher
}

// Fetch implements creelartifact.Fetcher.
func (s SchemeFetcher) Fetch(ctx context.Context, sourceURL string) (io.ReadCloser, error) {
	parsed, err := url.Parse(sourceURL)
	if err != nil {
		return nil, err
	}
	switch parsed.Scheme {
	case "file":
		return s.File.Fetch(ctx, sourceURL)
	case "http", "https":
		return s.HTTP.Fetch(ctx, sourceURL)
	default:
		return nil, fmt.Errorf("creel: unsupported source URL scheme %q", parsed.Scheme)
	}
}

var _ creelartifact.Fetcher = SchemeFetcher{}
