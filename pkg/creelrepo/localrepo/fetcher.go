package localrepo

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// Fetcher opens file:// source URLs produced by Repository.GetArtifacts.
type Fetcher struct{}

// Fetch opens the local file named by a file:// URL.
func (Fetcher) Fetch(_ context.Context, sourceURL string) (io.ReadCloser, error) {
	path, ok := strings.CutPrefix(sourceURL, "file://")
	if !ok {
		return nil, fmt.Errorf("localrepo: not a file:// URL: %q", sourceURL)
	}
	return os.Open(path)
}
