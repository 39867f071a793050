// Package creelcache is a digest-keyed blob cache the installer consults
// before fetching from a repository, storing entries zstd-compressed on
// disk: get/put keyed by a content identifier, with digest validation on
// read and deletion of an entry that fails it.
package creelcache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/mmilitzer/creel/pkg/creeldigest"
)

// Cache stores artifact blobs under dir, keyed by their content digest.
type Cache struct {
	dir       string
	algorithm creeldigest.Algorithm
}

// New returns a Cache rooted at dir, creating it if necessary.
func New(dir string, algorithm creeldigest.Algorithm) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir, algorithm: algorithm}, nil
}

func (c *Cache) path(digest string) string {
	return filepath.Join(c.dir, digest+".zst")
}

// Get returns a reader for digest's cached content, or ok=false if absent.
// The returned content is validated against digest as it is decompressed;
// an entry that fails validation is deleted, and Get reports ok=false in
// that case too rather than returning corrupt bytes.
func (c *Cache) Get(_ context.Context, digest string) (io.ReadCloser, bool, error) {
	f, err := os.Open(c.path(digest))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	decoder, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		os.Remove(c.path(digest))
		return nil, false, nil
	}
	data, err := io.ReadAll(decoder)
	decoder.Close()
	f.Close()
	if err != nil {
		os.Remove(c.path(digest))
		return nil, false, nil
	}
	actual, err := creeldigest.HexDigest(c.algorithm, bytes.NewReader(data))
	if err != nil {
		return nil, false, err
	}
	if actual != digest {
		os.Remove(c.path(digest))
		return nil, false, nil
	}
	return io.NopCloser(bytes.NewReader(data)), true, nil
}

// Put stores content under its own digest, recomputed from the stream as it
// is written so a caller-supplied digest can never poison the cache under
// the wrong key. Returns the digest actually stored under.
func (c *Cache) Put(_ context.Context, content io.Reader) (string, error) {
	hasher, err := creeldigest.NewHash(c.algorithm)
	if err != nil {
		return "", err
	}
	tempPath := filepath.Join(c.dir, "."+uuid.NewString()+".tmp")
	f, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", err
	}
	encoder, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		os.Remove(tempPath)
		return "", err
	}
	if _, err := io.Copy(io.MultiWriter(encoder, hasher), content); err != nil {
		encoder.Close()
		f.Close()
		os.Remove(tempPath)
		return "", err
	}
	if err := encoder.Close(); err != nil {
		f.Close()
		os.Remove(tempPath)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return "", err
	}
	digest := fmt.Sprintf("%x", hasher.Sum(nil))
	if err := os.Rename(tempPath, c.path(digest)); err != nil {
		os.Remove(tempPath)
		return "", err
	}
	return digest, nil
}

// Delete removes digest's cache entry, if present.
func (c *Cache) Delete(digest string) error {
	err := os.Remove(c.path(digest))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
