// Package creelartifact models the file+URL+volatile+digest tuple the
// installer materializes on disk.
package creelartifact

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/mmilitzer/creel/pkg/creeldigest"
)

// Fetcher opens a byte stream for a source URL. Implementations are
// supplied by repository plugins (pkg/creelrepo/httprepo, .../localrepo).
type Fetcher interface {
	Fetch(ctx context.Context, sourceURL string) (io.ReadCloser, error)
}

// ProgressListener reports byte-level progress for one artifact's transfer.
// bytesTotal is -1 when unknown.
type ProgressListener func(artifact *Artifact, bytesDone, bytesTotal int64)

// Artifact is a single file the installer manages. Equality and the map key
// below use FilePath only.
type Artifact struct {
	// FilePath is relative to the installer's root.
	FilePath string
	// SourceURL is where the file is fetched from when (re)installed.
	SourceURL string
	// Volatile artifacts are expected to be user-edited after install; the
	// installer never overwrites an existing volatile file's content.
	Volatile bool
	// Digest is the hex digest of the file at last successful install.
	// Empty means "never installed in this process's view".
	Digest string
}

// Key returns the identity of the artifact for set/map membership: its
// FilePath alone.
func (a *Artifact) Key() string { return a.FilePath }

// absPath returns the artifact's absolute path under root.
func (a *Artifact) absPath(root string) string {
	return filepath.Join(root, filepath.FromSlash(a.FilePath))
}

// Exists reports whether the artifact's file is present on disk under root.
func (a *Artifact) Exists(root string) bool {
	_, err := os.Stat(a.absPath(root))
	return err == nil
}

// WasModified reports whether the on-disk file's current digest differs
// from a.Digest (or a.Digest is empty, which is always treated as modified).
func (a *Artifact) WasModified(root string, algorithm creeldigest.Algorithm) (bool, error) {
	if a.Digest == "" {
		return true, nil
	}
	current, err := a.currentDigest(root, algorithm)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, err
	}
	return current != a.Digest, nil
}

// IsDifferent reports whether the digest of the content behind sourceURL
// differs from the digest of the local file.
func (a *Artifact) IsDifferent(ctx context.Context, root string, fetcher Fetcher, algorithm creeldigest.Algorithm) (bool, error) {
	local, err := a.currentDigest(root, algorithm)
	if err != nil {
		return true, nil //nolint:nilerr // missing local file counts as "different"
	}
	remote, err := a.fetchDigest(ctx, fetcher, algorithm)
	if err != nil {
		return false, err
	}
	return local != remote, nil
}

func (a *Artifact) currentDigest(root string, algorithm creeldigest.Algorithm) (string, error) {
	f, err := os.Open(a.absPath(root))
	if err != nil {
		return "", err
	}
	defer f.Close()
	return creeldigest.HexDigest(algorithm, f)
}

func (a *Artifact) fetchDigest(ctx context.Context, fetcher Fetcher, algorithm creeldigest.Algorithm) (string, error) {
	rc, err := fetcher.Fetch(ctx, a.SourceURL)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	return creeldigest.HexDigest(algorithm, rc)
}

// Copy atomically overwrites the local file from SourceURL: it downloads to
// a sibling temp file (named with a uuid) while hashing the stream, then
// renames into place. If the artifact is Volatile and the local file already
// exists, content is left untouched and only the digest is recomputed from
// what's on disk.
func (a *Artifact) Copy(ctx context.Context, root string, fetcher Fetcher, algorithm creeldigest.Algorithm, progress ProgressListener) error {
	dest := a.absPath(root)
	if a.Volatile && a.Exists(root) {
		digest, err := a.currentDigest(root, algorithm)
		if err != nil {
			return err
		}
		a.Digest = digest
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	rc, err := fetcher.Fetch(ctx, a.SourceURL)
	if err != nil {
		return err
	}
	defer rc.Close()

	tempPath := filepath.Join(filepath.Dir(dest), "."+filepath.Base(dest)+"."+uuid.NewString()+".tmp")
	tempFile, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	hasher, err := creeldigest.NewHash(algorithm)
	if err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return err
	}

	var bytesDone int64
	buf := make([]byte, 32*1024)
	for {
		select {
		case <-ctx.Done():
			tempFile.Close()
			os.Remove(tempPath)
			return ctx.Err()
		default:
		}
		n, readErr := rc.Read(buf)
		if n > 0 {
			if _, err := tempFile.Write(buf[:n]); err != nil {
				tempFile.Close()
				os.Remove(tempPath)
				return err
			}
			hasher.Write(buf[:n])
			bytesDone += int64(n)
			if progress != nil {
				progress(a, bytesDone, -1)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			tempFile.Close()
			os.Remove(tempPath)
			return readErr
		}
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempPath)
		return err
	}
	if err := os.Rename(tempPath, dest); err != nil {
		os.Remove(tempPath)
		return err
	}
	a.Digest = fmt.Sprintf("%x", hasher.Sum(nil))
	return nil
}

// UpdateDigest recomputes and stores the artifact's digest from its current
// on-disk content.
func (a *Artifact) UpdateDigest(root string, algorithm creeldigest.Algorithm) error {
	digest, err := a.currentDigest(root, algorithm)
	if err != nil {
		return err
	}
	a.Digest = digest
	return nil
}

// Delete removes the artifact's file and walks up removing empty parent
// directories, stopping at (and never removing) root itself.
func (a *Artifact) Delete(root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	path := a.absPath(root)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	dir := filepath.Dir(path)
	for {
		absDir, err := filepath.Abs(dir)
		if err != nil || absDir == absRoot || !isWithin(absRoot, absDir) {
			return nil
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return nil
		}
		if err := os.Remove(dir); err != nil {
			return nil
		}
		dir = filepath.Dir(dir)
	}
}

func isWithin(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
