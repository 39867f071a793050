package creelartifact_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mmilitzer/creel/pkg/creelartifact"
	"github.com/mmilitzer/creel/pkg/creeldigest"
)

type staticFetcher struct {
	content []byte
}

func (s staticFetcher) Fetch(_ context.Context, _ string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.content)), nil
}

func TestCopyThenSkipUnchanged(t *testing.T) {
	root := t.TempDir()
	artifact := &creelartifact.Artifact{FilePath: "a/plain.jar", SourceURL: "http://example.test/plain.jar"}
	fetcher := staticFetcher{content: []byte("hello world")}

	require.NoError(t, artifact.Copy(context.Background(), root, fetcher, creeldigest.SHA1, nil))
	require.True(t, artifact.Exists(root))
	require.NotEmpty(t, artifact.Digest)

	modified, err := artifact.WasModified(root, creeldigest.SHA1)
	require.NoError(t, err)
	require.False(t, modified)
}

func TestVolatilePreservesLocalEdits(t *testing.T) {
	root := t.TempDir()
	artifact := &creelartifact.Artifact{FilePath: "config.xml", SourceURL: "http://example.test/config.xml", Volatile: true}
	fetcher := staticFetcher{content: []byte("<default/>")}

	require.NoError(t, artifact.Copy(context.Background(), root, fetcher, creeldigest.SHA1, nil))
	firstDigest := artifact.Digest

	// Simulate a user edit between runs.
	require.NoError(t, os.WriteFile(filepath.Join(root, "config.xml"), []byte("<edited/>"), 0o644))

	require.NoError(t, artifact.Copy(context.Background(), root, fetcher, creeldigest.SHA1, nil))
	content, err := os.ReadFile(filepath.Join(root, "config.xml"))
	require.NoError(t, err)
	require.Equal(t, "<edited/>", string(content))
	require.NotEqual(t, firstDigest, artifact.Digest)
}

func TestDeleteWalksUpEmptyDirsNotPastRoot(t *testing.T) {
	root := t.TempDir()
	artifact := &creelartifact.Artifact{FilePath: "group/name/1.0/file.jar"}
	full := filepath.Join(root, "group", "name", "1.0", "file.jar")
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte("x"), 0o644))

	require.NoError(t, artifact.Delete(root))
	_, err := os.Stat(filepath.Join(root, "group"))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(root)
	require.NoError(t, err)
}
