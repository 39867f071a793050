package creelinstall_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mmilitzer/creel/pkg/creelartifact"
	"github.com/mmilitzer/creel/pkg/creelcache"
	"github.com/mmilitzer/creel/pkg/creeldigest"
	"github.com/mmilitzer/creel/pkg/creelinstall"
)

type fakeFetcher struct {
	content map[string]string
	fails   map[string]int // number of times to fail before succeeding
	calls   map[string]int
}

func (f *fakeFetcher) Fetch(_ context.Context, sourceURL string) (io.ReadCloser, error) {
	f.calls[sourceURL]++
	if remaining := f.fails[sourceURL]; remaining > 0 {
		f.fails[sourceURL] = remaining - 1
		return nil, errors.New("simulated transient failure")
	}
	content, ok := f.content[sourceURL]
	if !ok {
		return nil, errors.New("404")
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

func newFetcher() *fakeFetcher {
	return &fakeFetcher{content: map[string]string{}, fails: map[string]int{}, calls: map[string]int{}}
}

func TestPlanRejectsDuplicateFilePath(t *testing.T) {
	a := &creelartifact.Artifact{FilePath: "g/a/1/a.jar", SourceURL: "https://example.test/a.jar"}
	b := &creelartifact.Artifact{FilePath: "g/a/1/a.jar", SourceURL: "https://example.test/other.jar"}

	_, err := creelinstall.Plan([][]*creelartifact.Artifact{{a}, {b}})
	require.Error(t, err)
	var dup *creelinstall.DuplicateArtifactError
	require.ErrorAs(t, err, &dup)
}

func TestRunInstallsNewArtifacts(t *testing.T) {
	root := t.TempDir()
	fetcher := newFetcher()
	fetcher.content["https://example.test/a.jar"] = "hello world"

	installer := &creelinstall.Installer{
		Root:      root,
		StatePath: filepath.Join(root, "creel.state"),
		Workers:   2,
		Algorithm: creeldigest.SHA1,
		Fetcher:   fetcher,
	}

	planned := []*creelartifact.Artifact{
		{FilePath: "g/a/1/a.jar", SourceURL: "https://example.test/a.jar"},
	}
	summary, err := installer.Run(context.Background(), planned)
	require.NoError(t, err)
	require.Len(t, summary.Installed, 1)
	require.Empty(t, summary.Failed)

	data, err := os.ReadFile(filepath.Join(root, "g/a/1/a.jar"))
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))
}

func TestRunSkipsUnchangedArtifact(t *testing.T) {
	root := t.TempDir()
	fetcher := newFetcher()
	fetcher.content["https://example.test/a.jar"] = "hello world"
	statePath := filepath.Join(root, "creel.state")

	installer := &creelinstall.Installer{
		Root: root, StatePath: statePath, Workers: 2,
		Algorithm: creeldigest.SHA1, Fetcher: fetcher,
	}
	planned := []*creelartifact.Artifact{
		{FilePath: "g/a/1/a.jar", SourceURL: "https://example.test/a.jar"},
	}
	_, err := installer.Run(context.Background(), planned)
	require.NoError(t, err)
	require.Equal(t, 1, fetcher.calls["https://example.test/a.jar"])

	// Second run: nothing changed remotely, should not refetch.
	planned2 := []*creelartifact.Artifact{
		{FilePath: "g/a/1/a.jar", SourceURL: "https://example.test/a.jar"},
	}
	summary, err := installer.Run(context.Background(), planned2)
	require.NoError(t, err)
	require.Empty(t, summary.Installed)
	require.Len(t, summary.Kept, 1)
	require.Equal(t, 1, fetcher.calls["https://example.test/a.jar"])
}

func TestRunPreservesVolatileFileContent(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "conf"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "conf/settings.xml"), []byte("user edits"), 0o644))

	fetcher := newFetcher()
	fetcher.content["https://example.test/settings.xml"] = "default content"

	installer := &creelinstall.Installer{
		Root: root, StatePath: filepath.Join(root, "creel.state"), Workers: 1,
		Algorithm: creeldigest.SHA1, Fetcher: fetcher,
	}
	planned := []*creelartifact.Artifact{
		{FilePath: "conf/settings.xml", SourceURL: "https://example.test/settings.xml", Volatile: true},
	}
	summary, err := installer.Run(context.Background(), planned)
	require.NoError(t, err)
	require.Len(t, summary.Installed, 1)

	data, err := os.ReadFile(filepath.Join(root, "conf/settings.xml"))
	require.NoError(t, err)
	require.Equal(t, "user edits", string(data))
	require.Zero(t, fetcher.calls["https://example.test/settings.xml"])
}

func TestRunRemovesOrphanedArtifacts(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "g/old/1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "g/old/1/old.jar"), []byte("stale"), 0o644))

	statePath := filepath.Join(root, "creel.state")
	fetcher := newFetcher()
	fetcher.content["https://example.test/old.jar"] = "stale"

	installer := &creelinstall.Installer{
		Root: root, StatePath: statePath, Workers: 1,
		Algorithm: creeldigest.SHA1, Fetcher: fetcher,
	}
	_, err := installer.Run(context.Background(), []*creelartifact.Artifact{
		{FilePath: "g/old/1/old.jar", SourceURL: "https://example.test/old.jar"},
	})
	require.NoError(t, err)

	// Second run with an empty plan: old.jar is now orphaned.
	summary, err := installer.Run(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, summary.Removed, 1)
	_, statErr := os.Stat(filepath.Join(root, "g/old/1/old.jar"))
	require.True(t, os.IsNotExist(statErr))
}

func TestRunRetriesTransientFailureThenSucceeds(t *testing.T) {
	root := t.TempDir()
	fetcher := newFetcher()
	fetcher.content["https://example.test/a.jar"] = "content"
	fetcher.fails["https://example.test/a.jar"] = 2

	installer := &creelinstall.Installer{
		Root: root, StatePath: filepath.Join(root, "creel.state"), Workers: 1,
		Algorithm: creeldigest.SHA1, Fetcher: fetcher,
	}
	summary, err := installer.Run(context.Background(), []*creelartifact.Artifact{
		{FilePath: "g/a/1/a.jar", SourceURL: "https://example.test/a.jar"},
	})
	require.NoError(t, err)
	require.Len(t, summary.Installed, 1)
	require.Empty(t, summary.Failed)
}

func TestRunRetriesTransientFailureThenSucceedsCountsRetries(t *testing.T) {
	root := t.TempDir()
	fetcher := newFetcher()
	fetcher.content["https://example.test/a.jar"] = "content"
	fetcher.fails["https://example.test/a.jar"] = 2

	installer := &creelinstall.Installer{
		Root: root, StatePath: filepath.Join(root, "creel.state"), Workers: 1,
		Algorithm: creeldigest.SHA1, Fetcher: fetcher,
	}
	summary, err := installer.Run(context.Background(), []*creelartifact.Artifact{
		{FilePath: "g/a/1/a.jar", SourceURL: "https://example.test/a.jar"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, summary.Retries)
}

func TestRunConsultsCacheByDigestBeforeRefetching(t *testing.T) {
	root := t.TempDir()
	statePath := filepath.Join(root, "creel.state")
	fetcher := newFetcher()
	fetcher.content["https://example.test/a.jar"] = "hello world"

	cache, err := creelcache.New(t.TempDir(), creeldigest.SHA1)
	require.NoError(t, err)

	installer := &creelinstall.Installer{
		Root: root, StatePath: statePath, Workers: 1,
		Algorithm: creeldigest.SHA1, Fetcher: fetcher, Cache: cache,
	}
	planned := []*creelartifact.Artifact{
		{FilePath: "g/a/1/a.jar", SourceURL: "https://example.test/a.jar"},
	}
	summary, err := installer.Run(context.Background(), planned)
	require.NoError(t, err)
	require.Len(t, summary.Installed, 1)
	require.Equal(t, 0, summary.CacheHits)
	require.Equal(t, 1, summary.CacheMisses)

	// Delete the installed file without touching persisted state, so the
	// next plan sees it as missing but with a known prior digest: the
	// cache, not the fetcher, should serve the content this time.
	require.NoError(t, os.Remove(filepath.Join(root, "g/a/1/a.jar")))

	summary2, err := installer.Run(context.Background(), planned)
	require.NoError(t, err)
	require.Len(t, summary2.Installed, 1)
	require.Equal(t, 1, summary2.CacheHits)
	require.Equal(t, 1, fetcher.calls["https://example.test/a.jar"])

	data, err := os.ReadFile(filepath.Join(root, "g/a/1/a.jar"))
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))
}

func TestRunReportsPersistentFailureWithoutAbortingOthers(t *testing.T) {
	root := t.TempDir()
	fetcher := newFetcher()
	fetcher.content["https://example.test/good.jar"] = "fine"
	// No content registered for bad.jar: Fetch always 404s.

	installer := &creelinstall.Installer{
		Root: root, StatePath: filepath.Join(root, "creel.state"), Workers: 2,
		Algorithm: creeldigest.SHA1, Fetcher: fetcher,
	}
	summary, err := installer.Run(context.Background(), []*creelartifact.Artifact{
		{FilePath: "g/good/1/good.jar", SourceURL: "https://example.test/good.jar"},
		{FilePath: "g/bad/1/bad.jar", SourceURL: "https://example.test/bad.jar"},
	})
	require.NoError(t, err)
	require.Len(t, summary.Installed, 1)
	require.Len(t, summary.Failed, 1)
	require.Equal(t, "g/bad/1/bad.jar", summary.Failed[0].Artifact.FilePath)
}
