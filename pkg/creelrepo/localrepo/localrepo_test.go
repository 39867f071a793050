package localrepo_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mmilitzer/creel/pkg/creelmodule"
	"github.com/mmilitzer/creel/pkg/creelrepo/localrepo"
)

func writeManifest(t *testing.T, root, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, "manifest.toml"), []byte(content), 0o644))
}

func TestGetModuleResolvesHighestMatchingVersion(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, `
[[modules]]
group = "com.example"
name = "libfoo"
version = "1.0.0"
artifacts = ["libfoo-1.0.0.jar"]

[[modules]]
group = "com.example"
name = "libfoo"
version = "1.2.0"
dependencies = ["com.example/libbar@*"]
artifacts = ["libfoo-1.2.0.jar"]
`)
	repo, err := localrepo.New("repo-1", root)
	require.NoError(t, err)

	spec := creelmodule.NewSpecification(localrepo.Technology, "com.example", "libfoo", "*")
	resolved, err := repo.GetModule(context.Background(), spec)
	require.NoError(t, err)
	require.NotNil(t, resolved)
	require.Equal(t, "1.2.0", resolved.Identifier.Version())
	require.Len(t, resolved.Dependencies, 1)
	require.Equal(t, "com.example/libbar", resolved.Dependencies[0].(interface{ GroupName() string }).GroupName())
}

func TestGetModuleReturnsNilForNonMatchingSpec(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, `
[[modules]]
group = "com.example"
name = "libfoo"
version = "1.0.0"
artifacts = ["libfoo-1.0.0.jar"]
`)
	repo, err := localrepo.New("repo-1", root)
	require.NoError(t, err)

	spec := creelmodule.NewSpecification(localrepo.Technology, "com.example", "nonexistent", "*")
	resolved, err := repo.GetModule(context.Background(), spec)
	require.NoError(t, err)
	require.Nil(t, resolved)
}

func TestGetArtifactsSortedAndFetchable(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, `
[[modules]]
group = "com.example"
name = "libfoo"
version = "1.0.0"
artifacts = ["libfoo-1.0.0.jar", "libfoo-1.0.0-sources.jar"]
`)
	moduleDir := filepath.Join(root, "com.example", "libfoo", "1.0.0")
	require.NoError(t, os.MkdirAll(moduleDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(moduleDir, "libfoo-1.0.0.jar"), []byte("binary"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(moduleDir, "libfoo-1.0.0-sources.jar"), []byte("sources"), 0o644))

	repo, err := localrepo.New("repo-1", root)
	require.NoError(t, err)

	identifier := creelmodule.NewIdentifier(repo, "com.example", "libfoo", "1.0.0")
	artifacts, err := repo.GetArtifacts(context.Background(), identifier)
	require.NoError(t, err)
	require.Len(t, artifacts, 2)
	require.Equal(t, "com.example/libfoo/1.0.0/libfoo-1.0.0-sources.jar", artifacts[0].FilePath)

	var fetcher localrepo.Fetcher
	rc, err := fetcher.Fetch(context.Background(), artifacts[0].SourceURL)
	require.NoError(t, err)
	defer rc.Close()
}
