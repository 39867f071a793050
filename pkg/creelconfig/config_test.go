package creelconfig_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mmilitzer/creel/pkg/creelconflict"
	"github.com/mmilitzer/creel/pkg/creelconfig"
)

const sample = `
root = "vendor"
state_file = "creel.state"
cache_dir = "vendor/.cache"
workers = 8
conflict_policy = "EXPLICIT_WINS"

[[repositories]]
id = "central"
type = "http"
  [repositories.options]
  base_url = "https://repo.example.test"

[[modules]]
repository_type = "http"
group = "com.example"
name = "libfoo"
version = "*"

[[exclusions]]
repository_type = "http"
group = "com.example"
name = "libdebug"
version = "*"
`

func TestLoadDecodesAndAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "creel.toml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	cfg, err := creelconfig.Load(path)
	require.NoError(t, err)
	require.Equal(t, "vendor", cfg.Root)
	require.Equal(t, "vendor/.cache", cfg.CacheDir)
	require.Equal(t, 8, cfg.Workers)
	require.Len(t, cfg.Repositories, 1)
	require.Equal(t, "https://repo.example.test", cfg.Repositories[0].Options["base_url"])
	require.Len(t, cfg.Modules, 1)
	require.Len(t, cfg.Exclusions, 1)
	// digest_algorithm is absent from sample, so Load's default applies.
	require.Equal(t, "sha1", cfg.DigestAlgo)

	policy, err := cfg.Policy()
	require.NoError(t, err)
	require.Equal(t, creelconflict.ExplicitWins, policy)
}

func TestLoadAppliesDefaultsWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "creel.toml")
	require.NoError(t, os.WriteFile(path, []byte(`root = "vendor"`), 0o644))

	cfg, err := creelconfig.Load(path)
	require.NoError(t, err)
	require.Equal(t, 0, cfg.Workers)
	require.Empty(t, cfg.CacheDir)
	require.Equal(t, "NEWEST", cfg.ConflictPolicy)
	require.Equal(t, "creel.state", cfg.StateFile)

	policy, err := cfg.Policy()
	require.NoError(t, err)
	require.Equal(t, creelconflict.Newest, policy)
}

func TestPolicyRejectsUnknownValue(t *testing.T) {
	cfg := &creelconfig.Config{ConflictPolicy: "BOGUS"}
	_, err := cfg.Policy()
	require.Error(t, err)
}
