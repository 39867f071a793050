// Package localrepo implements a Repository backed by a directory on the
// local filesystem: a TOML manifest naming modules and their artifact
// files.
package localrepo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/mmilitzer/creel/pkg/creelartifact"
	"github.com/mmilitzer/creel/pkg/creelmodule"
)

// Technology is the repository type name this plugin registers under.
const Technology = "local"

// manifestModule is one [[modules]] entry in manifest.toml.
type manifestModule struct {
	Group        string   `toml:"group"`
	Name         string   `toml:"name"`
	Version      string   `toml:"version"`
	Dependencies []string `toml:"dependencies"` // "group/name@version"
	Artifacts    []string `toml:"artifacts"`     // file names relative to the module's directory
}

type manifest struct {
	Modules []manifestModule `toml:"modules"`
}

// Repository serves modules out of a directory tree: Root/manifest.toml
// lists modules, and each module's artifacts live at
// Root/<group>/<name>/<version>/<artifact file>.
type Repository struct {
	id       string
	root     string
	manifest manifest
}

// New loads manifest.toml from root and returns a Repository.
func New(id, root string) (*Repository, error) {
	data, err := os.ReadFile(filepath.Join(root, "manifest.toml"))
	if err != nil {
		return nil, fmt.Errorf("localrepo %s: %w", id, err)
	}
	var m manifest
	if _, err := toml.Decode(string(data), &m); err != nil {
		return nil, fmt.Errorf("localrepo %s: parsing manifest: %w", id, err)
	}
	return &Repository{id: id, root: root, manifest: m}, nil
}

// Factory adapts New to creelrepo.Factory's signature, reading "root" out of
// the decoded config map.
func Factory(id string, config map[string]any) (creelmodule.Repository, error) {
	root, _ := config["root"].(string)
	if root == "" {
		return nil, fmt.Errorf("localrepo %s: missing required config key %q", id, "root")
	}
	return New(id, root)
}

func (r *Repository) ID() string         { return r.id }
func (r *Repository) Technology() string { return Technology }

// GetModule scans the manifest for an entry matching spec, preferring the
// highest version when more than one satisfies it.
func (r *Repository) GetModule(_ context.Context, spec creelmodule.Specification) (*creelmodule.ResolvedModule, error) {
	if spec.RepositoryType() != Technology {
		return nil, nil
	}
	var best *manifestModule
	var bestIdentifier creelmodule.Identifier
	for i := range r.manifest.Modules {
		candidate := &r.manifest.Modules[i]
		identifier := creelmodule.NewIdentifier(r, candidate.Group, candidate.Name, candidate.Version)
		if !spec.AllowsIdentifier(identifier) {
			continue
		}
		if best == nil {
			best, bestIdentifier = candidate, identifier
			continue
		}
		ordering, err := identifier.Compare(bestIdentifier)
		if err == nil && ordering == creelmodule.Greater {
			best, bestIdentifier = candidate, identifier
		}
	}
	if best == nil {
		return nil, nil
	}
	deps := make([]creelmodule.Specification, 0, len(best.Dependencies))
	for _, dep := range best.Dependencies {
		group, name, versionRange, err := splitCoordinate(dep)
		if err != nil {
			return nil, fmt.Errorf("localrepo %s: module %s/%s@%s: %w", r.id, best.Group, best.Name, best.Version, err)
		}
		deps = append(deps, creelmodule.NewSpecification(Technology, group, name, versionRange))
	}
	return &creelmodule.ResolvedModule{Identifier: bestIdentifier, Dependencies: deps}, nil
}

// GetArtifacts lists the files for identifier's module directory, sorted by
// file name for determinism.
func (r *Repository) GetArtifacts(_ context.Context, identifier creelmodule.Identifier) ([]*creelartifact.Artifact, error) {
	var match *manifestModule
	for i := range r.manifest.Modules {
		candidate := &r.manifest.Modules[i]
		if candidate.Group+"/"+candidate.Name == identifier.GroupName() && candidate.Version == identifier.Version() {
			match = candidate
			break
		}
	}
	if match == nil {
		return nil, fmt.Errorf("localrepo %s: no module matching %s", r.id, identifier)
	}
	moduleDir := filepath.Join(match.Group, match.Name, match.Version)
	names := append([]string(nil), match.Artifacts...)
	sort.Strings(names)

	out := make([]*creelartifact.Artifact, 0, len(names))
	for _, name := range names {
		sourcePath := filepath.Join(r.root, moduleDir, name)
		out = append(out, &creelartifact.Artifact{
			FilePath:  filepath.ToSlash(filepath.Join(moduleDir, name)),
			SourceURL: "file://" + filepath.ToSlash(sourcePath),
		})
	}
	return out, nil
}

func splitCoordinate(coordinate string) (group, name, versionRange string, err error) {
	groupName, version, ok := cutLast(coordinate, '@')
	if !ok {
		return "", "", "", fmt.Errorf("malformed dependency coordinate %q: missing @version", coordinate)
	}
	group, name, ok = cutLast(groupName, '/')
	if !ok {
		return "", "", "", fmt.Errorf("malformed dependency coordinate %q: missing group/name", coordinate)
	}
	return group, name, version, nil
}

// cutLast splits s at the last occurrence of sep, unlike strings.Cut which
// splits at the first; group names may themselves contain '/'.
func cutLast(s string, sep byte) (before, after string, found bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == sep {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}
