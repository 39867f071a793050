// Package httprepo implements a Repository backed by a remote HTTP(S)
// artifact server: requests are authenticated via netrc and bodies are
// gzip-aware, scoped down to this engine's simpler module-index format.
package httprepo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/mmilitzer/creel/internal/netrcauth"
	"github.com/mmilitzer/creel/pkg/creelartifact"
	"github.com/mmilitzer/creel/pkg/creelmodule"
)

// Technology is the repository type name this plugin registers under.
const Technology = "http"

// indexEntry is one module entry in the repository's /index.json document.
type indexEntry struct {
	Group        string   `json:"group"`
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Dependencies []string `json:"dependencies"` // "group/name@version"
	Artifacts    []struct {
		File string `json:"file"`
		URL  string `json:"url"`
	} `json:"artifacts"`
}

// Repository queries a remote index document once at construction and
// serves GetModule/GetArtifacts from the cached result: a single upfront
// metadata fetch followed by on-demand blob fetches.
type Repository struct {
	id      string
	baseURL string
	client  *http.Client
	netrc   string
	entries []indexEntry
}

// New fetches baseURL+"/index.json" and returns a Repository serving it.
// netrcPath, if non-empty, supplies credentials for both the index and
// artifact requests via internal/netrcauth.
func New(ctx context.Context, id, baseURL, netrcPath string, client *http.Client) (*Repository, error) {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	repo := &Repository{id: id, baseURL: baseURL, client: client, netrc: netrcPath}

	indexURL := baseURL + "/index.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, indexURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept-Encoding", "gzip")
	if netrcPath != "" {
		if _, err := netrcauth.SetAuth(req, netrcPath); err != nil {
			return nil, fmt.Errorf("httprepo %s: netrc auth: %w", id, err)
		}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httprepo %s: fetching index: %w", id, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("httprepo %s: index request returned %s", id, resp.Status)
	}

	body := resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("httprepo %s: decompressing index: %w", id, err)
		}
		defer gz.Close()
		body = gz
	}

	var entries []indexEntry
	if err := json.NewDecoder(body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("httprepo %s: decoding index: %w", id, err)
	}
	repo.entries = entries
	return repo, nil
}

// Factory adapts New to creelrepo.Factory's signature. config may supply
// "base_url", "netrc_path", and "timeout_seconds".
func Factory(ctx context.Context) func(id string, config map[string]any) (creelmodule.Repository, error) {
	return func(id string, config map[string]any) (creelmodule.Repository, error) {
		baseURL, _ := config["base_url"].(string)
		if baseURL == "" {
			return nil, fmt.Errorf("httprepo %s: missing required config key %q", id, "base_url")
		}
		netrcPath, _ := config["netrc_path"].(string)
		var timeout time.Duration
		switch seconds := config["timeout_seconds"].(type) {
		case int64:
			timeout = time.Duration(seconds) * time.Second
		case float64:
			timeout = time.Duration(seconds * float64(time.Second))
		}
		var client *http.Client
		if timeout > 0 {
			client = &http.Client{Timeout: timeout}
		}
		return New(ctx, id, baseURL, netrcPath, client)
	}
}

func (r *Repository) ID() string         { return r.id }
func (r *Repository) Technology() string { return Technology }

// GetModule scans the cached index for the highest version matching spec.
func (r *Repository) GetModule(_ context.Context, spec creelmodule.Specification) (*creelmodule.ResolvedModule, error) {
	if spec.RepositoryType() != Technology {
		return nil, nil
	}
	var best *indexEntry
	var bestIdentifier creelmodule.Identifier
	for i := range r.entries {
		candidate := &r.entries[i]
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
			return nil, fmt.Errorf("httprepo %s: %w", r.id, err)
		}
		deps = append(deps, creelmodule.NewSpecification(Technology, group, name, versionRange))
	}
	return &creelmodule.ResolvedModule{Identifier: bestIdentifier, Dependencies: deps}, nil
}

// GetArtifacts returns the artifact list for identifier's matching index
// entry, with absolute URLs resolved against baseURL if the entry's URL is
// relative, sorted by file path for determinism.
func (r *Repository) GetArtifacts(_ context.Context, identifier creelmodule.Identifier) ([]*creelartifact.Artifact, error) {
	var match *indexEntry
	for i := range r.entries {
		candidate := &r.entries[i]
		if candidate.Group+"/"+candidate.Name == identifier.GroupName() && candidate.Version == identifier.Version() {
			match = candidate
			break
		}
	}
	if match == nil {
		return nil, fmt.Errorf("httprepo %s: no module matching %s", r.id, identifier)
	}
	out := make([]*creelartifact.Artifact, 0, len(match.Artifacts))
	for _, a := range match.Artifacts {
		resolved, err := r.resolveURL(a.URL)
		if err != nil {
			return nil, fmt.Errorf("httprepo %s: %w", r.id, err)
		}
		out = append(out, &creelartifact.Artifact{FilePath: a.File, SourceURL: resolved})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FilePath < out[j].FilePath })
	return out, nil
}

func (r *Repository) resolveURL(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if parsed.IsAbs() {
		return raw, nil
	}
	base, err := url.Parse(r.baseURL)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(parsed).String(), nil
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

func cutLast(s string, sep byte) (before, after string, found bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == sep {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}
