// Package creelconfig loads the TOML configuration file describing an
// engine run: repositories, module specifications, exclusions, and the
// conflict policy, decoded straight into typed, validated config structs
// rather than a generic map walked by hand.
package creelconfig

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/mmilitzer/creel/pkg/creelconflict"
	"github.com/mmilitzer/creel/pkg/creeldigest"
)

// RepositoryConfig is one [[repositories]] entry.
type RepositoryConfig struct {
	ID      string         `toml:"id"`
	Type    string         `toml:"type"`
	Options map[string]any `toml:"options"`
}

// SpecificationConfig is one [[modules]] or [[exclusions]] entry.
type SpecificationConfig struct {
	RepositoryType string `toml:"repository_type"`
	Group          string `toml:"group"`
	Name           string `toml:"name"`
	VersionRange   string `toml:"version"`
}

// Config is the full decoded contents of a creel.toml file.
type Config struct {
	Root           string                `toml:"root"`
	StateFile      string                `toml:"state_file"`
	CacheDir       string                `toml:"cache_dir"`
	Workers        int                   `toml:"workers"`
	Overwrite      bool                  `toml:"overwrite"`
	ConflictPolicy string                `toml:"conflict_policy"`
	DigestAlgo     string                `toml:"digest_algorithm"`
	Repositories   []RepositoryConfig    `toml:"repositories"`
	Modules        []SpecificationConfig `toml:"modules"`
	Exclusions     []SpecificationConfig `toml:"exclusions"`
}

// Load decodes path into a Config, applying defaults for ConflictPolicy and
// DigestAlgo when absent. Workers is left at 0 when absent or non-positive,
// which creel.Engine resolves to the logical CPU count rather than a fixed
// pool size. CacheDir has no default: left empty, installs run without a
// blob cache.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("creelconfig: %w", err)
	}
	if cfg.Workers < 0 {
		cfg.Workers = 0
	}
	if cfg.ConflictPolicy == "" {
		cfg.ConflictPolicy = "NEWEST"
	}
	if cfg.DigestAlgo == "" {
		cfg.DigestAlgo = string(creeldigest.SHA1)
	}
	if cfg.StateFile == "" {
		cfg.StateFile = "creel.state"
	}
	return &cfg, nil
}

// Policy parses ConflictPolicy into a creelconflict.Policy.
func (c *Config) Policy() (creelconflict.Policy, error) {
	switch c.ConflictPolicy {
	case "NEWEST":
		return creelconflict.Newest, nil
	case "OLDEST":
		return creelconflict.Oldest, nil
	case "EXPLICIT_WINS":
		return creelconflict.ExplicitWins, nil
	default:
		return 0, fmt.Errorf("creelconfig: unknown conflict_policy %q", c.ConflictPolicy)
	}
}

// Algorithm parses DigestAlgo into a creeldigest.Algorithm.
func (c *Config) Algorithm() creeldigest.Algorithm {
	return creeldigest.Algorithm(c.DigestAlgo)
}
