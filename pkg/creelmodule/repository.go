package creelmodule

import (
	"context"

	"github.com/mmilitzer/creel/pkg/creelartifact"
)

// ResolvedModule is what a Repository hands back for a Specification it can
// satisfy: a concrete Identifier plus the specifications of its direct
// dependencies. It is intentionally not graph-bound (unlike Module): a
// Repository has no business knowing about the identification engine's
// arena of ids, only about resolving one spec at a time.
type ResolvedModule struct {
	Identifier   Identifier
	Dependencies []Specification
}

// Repository is the external adapter the identification engine and
// installer consult. Implementations are plugins loaded by logical name
// (see pkg/creelrepo); GetModule must be safe to call concurrently from
// many identification workers.
type Repository interface {
	// ID is a stable string identifying this repository instance. It does
	// not take part in choosing among repositories that could resolve the
	// same specification: declared order decides that (§4.C step 2).
	ID() string
	// Technology names the repository's plugin type (e.g. "local", "http"),
	// matched against Specification.RepositoryType() to route a spec only
	// to repositories that could plausibly resolve it.
	Technology() string
	// GetModule resolves spec to a ResolvedModule, or returns (nil, nil) if
	// this repository has nothing matching spec.
	GetModule(ctx context.Context, spec Specification) (*ResolvedModule, error)
	// GetArtifacts returns the artifact set the given identified version
	// materializes to on disk.
	GetArtifacts(ctx context.Context, identifier Identifier) ([]*creelartifact.Artifact, error)
}
