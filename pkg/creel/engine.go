// Package creel is the top-level facade wiring the identification engine,
// conflict resolver, and artifact installer into the single blocking
// run() operation hosts consume.
package creel

import (
	"context"
	"fmt"

	"github.com/mmilitzer/creel/pkg/creelartifact"
	"github.com/mmilitzer/creel/pkg/creelcache"
	"github.com/mmilitzer/creel/pkg/creelconflict"
	"github.com/mmilitzer/creel/pkg/creeldigest"
	"github.com/mmilitzer/creel/pkg/creelinstall"
	"github.com/mmilitzer/creel/pkg/creelmodule"
	"github.com/mmilitzer/creel/pkg/creelresolve"
)

// Engine accumulates a run's configuration via its add*/set* methods, then
// executes the full pipeline in Run.
type Engine struct {
	graph          *creelmodule.Graph
	repositories   []creelmodule.Repository
	exclusions     []creelmodule.Specification
	conflictPolicy creelconflict.Policy
	root           string
	stateFile      string
	cacheDir       string
	workers        int
	overwrite      bool
	algorithm      creeldigest.Algorithm
	fetcher        creelartifact.Fetcher
	notifier       creelresolve.Notifier
}

// New returns an Engine with NEWEST conflict policy and SHA1 digests by
// default. The worker pool defaults to the logical CPU count (workers left
// at 0, resolved by creelresolve.NewEngine and thread.Parallelize) unless
// SetWorkers is called with a positive value.
func New() *Engine {
	return &Engine{
		graph:          creelmodule.NewGraph(),
		conflictPolicy: creelconflict.Newest,
		algorithm:      creeldigest.SHA1,
		notifier:       creelresolve.NopNotifier(),
	}
}

// AddModuleSpecification adds an explicit (root) or transitive specification
// to the graph.
func (e *Engine) AddModuleSpecification(spec creelmodule.Specification, explicit bool) {
	e.graph.AddModule(spec, explicit)
}

// AddRepository registers a repository, consulted in declared order.
func (e *Engine) AddRepository(repository creelmodule.Repository) {
	e.repositories = append(e.repositories, repository)
}

// AddExclusion adds a specification to the exclusion list.
func (e *Engine) AddExclusion(spec creelmodule.Specification) {
	e.exclusions = append(e.exclusions, spec)
}

// SetConflictPolicy chooses the policy Resolve uses to pick among
// conflicting versions.
func (e *Engine) SetConflictPolicy(policy creelconflict.Policy) { e.conflictPolicy = policy }

// SetRoot sets the installer's root directory.
func (e *Engine) SetRoot(path string) { e.root = path }

// SetStateFile sets the persisted state file path.
func (e *Engine) SetStateFile(path string) { e.stateFile = path }

// SetCacheDir sets the directory backing the digest-keyed blob cache Run
// consults before fetching and populates after. Left empty, Run installs
// without a cache: every artifact is fetched fresh.
func (e *Engine) SetCacheDir(path string) { e.cacheDir = path }

// SetWorkers sets both the identification and installation worker pool
// sizes.
func (e *Engine) SetWorkers(workers int) { e.workers = workers }

// SetOverwrite forces reinstall of every chosen artifact regardless of
// diff state.
func (e *Engine) SetOverwrite(overwrite bool) { e.overwrite = overwrite }

// SetAlgorithm sets the digest algorithm used for artifact verification.
func (e *Engine) SetAlgorithm(algorithm creeldigest.Algorithm) { e.algorithm = algorithm }

// SetFetcher sets the Fetcher used to download artifact content. Required
// before Run if any chosen module has artifacts to install.
func (e *Engine) SetFetcher(fetcher creelartifact.Fetcher) { e.fetcher = fetcher }

// SetNotifier sets the Notifier used across identification, conflict
// resolution, and installation.
func (e *Engine) SetNotifier(notifier creelresolve.Notifier) { e.notifier = notifier }

// RunResult is the outcome of one full pipeline run.
type RunResult struct {
	Identified []*creelmodule.Module
	Unresolved []*creelmodule.Module
	Chosen     []*creelmodule.Module
	Install    *creelinstall.Summary
}

// Resolve runs identification and conflict resolution only, without
// installing artifacts: useful for a host that wants to preview what Run
// would fetch.
func (e *Engine) Resolve(ctx context.Context) (*RunResult, error) {
	options := []creelresolve.Option{
		creelresolve.WithNotifier(e.notifier),
		creelresolve.WithExclusions(e.exclusions),
	}
	if e.workers > 0 {
		options = append(options, creelresolve.WithWorkers(e.workers))
	}
	resolveEngine := creelresolve.NewEngine(e.graph, e.repositories, options...)
	identification, err := resolveEngine.Run(ctx)
	if err != nil {
		return nil, err
	}

	conflicts := creelconflict.Detect(identification.Identified)
	chosenFromConflicts := creelconflict.Resolve(e.graph, conflicts, e.conflictPolicy, e.notifier)

	chosen := chosenSet(identification.Identified, conflicts, chosenFromConflicts)

	if len(identification.Unresolved) > 0 {
		return &RunResult{Identified: identification.Identified, Unresolved: identification.Unresolved, Chosen: chosen},
			&UnresolvedError{Count: len(identification.Unresolved)}
	}
	return &RunResult{Identified: identification.Identified, Chosen: chosen}, nil
}

// Run executes identification, conflict resolution, and installation in
// sequence, blocking until the whole pipeline completes or ctx is
// cancelled.
func (e *Engine) Run(ctx context.Context) (*RunResult, error) {
	if _, err := creeldigest.NewHash(e.algorithm); err != nil {
		return nil, err
	}

	result, err := e.Resolve(ctx)
	if err != nil {
		return result, err
	}
	chosen := result.Chosen

	artifactLists := make([][]*creelartifact.Artifact, 0, len(chosen))
	for _, module := range chosen {
		artifacts, err := module.Identifier().Repository().(artifactLister).GetArtifacts(ctx, module.Identifier())
		if err != nil {
			return nil, fmt.Errorf("fetching artifact list for %s: %w", module.Identifier(), err)
		}
		artifactLists = append(artifactLists, artifacts)
	}
	planned, err := creelinstall.Plan(artifactLists)
	if err != nil {
		return nil, err
	}

	var cache *creelcache.Cache
	if e.cacheDir != "" {
		cache, err = creelcache.New(e.cacheDir, e.algorithm)
		if err != nil {
			return nil, fmt.Errorf("opening blob cache: %w", err)
		}
	}

	installer := &creelinstall.Installer{
		Root:      e.root,
		StatePath: e.stateFile,
		Workers:   e.workers,
		Overwrite: e.overwrite,
		Algorithm: e.algorithm,
		Fetcher:   e.fetcher,
		Notifier:  e.notifier,
		Cache:     cache,
	}
	summary, err := installer.Run(ctx, planned)
	if err != nil {
		return nil, err
	}

	return &RunResult{
		Identified: result.Identified,
		Chosen:     chosen,
		Install:    summary,
	}, nil
}

// artifactLister is the subset of creelmodule.Repository Run needs once it
// only has an Identifier in hand (every Repository implementation
// satisfies this; the assertion exists only to avoid importing the
// concrete repository packages here).
type artifactLister interface {
	GetArtifacts(ctx context.Context, identifier creelmodule.Identifier) ([]*creelartifact.Artifact, error)
}

// chosenSet is every identified module minus conflict losers, replaced by
// conflict winners where applicable.
func chosenSet(identified []*creelmodule.Module, conflicts []*creelconflict.Conflict, winners []*creelmodule.Module) []*creelmodule.Module {
	losers := map[int]bool{}
	for _, conflict := range conflicts {
		for _, member := range conflict.Members {
			losers[member.ID()] = true
		}
	}
	for _, winner := range winners {
		delete(losers, winner.ID())
	}
	out := make([]*creelmodule.Module, 0, len(identified))
	for _, module := range identified {
		if losers[module.ID()] {
			continue
		}
		out = append(out, module)
	}
	return out
}

// UnresolvedError is creel's UnresolvedModule error kind: one
// or more explicit or transitive specifications could not be satisfied.
type UnresolvedError struct {
	Count int
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("%d module(s) could not be resolved", e.Count)
}
