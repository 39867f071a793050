package creelresolve

import (
	"context"
	"errors"
	"runtime"

	"go.uber.org/atomic"

	"github.com/mmilitzer/creel/internal/thread"
	"github.com/mmilitzer/creel/pkg/creelmodule"
)

// errMissingLogicalIdentity is wrapped into a MalformedModuleError when a
// repository returns an identifier without a usable group/name key.
var errMissingLogicalIdentity = errors.New("resolved identifier has no logical identity key")

// Engine drives a Graph from explicit specifications to a fully identified
// state. Repository queries within one round run in parallel; integration
// of their results back into the graph is serial, on the caller's
// goroutine, so the graph's invariants never need locking on the hot path.
type Engine struct {
	graph        *creelmodule.Graph
	repositories []creelmodule.Repository // declared order; first match wins
	exclusions   []creelmodule.Specification
	workers      int
	notifier     Notifier
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers sets the identification worker pool size. Default is
// runtime.GOMAXPROCS(0): a configurable pool that defaults to the logical
// CPU count.
func WithWorkers(workers int) Option {
	return func(e *Engine) { e.workers = workers }
}

// WithNotifier sets the Notifier. Default is NopNotifier().
func WithNotifier(notifier Notifier) Option {
	return func(e *Engine) { e.notifier = notifier }
}

// WithExclusions sets the specification exclusion list.
func WithExclusions(exclusions []creelmodule.Specification) Option {
	return func(e *Engine) { e.exclusions = exclusions }
}

// NewEngine returns a new Engine operating on graph, consulting repositories
// in the given declared order.
func NewEngine(graph *creelmodule.Graph, repositories []creelmodule.Repository, options ...Option) *Engine {
	e := &Engine{
		graph:        graph,
		repositories: repositories,
		workers:      runtime.GOMAXPROCS(0),
		notifier:     NopNotifier(),
	}
	for _, option := range options {
		option(e)
	}
	return e
}

// RunResult is the outcome of one identification run.
type RunResult struct {
	// Identified holds one module id per distinct identifier seen, the
	// winner of deduplication within this run.
	Identified []*creelmodule.Module
	// Unresolved holds modules no repository could satisfy.
	Unresolved []*creelmodule.Module
	// UnresolvedReasons holds the cause for each unresolved module id, when
	// known (e.g. a malformed-module error rather than a plain no-match).
	UnresolvedReasons map[int]error
	// Rounds is the number of rounds executed, exposed for observability.
	Rounds int
}

type roundOutcome struct {
	moduleID int
	resolved *creelmodule.ResolvedModule
	err      error
}

// Run drives identification to a fixed point: it queries repositories for
// every unidentified module in the graph, integrates the results, and
// repeats until a round identifies nothing new.
func (e *Engine) Run(ctx context.Context) (*RunResult, error) {
	identifiedByKey := map[string]int{} // identifier.String() -> winning module id
	attempted := map[int]bool{}         // modules we've already queried and will not retry
	var unresolvedIDs []int
	unresolvedReasons := map[int]error{}
	var rounds atomic.Int64

	for {
		select {
		case <-ctx.Done():
			return nil, ErrCancelled
		default:
		}

		e.applyExclusions()

		snapshot := e.snapshotUnidentified(attempted)
		if len(snapshot) == 0 {
			break
		}
		rounds.Inc()

		outcomes := make([]roundOutcome, len(snapshot))
		jobs := make([]func(context.Context) error, len(snapshot))
		for i, moduleID := range snapshot {
			i, moduleID := i, moduleID
			jobs[i] = func(jobCtx context.Context) error {
				module := e.graph.Get(moduleID)
				if module == nil {
					return nil
				}
				resolved, err := e.queryRepositories(jobCtx, module.Specification())
				outcomes[i] = roundOutcome{moduleID: moduleID, resolved: resolved, err: err}
				return nil
			}
		}
		if err := thread.Parallelize(ctx, jobs, e.workers); err != nil {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ErrCancelled
		default:
		}

		for _, outcome := range outcomes {
			attempted[outcome.moduleID] = true
			e.integrate(outcome, identifiedByKey, &unresolvedIDs, unresolvedReasons)
		}
	}

	result := &RunResult{Rounds: int(rounds.Load()), UnresolvedReasons: unresolvedReasons}
	for _, id := range identifiedByKey {
		if module := e.graph.Get(id); module != nil {
			result.Identified = append(result.Identified, module)
		}
	}
	for _, id := range unresolvedIDs {
		if module := e.graph.Get(id); module != nil {
			result.Unresolved = append(result.Unresolved, module)
		}
	}
	return result, nil
}

// queryRepositories consults each repository in declared order, keeping the
// first non-nil result. A transport error from one
// repository is a warning, not fatal; other repositories are still tried.
func (e *Engine) queryRepositories(ctx context.Context, spec creelmodule.Specification) (*creelmodule.ResolvedModule, error) {
	for _, repo := range e.repositories {
		if spec.RepositoryType() != "" && spec.RepositoryType() != repo.Technology() {
			// Repository "technology" tagging: a spec only asks repos of
			// its own declared type, but still in declared order among those.
			continue
		}
		resolved, err := repo.GetModule(ctx, spec)
		if err != nil {
			e.notifier.Warn("repository " + repo.ID() + " query failed for " + spec.String() + ": " + err.Error())
			continue
		}
		if resolved == nil {
			continue
		}
		if resolved.Identifier == nil || resolved.Identifier.GroupName() == "/" {
			return nil, &creelmodule.MalformedModuleError{Spec: spec, Cause: errMissingLogicalIdentity}
		}
		return resolved, nil
	}
	return nil, nil
}

// integrate applies one round's outcome for a single module onto the graph.
// Must only be called from the single serial integration phase.
func (e *Engine) integrate(outcome roundOutcome, identifiedByKey map[string]int, unresolvedIDs *[]int, unresolvedReasons map[int]error) {
	if outcome.err != nil {
		*unresolvedIDs = append(*unresolvedIDs, outcome.moduleID)
		unresolvedReasons[outcome.moduleID] = outcome.err
		return
	}
	if outcome.resolved == nil {
		*unresolvedIDs = append(*unresolvedIDs, outcome.moduleID)
		return
	}
	key := outcome.resolved.Identifier.String()
	if existingID, ok := identifiedByKey[key]; ok && existingID != outcome.moduleID {
		e.graph.MergeSupplicants(existingID, outcome.moduleID)
		e.graph.ReplaceModule(outcome.moduleID, existingID, false)
		return
	}

	e.graph.Identify(outcome.moduleID, outcome.resolved.Identifier)
	identifiedByKey[key] = outcome.moduleID
	for _, depSpec := range outcome.resolved.Dependencies {
		childID := e.graph.AddModule(depSpec, false)
		e.graph.AddDependency(outcome.moduleID, childID)
		e.graph.AddSupplicant(childID, outcome.moduleID)
	}
}

// snapshotUnidentified returns ids of every currently-unidentified module
// not already attempted.
func (e *Engine) snapshotUnidentified(attempted map[int]bool) []int {
	var ids []int
	for _, module := range e.graph.All() {
		if module.Unidentified() && !attempted[module.ID()] {
			ids = append(ids, module.ID())
		}
	}
	return ids
}

// applyExclusions removes any module whose specification is in the
// exclusion list, along with orphaned descendants.
func (e *Engine) applyExclusions() {
	if len(e.exclusions) == 0 {
		return
	}
	for _, module := range e.graph.All() {
		for _, excluded := range e.exclusions {
			if module.Specification().Equal(excluded) {
				e.graph.RemoveSubtree(module.ID())
				break
			}
		}
	}
}
