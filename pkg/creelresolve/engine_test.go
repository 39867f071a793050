package creelresolve_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mmilitzer/creel/pkg/creelartifact"
	"github.com/mmilitzer/creel/pkg/creelmodule"
	"github.com/mmilitzer/creel/pkg/creelresolve"
)

// fakeRepository resolves specs from a fixed map of group/name -> (version,
// dependency group/names), simulating a single in-memory repository.
type fakeRepository struct {
	id    string
	table map[string]fakeEntry
}

type fakeEntry struct {
	version string
	deps    []string // "group/name" pairs
}

func (f *fakeRepository) ID() string         { return f.id }
func (f *fakeRepository) Technology() string { return "fake" }

func (f *fakeRepository) GetModule(_ context.Context, spec creelmodule.Specification) (*creelmodule.ResolvedModule, error) {
	simple, ok := spec.(interface{ GroupName() string })
	if !ok {
		return nil, nil
	}
	entry, ok := f.table[simple.GroupName()]
	if !ok {
		return nil, nil
	}
	id := creelmodule.NewIdentifier(f, groupOf(simple.GroupName()), nameOf(simple.GroupName()), entry.version)
	var deps []creelmodule.Specification
	for _, gn := range entry.deps {
		deps = append(deps, creelmodule.NewSpecification("fake", groupOf(gn), nameOf(gn), "*"))
	}
	return &creelmodule.ResolvedModule{Identifier: id, Dependencies: deps}, nil
}

func (f *fakeRepository) GetArtifacts(_ context.Context, _ creelmodule.Identifier) ([]*creelartifact.Artifact, error) {
	return nil, nil
}

func groupOf(gn string) string {
	for i, r := range gn {
		if r == '/' {
			return gn[:i]
		}
	}
	return gn
}

func nameOf(gn string) string {
	for i, r := range gn {
		if r == '/' {
			return gn[i+1:]
		}
	}
	return ""
}

func spec(groupName string) creelmodule.Specification {
	return creelmodule.NewSpecification("fake", groupOf(groupName), nameOf(groupName), "*")
}

func TestLinearChainIdentifiesAllThree(t *testing.T) {
	repo := &fakeRepository{id: "r1", table: map[string]fakeEntry{
		"g/a": {version: "1", deps: []string{"g/b"}},
		"g/b": {version: "1", deps: []string{"g/c"}},
		"g/c": {version: "1"},
	}}
	graph := creelmodule.NewGraph()
	graph.AddModule(spec("g/a"), true)

	engine := creelresolve.NewEngine(graph, []creelmodule.Repository{repo})
	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Identified, 3)
	require.Empty(t, result.Unresolved)
}

func TestCycleTerminates(t *testing.T) {
	repo := &fakeRepository{id: "r1", table: map[string]fakeEntry{
		"g/a": {version: "1", deps: []string{"g/b"}},
		"g/b": {version: "1", deps: []string{"g/a"}},
	}}
	graph := creelmodule.NewGraph()
	graph.AddModule(spec("g/a"), true)

	engine := creelresolve.NewEngine(graph, []creelmodule.Repository{repo})
	done := make(chan struct{})
	go func() {
		_, _ = engine.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("identification did not terminate on a cyclic graph")
	}
}

func TestUnresolvedSpecIsReported(t *testing.T) {
	repo := &fakeRepository{id: "r1", table: map[string]fakeEntry{
		"g/a": {version: "1", deps: []string{"g/missing"}},
	}}
	graph := creelmodule.NewGraph()
	graph.AddModule(spec("g/a"), true)

	engine := creelresolve.NewEngine(graph, []creelmodule.Repository{repo})
	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Identified, 1)
	require.Len(t, result.Unresolved, 1)
}

func TestExclusionDropsWholeSubtree(t *testing.T) {
	repo := &fakeRepository{id: "r1", table: map[string]fakeEntry{
		"g/a": {version: "1", deps: []string{"g/b"}},
		"g/b": {version: "1", deps: []string{"g/c"}},
		"g/c": {version: "1"},
	}}
	graph := creelmodule.NewGraph()
	graph.AddModule(spec("g/a"), true)

	engine := creelresolve.NewEngine(graph, []creelmodule.Repository{repo}, creelresolve.WithExclusions([]creelmodule.Specification{spec("g/b")}))
	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Identified, 1)
}

