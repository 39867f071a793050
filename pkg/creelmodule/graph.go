package creelmodule

import "sync"

// Graph is an arena of Modules reachable from an explicit root set: modules
// are addressed by stable integer id, and dependency/supplicant edges are
// held as ids rather than owning references, so ReplaceModule is an O(1) id
// swap in each parent's dependency vector and cycles never leak references.
//
// All mutation happens under a single mutex; the graph is only ever
// mutated during the identification engine's serial integration phase or
// the conflict resolver's serial rewrite, never concurrently with parallel
// repository queries.
type Graph struct {
	mu      sync.Mutex
	modules map[int]*Module
	nextID  int
}

// NewGraph returns an empty Graph.
func NewGraph() *Graph {
	return &Graph{modules: make(map[int]*Module)}
}

// AddModule creates a new unidentified module for spec and returns its id.
func (g *Graph) AddModule(spec Specification, explicit bool) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.nextID
	g.nextID++
	g.modules[id] = &Module{id: id, spec: spec, explicit: explicit}
	return id
}

// Get returns the module with the given id, or nil if absent (e.g. already
// removed by an exclusion or a conflict rewrite).
func (g *Graph) Get(id int) *Module {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.modules[id]
}

// All returns every module currently in the graph, in id order.
func (g *Graph) All() []*Module {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Module, 0, len(g.modules))
	for id := 0; id < g.nextID; id++ {
		if m, ok := g.modules[id]; ok {
			out = append(out, m)
		}
	}
	return out
}

// AddDependency appends child to parent's dependency list (if not already
// present) and leaves back-edges untouched — the identification engine
// decides when to install the symmetric supplicant edge.
func (g *Graph) AddDependency(parentID, childID int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	parent, ok := g.modules[parentID]
	if !ok || parent.hasDependency(childID) {
		return
	}
	parent.dependencyIDs = append(parent.dependencyIDs, childID)
}

// AddSupplicant records parentID as a reverse dependency of childID,
// idempotently.
func (g *Graph) AddSupplicant(childID, parentID int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addSupplicantLocked(childID, parentID)
}

func (g *Graph) addSupplicantLocked(childID, parentID int) {
	child, ok := g.modules[childID]
	if !ok || childID == parentID || child.hasSupplicant(parentID) {
		return
	}
	child.supplicantIDs = append(child.supplicantIDs, parentID)
}

// MergeSupplicants unions from's supplicants into into's, and ORs the
// explicit flag.
func (g *Graph) MergeSupplicants(intoID, fromID int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	into, ok := g.modules[intoID]
	if !ok {
		return
	}
	from, ok := g.modules[fromID]
	if !ok {
		return
	}
	for _, supID := range from.supplicantIDs {
		g.addSupplicantLocked(intoID, supID)
	}
	into.explicit = into.explicit || from.explicit
}

// CopyIdentificationFrom overwrites target's identifier and dependency list
// with source's.
func (g *Graph) CopyIdentificationFrom(targetID, sourceID int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	target, ok := g.modules[targetID]
	if !ok {
		return
	}
	source, ok := g.modules[sourceID]
	if !ok {
		return
	}
	target.identifier = source.identifier
	target.dependencyIDs = append([]int(nil), source.dependencyIDs...)
}

// RewriteSpecifications asks every module's specification to rewrite any
// reference to oldID into newID. Used by the
// conflict resolver after choosing a winner, so specifications that matched
// a rejected version continue to match after the graph points at the
// winner instead.
func (g *Graph) RewriteSpecifications(oldID, newID Identifier) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, module := range g.modules {
		module.spec = module.spec.Rewrite(oldID, newID)
	}
}

// Identify sets id's identifier directly (used by the identification engine
// when a module is resolved for the first time, as opposed to merged into
// an existing one).
func (g *Graph) Identify(id int, identifier Identifier) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if m, ok := g.modules[id]; ok {
		m.identifier = identifier
	}
}

// ReplaceModule substitutes newID for oldID in every dependency list that
// references oldID, adding the owning module as a supplicant of newID. If
// recursive, it then walks newID's dependency closure and, for each
// dependency reached, adds every module that lists it as a dependency to its
// supplicants — guarded by a visited set so cyclic graphs terminate.
func (g *Graph) ReplaceModule(oldID, newID int, recursive bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	visited := map[int]bool{}
	g.replaceModuleLocked(oldID, newID, recursive, visited)
}

func (g *Graph) replaceModuleLocked(oldID, newID int, recursive bool, visited map[int]bool) {
	if visited[oldID] {
		return
	}
	visited[oldID] = true
	for _, candidate := range g.modules {
		if candidate.id == oldID {
			continue
		}
		for i, depID := range candidate.dependencyIDs {
			if depID == oldID {
				candidate.dependencyIDs[i] = newID
				g.addSupplicantLocked(newID, candidate.id)
			}
		}
	}
	if !recursive {
		return
	}
	newModule, ok := g.modules[newID]
	if !ok {
		return
	}
	for _, depID := range newModule.dependencyIDs {
		g.replaceModuleLocked(depID, depID, recursive, visited)
	}
}

// ReachesExplicit reports whether id, or any module reachable by walking
// its supplicant (reverse-dependency) edges, is explicit. Used by the
// EXPLICIT_WINS conflict policy.
func (g *Graph) ReachesExplicit(id int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	visited := map[int]bool{}
	queue := []int{id}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if visited[current] {
			continue
		}
		visited[current] = true
		module, ok := g.modules[current]
		if !ok {
			continue
		}
		if module.explicit {
			return true
		}
		queue = append(queue, module.supplicantIDs...)
	}
	return false
}

// RemoveSubtree deletes id from the graph, and recursively deletes any
// dependency that is left with no remaining supplicant and is not itself
// explicit.
func (g *Graph) RemoveSubtree(id int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeSubtreeLocked(id, map[int]bool{})
}

func (g *Graph) removeSubtreeLocked(id int, visited map[int]bool) {
	if visited[id] {
		return
	}
	visited[id] = true
	module, ok := g.modules[id]
	if !ok {
		return
	}
	deps := module.dependencyIDs
	delete(g.modules, id)
	for _, other := range g.modules {
		filtered := other.dependencyIDs[:0]
		for _, depID := range other.dependencyIDs {
			if depID != id {
				filtered = append(filtered, depID)
			}
		}
		other.dependencyIDs = filtered
		filteredSup := other.supplicantIDs[:0]
		for _, supID := range other.supplicantIDs {
			if supID != id {
				filteredSup = append(filteredSup, supID)
			}
		}
		other.supplicantIDs = filteredSup
	}
	for _, depID := range deps {
		dep, ok := g.modules[depID]
		if !ok || dep.explicit {
			continue
		}
		orphaned := true
		for _, sup := range dep.supplicantIDs {
			if sup != id {
				orphaned = false
				break
			}
		}
		if orphaned {
			g.removeSubtreeLocked(depID, visited)
		}
	}
}
