package creelmodule

// Module holds a specification, its resolved Identifier once identified, and
// its forward (dependency) and back (supplicant) edges. Module itself
// carries no graph-wide state; all mutation happens through its owning
// Graph, which holds modules in an arena keyed by stable integer ids, with
// edges held as ids rather than pointers.
type Module struct {
	id   int
	spec Specification

	explicit   bool
	identifier Identifier

	dependencyIDs []int
	supplicantIDs []int
}

// ID is this module's stable id within its owning Graph.
func (m *Module) ID() int { return m.id }

// Specification is the descriptor this module was created from.
func (m *Module) Specification() Specification { return m.spec }

// Explicit reports whether this module was a user-listed root.
func (m *Module) Explicit() bool { return m.explicit }

// Identifier returns the resolved identifier, or nil if unidentified.
func (m *Module) Identifier() Identifier { return m.identifier }

// Unidentified reports whether this module has not yet been resolved.
func (m *Module) Unidentified() bool { return m.identifier == nil }

// DependencyIDs returns the ids of this module's dependencies, in discovery
// order.
func (m *Module) DependencyIDs() []int {
	out := make([]int, len(m.dependencyIDs))
	copy(out, m.dependencyIDs)
	return out
}

// SupplicantIDs returns the ids of this module's reverse dependencies.
func (m *Module) SupplicantIDs() []int {
	out := make([]int, len(m.supplicantIDs))
	copy(out, m.supplicantIDs)
	return out
}

func (m *Module) hasDependency(id int) bool {
	for _, existing := range m.dependencyIDs {
		if existing == id {
			return true
		}
	}
	return false
}

func (m *Module) hasSupplicant(id int) bool {
	for _, existing := range m.supplicantIDs {
		if existing == id {
			return true
		}
	}
	return false
}
