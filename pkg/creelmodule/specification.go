package creelmodule

import "fmt"

// Specification is a repository-technology-tagged, opaque-beyond-its-
// contract descriptor of a desired module.
type Specification interface {
	fmt.Stringer

	// RepositoryType names the repository technology this specification
	// targets, e.g. "local" or "http"; used to route to the right plugin.
	RepositoryType() string
	// Equal reports deep equality with another specification.
	Equal(other Specification) bool
	// AllowsIdentifier reports whether id satisfies this specification. A
	// single specification may allow multiple identifiers (a union/range).
	AllowsIdentifier(id Identifier) bool
	// Rewrite returns a specification equivalent to the receiver but with
	// any reference to oldID replaced by newID, used to propagate
	// conflict-resolution rewrites. Returns
	// the receiver unchanged if it does not reference oldID.
	Rewrite(oldID, newID Identifier) Specification
}

// simpleSpecification is the default Specification: a group/name coordinate
// plus a version constraint string interpreted by the repository that
// resolves it (e.g. an exact version, or "*" in this reference
// implementation's built-in repositories).
type simpleSpecification struct {
	repositoryType string
	group          string
	name           string
	versionRange   string
}

// NewSpecification returns a new Specification naming group/name at
// versionRange, to be resolved by repositories of the given repositoryType.
func NewSpecification(repositoryType, group, name, versionRange string) Specification {
	return &simpleSpecification{
		repositoryType: repositoryType,
		group:          group,
		name:           name,
		versionRange:   versionRange,
	}
}

func (s *simpleSpecification) RepositoryType() string { return s.repositoryType }

func (s *simpleSpecification) GroupName() string { return s.group + "/" + s.name }

func (s *simpleSpecification) VersionRange() string { return s.versionRange }

func (s *simpleSpecification) String() string {
	return fmt.Sprintf("%s/%s@%s", s.group, s.name, s.versionRange)
}

func (s *simpleSpecification) Equal(other Specification) bool {
	o, ok := other.(*simpleSpecification)
	if !ok {
		return false
	}
	return s.repositoryType == o.repositoryType &&
		s.group == o.group &&
		s.name == o.name &&
		s.versionRange == o.versionRange
}

func (s *simpleSpecification) AllowsIdentifier(id Identifier) bool {
	if id == nil {
		return false
	}
	if id.GroupName() != s.GroupName() {
		return false
	}
	if s.versionRange == "" || s.versionRange == "*" {
		return true
	}
	return id.Version() == s.versionRange
}

func (s *simpleSpecification) Rewrite(oldID, newID Identifier) Specification {
	if oldID == nil || !s.AllowsIdentifier(oldID) {
		return s
	}
	return &simpleSpecification{
		repositoryType: s.repositoryType,
		group:          s.group,
		name:           s.name,
		versionRange:   newID.Version(),
	}
}
